package client

import (
	"context"

	"github.com/sendgrid/rest"

	"github.com/spimentel1201/EduMF-sub001/core/user"
)

type AuthService struct {
	client *Client
}

type (
	LoginRequest struct {
		DNI      string `json:"dni"`
		Password string `json:"password"`
	}

	QRLoginRequest struct {
		QRData string `json:"qrData"`
	}

	LoginResponse struct {
		Token string       `json:"token"`
		User  user.Summary `json:"user"`
	}
)

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	var resp LoginResponse
	err := s.client.call(ctx, rest.Post, "/auth/login", nil, req, &resp)
	return resp, err
}

func (s *AuthService) LoginWithQR(ctx context.Context, req QRLoginRequest) (LoginResponse, error) {
	var resp LoginResponse
	err := s.client.call(ctx, rest.Post, "/auth/qr-login", nil, req, &resp)
	return resp, err
}

// Me returns the authenticated user.
func (s *AuthService) Me(ctx context.Context) (user.User, error) {
	var usr user.User
	err := s.client.call(ctx, rest.Get, "/auth/me", nil, nil, &usr)
	return usr, err
}
