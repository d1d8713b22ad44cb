// Package client wraps the EduMF REST API.
//
// Every call performs exactly one request and unwraps the `{"data": ...}` envelope.
// There is no retry, timeout or caching: transport errors are returned unchanged
// and a non-2xx answer is returned as an *Error.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
)

// Doer sends a single request. *rest.Client satisfies it.
type Doer interface {
	SendWithContext(ctx context.Context, request rest.Request) (*rest.Response, error)
}

// Error is returned for any non-2xx response.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("edumf: HTTP %d: %s", e.StatusCode, e.Body)
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// Client holds the base URL, the transport and the bearer token used by every service.
type Client struct {
	doer    Doer
	baseURL string
	token   string

	Auth       *AuthService
	Courses    *CourseService
	Dashboard  *DashboardService
	Attendance *AttendanceService
}

type Option func(*Client)

// WithDoer replaces the default transport.
func WithDoer(doer Doer) Option {
	return func(c *Client) { c.doer = doer }
}

// WithHTTPClient sends requests through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.doer = &rest.Client{HTTPClient: hc} }
}

// WithToken authenticates every request with a JWT.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New returns a Client for the API mounted at baseURL, eg. "http://localhost:8000/api".
func New(baseURL string, opts ...Option) *Client {
	vala.BeginValidation().Validate(
		vala.StringNotEmpty(baseURL, "baseURL"),
	).CheckAndPanic()

	c := &Client{
		doer:    &rest.Client{HTTPClient: http.DefaultClient},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Auth = &AuthService{client: c}
	c.Courses = &CourseService{client: c}
	c.Dashboard = &DashboardService{client: c}
	c.Attendance = &AttendanceService{client: c}
	return c
}

// SetToken sets the JWT sent by subsequent calls, eg. the one returned by Auth.Login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// call sends one request and decodes the enveloped payload into out (if not nil).
func (c *Client) call(ctx context.Context, method rest.Method, path string, query map[string]string, in, out interface{}) error {
	req := rest.Request{
		Method:      method,
		BaseURL:     c.baseURL + path,
		Headers:     map[string]string{"Accept": "application/json"},
		QueryParams: query,
	}
	if c.token != "" {
		req.Headers["Authorization"] = "Bearer " + c.token
	}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		req.Body = body
		req.Headers["Content-Type"] = "application/json"
	}

	resp, err := c.doer.SendWithContext(ctx, req)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err = json.Unmarshal([]byte(resp.Body), &env); err != nil {
		return errors.Wrap(err, "decoding response envelope")
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = env.Data
		return nil
	}
	if err = json.Unmarshal(env.Data, out); err != nil {
		return errors.Wrap(err, "decoding response data")
	}
	return nil
}
