package client

import (
	"context"
	"encoding/json"

	"github.com/sendgrid/rest"
)

type DashboardService struct {
	client *Client
}

// GetDashboardStats returns the stats payload as sent by the server.
func (s *DashboardService) GetDashboardStats(ctx context.Context) (json.RawMessage, error) {
	var stats json.RawMessage
	err := s.client.call(ctx, rest.Get, "/dashboard/stats", nil, nil, &stats)
	return stats, err
}
