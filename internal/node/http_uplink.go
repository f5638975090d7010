package node

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"plantlab/internal/models"
)

// HTTPUplink posts readings to the service's /api/ingest endpoint.
type HTTPUplink struct {
	client    *resty.Client
	connected bool
}

// NewHTTPUplink creates an HTTPUplink for the service at baseURL.
func NewHTTPUplink(baseURL string, timeout time.Duration) *HTTPUplink {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &HTTPUplink{client: client}
}

// Connected implements Uplink.
func (u *HTTPUplink) Connected() bool {
	return u.connected
}

// Connect probes /api/health.
func (u *HTTPUplink) Connect(ctx context.Context) error {
	resp, err := u.client.R().
		SetContext(ctx).
		Get("/api/health")
	if err != nil {
		u.connected = false
		return fmt.Errorf("health probe: %w", err)
	}
	if resp.IsError() {
		u.connected = false
		return fmt.Errorf("health probe: unexpected status %s", resp.Status())
	}
	u.connected = true
	return nil
}

// Send posts one reading. Any failure marks the uplink disconnected so the
// next send period probes again.
func (u *HTTPUplink) Send(ctx context.Context, req models.IngestRequest) error {
	var apiErr models.APIError
	resp, err := u.client.R().
		SetContext(ctx).
		SetBody(req).
		SetError(&apiErr).
		Post("/api/ingest")
	if err != nil {
		u.connected = false
		return fmt.Errorf("posting reading: %w", err)
	}
	if resp.IsError() {
		u.connected = false
		if apiErr.Code != "" {
			return fmt.Errorf("posting reading: %s: %s (%s)", resp.Status(), apiErr.Message, apiErr.Code)
		}
		return fmt.Errorf("posting reading: unexpected status %s", resp.Status())
	}
	return nil
}

// Close implements Uplink.
func (u *HTTPUplink) Close() {
	u.connected = false
}
