// Package webhook provides an approval service backed by an external
// HTTP endpoint. Gate creation is an HTTP POST; the endpoint is
// expected to route the human decision back through the orchestrator.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

var _ adapters.ApprovalService = (*Service)(nil)

// Service creates approval gates by POSTing the gate request to a
// configured endpoint. The endpoint must respond with the created
// gate's ID.
type Service struct {
	endpoint       string
	client         *http.Client
	defaultHeaders map[string]string
}

// Option configures a webhook Service.
type Option func(*Service)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.client = client
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.client.Timeout = d
	}
}

// WithDefaultHeaders sets headers added to every request, typically
// authentication.
func WithDefaultHeaders(headers map[string]string) Option {
	return func(s *Service) {
		for k, v := range headers {
			s.defaultHeaders[k] = v
		}
	}
}

// New creates a webhook Service targeting the given endpoint URL.
func New(endpoint string, opts ...Option) (*Service, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("strand/webhook: endpoint is required")
	}

	s := &Service{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		defaultHeaders: map[string]string{
			"Content-Type": "application/json",
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// gateResponse is the expected endpoint response body.
type gateResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateGate POSTs the gate request to the endpoint and returns the
// created gate. Any non-2xx response fails the creation, which the
// orchestrator treats as a step failure.
func (s *Service) CreateGate(ctx context.Context, req adapters.GateRequest) (*adapters.Gate, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("strand/webhook: failed to marshal gate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("strand/webhook: failed to create request: %w", err)
	}
	for k, v := range s.defaultHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("strand/webhook: request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("strand/webhook: gate creation failed with status %d", resp.StatusCode)
	}

	var gr gateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("strand/webhook: failed to decode gate response: %w", err)
	}
	if gr.ID == "" {
		return nil, fmt.Errorf("strand/webhook: gate response missing id")
	}
	if gr.CreatedAt.IsZero() {
		gr.CreatedAt = time.Now()
	}

	return &adapters.Gate{ID: gr.ID, CreatedAt: gr.CreatedAt}, nil
}
