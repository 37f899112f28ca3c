package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds a single capture POST so a slow collector can
// never stall a scheduler tick for long.
const DefaultRequestTimeout = 5 * time.Second

// Opts holds configuration options for the HTTP recorder.
type Opts struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// Option defines a configuration option for the HTTP recorder.
type Option func(*Opts)

// WithEndpoint sets the capture endpoint URL.
func WithEndpoint(url string) Option {
	return func(o *Opts) { o.Endpoint = url }
}

// WithAPIKey sets the collector API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithHTTPClient injects an HTTP client (used by tests).
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.Client = c }
}

// HTTPRecorder posts capture events to an analytics collector as JSON.
type HTTPRecorder struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// Compile-time check that HTTPRecorder implements Recorder.
var _ Recorder = (*HTTPRecorder)(nil)

// NewHTTPRecorder creates a recorder posting to the configured endpoint.
func NewHTTPRecorder(opts ...Option) (*HTTPRecorder, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("events endpoint not set")
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &HTTPRecorder{endpoint: cfg.Endpoint, apiKey: cfg.APIKey, client: cfg.Client}, nil
}

// Record posts the event. Failures are logged at debug level and swallowed.
func (r *HTTPRecorder) Record(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		slog.Debug("HTTPRecorder.Record: marshal failed", "event", e.Name, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		slog.Debug("HTTPRecorder.Record: request build failed", "event", e.Name, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		slog.Debug("HTTPRecorder.Record: post failed", "event", e.Name, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		slog.Debug("HTTPRecorder.Record: collector rejected event", "event", e.Name, "status", resp.StatusCode)
	}
}
