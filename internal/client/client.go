package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	healthPath = "/health"
	promptPath = "/agent/prompt"

	maxErrorBody  = 1024
	maxHealthBody = 1 << 20
)

// Client talks to an agent-core server.
type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*clientOptions)

type clientOptions struct {
	httpClient    *http.Client
	headerTimeout time.Duration
}

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithHeaderTimeout bounds the wait for response headers. Streamed bodies are
// never subject to a deadline.
func WithHeaderTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.headerTimeout = d }
}

func New(baseURL string, opts ...Option) *Client {
	o := clientOptions{headerTimeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.httpClient
	if hc == nil {
		base := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ResponseHeaderTimeout: o.headerTimeout,
		}
		hc = &http.Client{Transport: otelhttp.NewTransport(base)}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health is the server's answer to GET /health.
type Health struct {
	Status string
}

// Health checks that the server is up. A body that is not a JSON object with
// a scalar status yields an empty Status rather than an error.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "health", Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus("health", resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHealthBody))
	if err != nil {
		return nil, &TransportError{Op: "health", Err: err}
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return &Health{}, nil
	}
	return &Health{Status: statusString(fields["status"])}, nil
}

// statusString prints scalar statuses as they appear in the body. Missing,
// null and structured values read as empty.
func statusString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool, float64:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}
