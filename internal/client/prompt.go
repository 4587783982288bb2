package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"agentcli/internal/stream"
	"agentcli/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// PromptRequest is the body of POST /agent/prompt.
type PromptRequest struct {
	Message string   `json:"message"`
	Tools   []string `json:"tools"`
	Stream  bool     `json:"stream"`
}

// Handler receives each event as soon as it is decoded. Returning an error
// stops the stream.
type Handler func(stream.Event) error

// Summary describes a finished prompt stream.
type Summary struct {
	Events   int
	Done     bool
	Duration time.Duration
}

// Prompt sends message and feeds the streamed events to handle in arrival
// order. Transport failures come back as *TransportError, non-2xx responses
// as *StatusError.
func (c *Client) Prompt(ctx context.Context, pr PromptRequest, handle Handler) (*Summary, error) {
	pr.Stream = true
	if pr.Tools == nil {
		pr.Tools = []string{}
	}

	ctx, span := trace.Tracer().Start(ctx, "agent.prompt",
		oteltrace.WithAttributes(
			attribute.String("agent.server", c.baseURL),
			attribute.StringSlice("agent.tools", pr.Tools),
		),
	)
	defer span.End()

	sum, err := c.prompt(ctx, pr, handle)
	span.SetAttributes(
		attribute.Int("agent.events", sum.Events),
		attribute.Bool("agent.done", sum.Done),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sum, err
	}
	return sum, nil
}

func (c *Client) prompt(ctx context.Context, pr PromptRequest, handle Handler) (*Summary, error) {
	sum := &Summary{}
	start := time.Now()
	defer func() { sum.Duration = time.Since(start) }()

	body, err := json.Marshal(pr)
	if err != nil {
		return sum, fmt.Errorf("encoding prompt request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+promptPath, bytes.NewReader(body))
	if err != nil {
		return sum, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return sum, &TransportError{Op: "prompt", Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus("prompt", resp); err != nil {
		return sum, err
	}
	slog.Debug("prompt stream opened", "status", resp.StatusCode, "content_type", resp.Header.Get("Content-Type"))

	r := stream.NewReader(resp.Body)
	for r.Next() {
		ev := r.Current()
		sum.Events++
		if _, ok := ev.(stream.Done); ok {
			sum.Done = true
		}
		if handle == nil {
			continue
		}
		if err := handle(ev); err != nil {
			return sum, fmt.Errorf("handling %s event: %w", ev.Kind(), err)
		}
	}
	if err := r.Err(); err != nil {
		return sum, &TransportError{Op: "reading prompt stream", Err: err}
	}

	slog.Debug("prompt stream closed", "events", sum.Events, "done", sum.Done)
	return sum, nil
}
