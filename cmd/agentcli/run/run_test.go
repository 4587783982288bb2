package run

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"agentcli/internal/client"
	"agentcli/internal/config"
	"agentcli/internal/history"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var calculatorFrames = []string{
	`data: {"type":"turn_start","payload":{"Timestamp":1}}`,
	`data: {"type":"tool_call","payload":{"ToolCallId":"c1","ToolName":"calculator","Args":{"a":15,"b":3}}}`,
	`data: {"type":"tool_result","payload":{"ToolCallId":"c1","ToolName":"calculator","Result":45}}`,
	`data: {"type":"text_delta","payload":{"Text":"The answer is 45."}}`,
	`data: {"type":"done"}`,
}

type agentServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []map[string]any
}

// newAgentServer answers /health with ok and streams frames for every prompt.
// When abort is set the connection is dropped after the frames.
func newAgentServer(t *testing.T, frames []string, abort bool) *agentServer {
	t.Helper()
	s := &agentServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("POST /agent/prompt", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.requests = append(s.requests, body)
		s.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		rc := http.NewResponseController(w)
		for _, f := range frames {
			_, _ = io.WriteString(w, f+"\n\n")
			_ = rc.Flush()
		}
		if abort {
			panic(http.ErrAbortHandler)
		}
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *agentServer) lastRequest() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

func testConfig(t *testing.T, url string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.URL = url
	cfg.Output.Color = false
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")
	return cfg
}

func TestRunCalculator(t *testing.T) {
	srv := newAgentServer(t, calculatorFrames, false)

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), testConfig(t, srv.URL), &out))

	assert.Equal(t, "Server: ok\n"+
		"\nUser: What is 15 * 3?\n"+
		"Agent: \n  [calling calculator]\n  [result: 45]\nThe answer is 45."+
		"\n\nDone!\n", out.String())
	assert.Equal(t, map[string]any{
		"message": "What is 15 * 3?",
		"tools":   []any{"calculator"},
		"stream":  true,
	}, srv.lastRequest())
}

func TestRunServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var out bytes.Buffer
	err := Run(context.Background(), testConfig(t, url), &out)

	var te *client.TransportError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, out.String(), "Server not running")
	assert.NotContains(t, out.String(), "User:")
}

func TestRunServerUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	err := Run(context.Background(), testConfig(t, srv.URL), &out)

	var se *client.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Contains(t, out.String(), "Server unhealthy:")
	assert.Contains(t, out.String(), "maintenance")
	assert.NotContains(t, out.String(), "Server not running")
}

func TestRunDefaultColorKeepsToolOutput(t *testing.T) {
	srv := newAgentServer(t, []string{
		`data: {"type":"tool_call","payload":{"ToolName":"shell"}}`,
		`data: {"type":"tool_result","payload":{"Result":"a\tb\nlonger line"}}`,
		`data: {"type":"done"}`,
	}, false)
	cfg := testConfig(t, srv.URL)
	cfg.Output.Color = config.Default().Output.Color
	require.True(t, cfg.Output.Color)

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), cfg, &out))
	assert.Contains(t, out.String(), "Agent: \n  [calling shell]\n  [result: a\tb\nlonger line]\n\n\nDone!\n")
}

func TestRunUnknownHealthShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = io.WriteString(w, `["up"]`)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
	}))
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), testConfig(t, srv.URL), &out))
	assert.Contains(t, out.String(), "Server: unknown\n")
}

func TestRunInterrupted(t *testing.T) {
	srv := newAgentServer(t, calculatorFrames[:3], true)

	var out bytes.Buffer
	err := Run(context.Background(), testConfig(t, srv.URL), &out)

	var te *client.TransportError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, out.String(), "  [result: 45]\n")
	assert.Contains(t, out.String(), "[stream interrupted]")
	assert.NotContains(t, out.String(), "Done!")
}

func TestRunRecordsHistory(t *testing.T) {
	srv := newAgentServer(t, calculatorFrames, false)
	cfg := testConfig(t, srv.URL)
	cfg.History.Enabled = true

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), cfg, &out))

	store, database, err := history.Open(cfg.History.Path)
	require.NoError(t, err)
	defer database.Close()

	runs, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, srv.URL, runs[0].ServerURL)
	assert.Equal(t, "What is 15 * 3?", runs[0].Message)
	assert.Equal(t, 5, runs[0].Events)
	assert.True(t, runs[0].Done)
	assert.Empty(t, runs[0].Error)

	events, err := store.Events(context.Background(), runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestRunHistoryUnavailableStillStreams(t *testing.T) {
	srv := newAgentServer(t, calculatorFrames, false)
	cfg := testConfig(t, srv.URL)
	cfg.History.Enabled = true
	cfg.History.Path = t.TempDir() // a directory cannot be opened as a database

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), cfg, &out))
	assert.Contains(t, out.String(), "The answer is 45.")
}

func TestCmdFlagsOverrideConfig(t *testing.T) {
	srv := newAgentServer(t, calculatorFrames, false)
	cfg := testConfig(t, "http://unused.invalid")

	cmd := NewCmd(cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-u", srv.URL, "-m", "What time is it?", "-t", "gettime", "-t", "calculator", "--no-color"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, map[string]any{
		"message": "What time is it?",
		"tools":   []any{"gettime", "calculator"},
		"stream":  true,
	}, srv.lastRequest())
	assert.Contains(t, out.String(), "User: What time is it?\n")
	assert.Equal(t, "http://unused.invalid", cfg.Server.URL, "flags must not leak into the shared config")
}

func TestCmdRejectsArgs(t *testing.T) {
	cmd := NewCmd(config.Default())
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}
