package run

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"agentcli/internal/client"
	"agentcli/internal/config"
	"agentcli/internal/history"
	"agentcli/internal/render"
	"agentcli/internal/stream"
	"agentcli/internal/trace"

	"github.com/spf13/cobra"
)

// NewCmd builds the run command. Flags override cfg for this invocation only.
func NewCmd(cfg *config.Config) *cobra.Command {
	var (
		url     string
		message string
		tools   []string
		noColor bool
		record  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check the server, send a prompt and stream the reply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c := *cfg
			if url != "" {
				c.Server.URL = url
			}
			if message != "" {
				c.Prompt.Message = message
			}
			if cmd.Flags().Changed("tool") {
				c.Prompt.Tools = tools
			}
			if noColor || os.Getenv("NO_COLOR") != "" {
				c.Output.Color = false
			}
			if record {
				c.History.Enabled = true
			}

			if c.Trace.Enabled {
				shutdown, err := trace.Init(ctx, trace.Config{
					Endpoint: c.Trace.Endpoint,
					URLPath:  c.Trace.URLPath,
					APIKey:   c.Trace.APIKey,
					Insecure: c.Trace.Insecure,
				})
				if err != nil {
					return fmt.Errorf("initializing tracing: %w", err)
				}
				defer func() {
					if err := shutdown(context.WithoutCancel(ctx)); err != nil {
						slog.Warn("tracing shutdown failed", "error", err)
					}
				}()
			}

			return Run(ctx, &c, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "", "agent server base URL")
	cmd.Flags().StringVarP(&message, "message", "m", "", "prompt to send")
	cmd.Flags().StringSliceVarP(&tools, "tool", "t", nil, "tool the agent may use (repeatable)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable coloured tool annotations")
	cmd.Flags().BoolVar(&record, "record", false, "record the transcript in the history database")
	return cmd
}

// Run checks the server's health, sends the configured prompt and renders the
// streamed transcript to out.
func Run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	w := bufio.NewWriter(out)
	defer w.Flush()

	cl := client.New(cfg.Server.URL, client.WithHeaderTimeout(cfg.Server.HeaderTimeout))

	health, err := cl.Health(ctx)
	if err != nil {
		var te *client.TransportError
		if errors.As(err, &te) {
			fmt.Fprintf(w, "Server not running: %v\n", err)
			fmt.Fprintf(w, "Start the agent server at %s and try again.\n", cl.BaseURL())
		} else {
			fmt.Fprintf(w, "Server unhealthy: %v\n", err)
		}
		return fmt.Errorf("checking health: %w", err)
	}
	fmt.Fprintf(w, "Server: %s\n", statusText(health.Status))

	fmt.Fprintf(w, "\nUser: %s\n", cfg.Prompt.Message)
	fmt.Fprint(w, "Agent: ")
	if err := w.Flush(); err != nil {
		return err
	}

	var opts []render.Option
	if cfg.Output.Color {
		opts = append(opts, render.WithStyles(render.StylesFor(out)))
	}
	d := render.NewDispatcher(w, opts...)

	rec, closeHistory := startRecording(ctx, cfg, cl.BaseURL())
	defer closeHistory()

	sum, err := cl.Prompt(ctx, client.PromptRequest{
		Message: cfg.Prompt.Message,
		Tools:   cfg.Prompt.Tools,
	}, func(ev stream.Event) error {
		if err := d.Dispatch(ev); err != nil {
			return err
		}
		if rec != nil {
			if err := rec.Record(ctx, ev); err != nil {
				slog.Warn("history recording stopped", "run_id", rec.ID(), "error", err)
				rec = nil
			}
		}
		return nil
	})

	if rec != nil {
		if ferr := rec.Finish(context.WithoutCancel(ctx), sum.Events, sum.Done, err); ferr != nil {
			slog.Warn("failed to finish history run", "run_id", rec.ID(), "error", ferr)
		} else {
			slog.Info("transcript recorded", "run_id", rec.ID(), "events", sum.Events)
		}
	}

	if err != nil {
		fmt.Fprintln(w)
		var te *client.TransportError
		if errors.As(err, &te) {
			fmt.Fprintln(w, "[stream interrupted]")
		}
		return err
	}

	slog.Debug("prompt finished", "events", sum.Events, "done", sum.Done, "duration", sum.Duration)
	fmt.Fprint(w, "\n\nDone!\n")
	return nil
}

func startRecording(ctx context.Context, cfg *config.Config, serverURL string) (*history.Recorder, func()) {
	if !cfg.History.Enabled {
		return nil, func() {}
	}

	store, database, err := history.Open(cfg.History.Path)
	if err != nil {
		slog.Warn("history disabled", "path", cfg.History.Path, "error", err)
		return nil, func() {}
	}

	rec, err := store.Begin(ctx, serverURL, cfg.Prompt.Message, cfg.Prompt.Tools)
	if err != nil {
		slog.Warn("history disabled", "path", cfg.History.Path, "error", err)
		database.Close()
		return nil, func() {}
	}
	slog.Debug("recording transcript", "run_id", rec.ID(), "db", database.Path())
	return rec, func() { database.Close() }
}

func statusText(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
