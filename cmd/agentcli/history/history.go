package history

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"agentcli/internal/config"
	hist "agentcli/internal/history"
	"agentcli/internal/render"

	"github.com/spf13/cobra"
)

func NewCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded transcripts",
	}
	cmd.PersistentFlags().StringVar(&cfg.History.Path, "db", cfg.History.Path, "history database path")

	cmd.AddCommand(newListCmd(cfg), newShowCmd(cfg))
	return cmd
}

func newListCmd(cfg *config.Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, database, err := hist.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			defer database.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeRuns(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to show")
	return cmd
}

func newShowCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Replay a recorded transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, database, err := hist.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			defer database.Close()

			run, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:    %s\n", run.ID)
			fmt.Fprintf(out, "Server: %s\n", run.ServerURL)
			fmt.Fprintf(out, "Time:   %s\n", run.StartedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "\nUser: %s\n", run.Message)
			fmt.Fprint(out, "Agent: ")

			if err := store.Replay(cmd.Context(), run.ID, render.NewDispatcher(out).Dispatch); err != nil {
				return err
			}

			if run.Error != "" {
				fmt.Fprintf(out, "\n\n[stream ended with error: %s]\n", run.Error)
			} else {
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func writeRuns(w io.Writer, runs []hist.Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tEVENTS\tSTATUS\tMESSAGE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			shortID(r.ID),
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Events,
			runStatus(r),
			truncate(r.Message, 60),
		)
	}
	return tw.Flush()
}

func runStatus(r hist.Run) string {
	switch {
	case r.Error != "":
		return "error"
	case r.FinishedAt.IsZero():
		return "incomplete"
	case r.Done:
		return "done"
	default:
		return "closed"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
