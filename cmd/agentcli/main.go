package main

import (
	"fmt"
	"os"

	"agentcli/cmd/agentcli/health"
	"agentcli/cmd/agentcli/history"
	"agentcli/cmd/agentcli/run"
	"agentcli/cmd/agentcli/setup"
	"agentcli/internal/config"
	"agentcli/internal/logger"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Format)

	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentcli",
		Short: "Stream replies from an agent-core server",
		Long: `agentcli sends a prompt to an agent-core server and renders the reply as it
streams in: text as it is generated, tool calls and their results inline.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(run.NewCmd(cfg))
	rootCmd.AddCommand(health.NewCmd(cfg))
	rootCmd.AddCommand(history.NewCmd(cfg))
	rootCmd.AddCommand(setup.NewCmd(cfg))
	return rootCmd
}
