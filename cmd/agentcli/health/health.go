package health

import (
	"fmt"

	"agentcli/internal/client"
	"agentcli/internal/config"

	"github.com/spf13/cobra"
)

func NewCmd(cfg *config.Config) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the agent server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = cfg.Server.URL
			}
			cl := client.New(url, client.WithHeaderTimeout(cfg.Server.HeaderTimeout))

			h, err := cl.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("checking health: %w", err)
			}
			status := h.Status
			if status == "" {
				status = "unknown"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server: %s\n", status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "", "agent server base URL")
	return cmd
}
