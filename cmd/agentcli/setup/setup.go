package setup

import (
	"fmt"

	"agentcli/internal/config"

	"github.com/spf13/cobra"
)

// NewCmd builds the setup command, which writes the effective configuration
// to the config file so it can be edited.
func NewCmd(cfg *config.Config) *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write a starter config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = config.Path()
			}
			if err := config.WriteFile(path, cfg, force); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "config file to write (default "+config.Path()+")")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")
	return cmd
}
