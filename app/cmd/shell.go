package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lexcodex/delver/agents"
	"github.com/lexcodex/delver/app/tui"
	"github.com/lexcodex/delver/framework"
	"github.com/lexcodex/delver/tools"
)

// newShellCmd launches the full-screen Bubble Tea research shell.
func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the full-screen research shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkCredentials(cmd); err != nil {
				return err
			}
			registry := framework.NewToolRegistry()
			if err := registry.Register(tools.NewWebSearch()); err != nil {
				return err
			}
			factory := agents.NewFactory(cfg, registry)
			return tui.Run(cmd.Context(), factory, cfg)
		},
	}
}
