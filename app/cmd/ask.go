package cmd

import (
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
)

// newAskCmd answers a single question and exits, for scripting and piping.
func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkCredentials(cmd); err != nil {
				return err
			}
			tracer, _, err := buildSession(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return tracer.Run(ctx, strings.Join(args, " "))
		},
	}
}
