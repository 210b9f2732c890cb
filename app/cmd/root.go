package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexcodex/delver/agents"
)

const version = "1.0.0"

var (
	cfgFile    string
	workspace  string
	plainMode  bool
	outputsDir string

	cfg *agents.Config
)

// Execute is the entry point for the CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd wires the cobra tree. Running the bare binary starts the
// interactive research prompt.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "delver",
		Short:         "Research assistant CLI with live web search",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if workspace == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				workspace = wd
			}
			if cfgFile == "" {
				cfgFile = agents.DefaultConfigPath(workspace)
			}
			loaded, err := agents.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			if outputsDir != "" {
				loaded.OutputsDir = outputsDir
			}
			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd)
		},
	}
	root.PersistentFlags().StringVar(&workspace, "workspace", "", "Workspace directory")
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to delver config file")
	root.PersistentFlags().BoolVar(&plainMode, "plain", false, "Plain line output instead of styled panels")
	root.PersistentFlags().StringVar(&outputsDir, "outputs", "", "Directory for saved trace files")

	root.AddCommand(
		newAskCmd(),
		newShellCmd(),
		newConfigCmd(),
	)
	return root
}
