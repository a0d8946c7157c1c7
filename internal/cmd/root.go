package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

// NewRootCmd assembles the csaw-engine command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "csaw-engine",
		Short:         "Cognitive signal analytics and alerting engine",
		Long:          "csaw-engine derives windowed cognitive metrics from team conversation signals and emits filtered smart pings.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config (default $CSAW_CONFIG)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
