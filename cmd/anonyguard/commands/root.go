package commands

import (
	"github.com/spf13/cobra"

	"github.com/inferloop/anonyguard/pkg/constants"
)

// NewRootCmd assembles the anonyguard command tree.
func NewRootCmd() *cobra.Command {
	global := &GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   constants.AppName,
		Short: constants.AppDescription,
		Long: `Evaluate and enforce k-anonymity, l-diversity and t-closeness over a
tabular dataset, and optionally add local differential privacy noise before
it is shared.`,
		Version:       constants.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&global.ConfigFile, "config", "", "config file (default is $HOME/.anonyguard/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&global.Verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewEvaluateCmd(global))
	rootCmd.AddCommand(NewEnforceCmd(global))
	rootCmd.AddCommand(NewNoiseCmd(global))

	return rootCmd
}
