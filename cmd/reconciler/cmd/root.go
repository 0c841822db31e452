// Package cmd wires the command-line interface around the reconciliation
// engine: flag parsing, config files, and the interactive driving loop.
package cmd

import (
	"fmt"
	"os"

	"github.com/claresudbery/Reconciliate-sub002/pkg/logger"
	"github.com/claresudbery/Reconciliate-sub002/pkg/perrors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Reconcile a bank statement against your own ledger",
	Long: `Reconciler matches the transaction lines of a third-party statement
(a bank or credit-card export) against your own ledger, including pending
entries, finding one-to-one and one-to-many correspondences.

It runs an automatic pass for unambiguous exact matches, then walks the
remaining statement lines interactively so you can confirm, combine, or
reject the suggested counterparts.

Examples:
  reconciler reconcile --statement-file bank.csv --ledger-file ledger.csv
  reconciler reconcile -t bank.csv -l ledger.csv --auto-only --output-format json`,
	Version: getVersionString(),
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in the config file and matching environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	viper.SetEnvPrefix("RECONCILER")
	viper.AutomaticEnv()

	level := logger.InfoLevel
	if viper.GetBool("verbose") {
		level = logger.DebugLevel
	}
	if log, err := logger.New(&logger.Config{Level: level, Format: logger.TextFormat, Output: os.Stderr}); err == nil {
		logger.SetGlobalLogger(log)
	}
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if appErr, ok := perrors.As(err); ok {
		return appErr.ExitCode()
	}
	return 1
}

// SetVersionInfo sets the version information for the CLI.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
