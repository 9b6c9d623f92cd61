// Package cli implements the nback command line.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"digital.vasic.nback/pkg/config"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envPath    string
	verbose    bool
}

// Execute runs the root command.
func Execute() error {
	return NewRoot().Execute()
}

// NewRoot builds the command tree.
func NewRoot() *cobra.Command {
	var flags globalFlags
	root := &cobra.Command{
		Use:          "nback",
		Short:        "Digit n-back working memory task",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (.yaml, .yml or .toml)")
	root.PersistentFlags().StringVar(&flags.envPath, "env", ".env", "Env file with NBACK_* overrides")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Debug logging")

	root.AddCommand(
		runCmd(&flags),
		serveCmd(&flags),
		orderCmd(&flags),
		generateCmd(&flags),
		historyCmd(&flags),
		configCmd(&flags),
		remoteCmd(&flags),
		motionCmd(),
	)
	return root
}

// loadConfig layers the config file, the env file and the process
// environment, then validates the result.
func loadConfig(flags *globalFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return cfg, err
	}
	loader := config.NewLoader()
	if flags.envPath != "" {
		if err := loader.Load(flags.envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load env: %w", err)
		}
	}
	if err := config.ApplyEnv(&cfg, loader); err != nil {
		return cfg, err
	}
	if flags.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
