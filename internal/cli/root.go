// Package cli implements the feedline command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quartzchat/feedline/internal/config"
	"github.com/quartzchat/feedline/internal/logging"
)

// Execute runs the feedline CLI.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string

	cfg *config.Config
}

func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "feedline",
		Short:         "Filtered event feeds over a Matrix homeserver",
		Long:          "feedline acquires filtered room timelines (file attachments) and pages through their history.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is $HOME/.config/feedline/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override logging format (json, console)")

	cmd.AddCommand(
		newFeedCmd(opts),
		newIndexCmd(opts),
	)

	return cmd
}

func (o *rootOptions) load() error {
	var cfg *config.Config
	var err error
	if o.configFile != "" {
		cfg, err = config.LoadFromFile(o.configFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		File:         cfg.Logging.File,
		EnableCaller: cfg.Logging.EnableCaller,
	})

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	o.cfg = cfg
	return nil
}
