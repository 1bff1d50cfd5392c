package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/erasure/pkg/cli"
	"mercator-hq/erasure/pkg/config"
	"mercator-hq/erasure/pkg/telemetry/logging"
)

// rootOptions holds global flags.
type rootOptions struct {
	cfgFile string
	verbose bool

	// level backs the default logger so a reload can change it.
	level *slog.LevelVar
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "erasure",
		Short: "Erasure - deletion batch windowing scheduler",
		Long: `Erasure drives data-retention deletion against the offender system of record.

Each scheduling cycle chooses a window of records due for deletion, stores it
as a batch and requests deletion of that window. Windows advance only once
the previous batch completed with nothing left to process.

Configuration is read from --config (YAML) and ERASURE_* environment
variables. Without --config, defaults and the environment are used.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file path")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output (debug logging)")

	cmd.AddCommand(
		newRunCmd(),
		newServeCmd(opts),
		newBatchCmd(),
		newVersionCmd(),
	)

	return cmd
}

// load reads configuration, makes it the process-wide configuration and
// installs the default logger.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfigWithEnvOverrides(o.cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	o.level = new(slog.LevelVar)
	logger, err := logging.New(logging.Config{
		Level:     o.logLevel(cfg),
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		Writer:    cmd.ErrOrStderr(),
		LevelVar:  o.level,
	})
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	config.SetConfig(cfg)
	return nil
}

// reload re-reads the configuration file. Only the log level takes effect
// without a restart; a configuration that fails to load is ignored.
func (o *rootOptions) reload() {
	if err := config.ReloadConfig(o.cfgFile); err != nil {
		slog.Error("configuration reload failed, keeping current configuration", "error", err)
		return
	}

	cfg := config.GetConfig()
	level, err := logging.ParseLevel(o.logLevel(cfg))
	if err != nil {
		slog.Error("invalid log level after reload", "error", err)
		return
	}
	o.level.Set(level)
	slog.Info("configuration reloaded", "log_level", level.String())
}

// logLevel is the configured level, forced to debug by --verbose.
func (o *rootOptions) logLevel(cfg *config.Config) string {
	if o.verbose {
		return "debug"
	}
	return cfg.Telemetry.Logging.Level
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}
