// Package cmd defines the CLI commands of the ingest executable.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/StanHuanng/anthropo-reader/internal/config"
	"github.com/StanHuanng/anthropo-reader/internal/logging"
)

type rootOptions struct {
	cfgFile string
	stdout  io.Writer
	stderr  io.Writer
}

// newRootCmd creates the root command. stdout receives records; stderr receives diagnostics.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Collects notices, projects and news into the reader's collections.",
		Long: `ingest crawls the configured sources (session-paginated notice listings,
a repository search API and RSS feeds), normalizes and classifies what it finds,
optionally adds AI summaries, and upserts the result keyed by source URL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (YAML)")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newSummarizeCmd(opts))
	cmd.AddCommand(newProxyCmd(opts))
	return cmd
}

// bindings maps viper keys to flag names.
type bindings map[string]string

// load reads configuration with the given flags layered on top.
func (o *rootOptions) load(flags *pflag.FlagSet, b bindings) (config.Config, error) {
	v := viper.New()
	for key, name := range b {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return config.Config{}, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	cfg, err := config.LoadWith(v, o.cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(logging.Development(cfg.Logging.Development))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
