// CertStencil — Batch certificate generation.
//
// Usage:
//
//	certstencil serve [--port 8080]
//	certstencil render --template <img> --names <file> [--layout <json>] [--out <dir|.zip>] [--watch]
//	certstencil describe --layout <json>
//	certstencil init
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xob0t/CertStencil/pkg/config"
	"github.com/xob0t/CertStencil/pkg/logger"
)

// app carries what every subcommand shares once flags are resolved.
type app struct {
	v   *viper.Viper
	cfg config.Config
	log *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "certstencil",
		Short:         "Batch certificate generation from a template and a list of names",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.String(config.KeyConfigFile, "", "Config file (yaml, json or toml)")
	pf.String(config.KeyLogLevel, "info", "Log level: debug, info, warn, error")
	pf.Bool(config.KeyDev, false, "Human-readable console logs")
	pf.Duration(config.KeyTimeout, config.Defaults().Timeout, "Per-certificate capture timeout")
	pf.Int(config.KeyConcurrency, 1, "Certificates rendered in parallel")

	root.AddCommand(newServeCmd(a), newRenderCmd(a), newDescribeCmd(), newInitCmd())
	return root
}

// setup binds flags and environment, then builds the process logger.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.Dev})
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(log)

	a.cfg = cfg
	a.log = log
	return nil
}
