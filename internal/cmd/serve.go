package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iczelia/k16brightd/internal/config"
	"github.com/iczelia/k16brightd/internal/daemon"
	"github.com/iczelia/k16brightd/internal/logging"
)

type serveOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	busAddress string
	sysfsRoot  string
}

func addServeFlags(cmd *cobra.Command, opts *serveOptions) {
	fs := cmd.Flags()
	fs.StringVar(&opts.configPath, "config", config.DefaultPath, "Path to config file")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.logFormat, "log-format", logging.FormatText, "Log format (text, json)")
	fs.StringVar(&opts.busAddress, "bus-address", "", "D-Bus address to connect to (default: system bus)")
	fs.StringVar(&opts.sysfsRoot, "sysfs-root", "", "Where sysfs is mounted (default: /sys)")
}

func newServeCommand() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon on the system bus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	addServeFlags(cmd, opts)
	return cmd
}

// loadConfig reads the config file. The default path may be absent; an
// explicitly given one must exist.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if explicit {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// applyConfig fills options whose flags were not set on the command line
// from cfg.
func applyConfig(cmd *cobra.Command, opts *serveOptions, cfg *config.Config) {
	set := func(name string, dst *string, v string) {
		if !cmd.Flags().Changed(name) && v != "" {
			*dst = v
		}
	}
	set("log-level", &opts.logLevel, cfg.LogLevel)
	set("log-format", &opts.logFormat, cfg.LogFormat)
	set("bus-address", &opts.busAddress, cfg.BusAddress)
	set("sysfs-root", &opts.sysfsRoot, cfg.SysfsRoot)
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	cfg, err := loadConfig(opts.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	applyConfig(cmd, opts, cfg)

	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	var levelVar slog.LevelVar
	levelVar.Set(level)

	handler, err := logging.NewHandler(opts.logFormat, &levelVar, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(handler))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// A level given on the command line is not overridden by reloads.
	if !cmd.Flags().Changed("log-level") {
		go watchLogLevel(ctx, opts.configPath, &levelVar)
	}

	return daemon.Run(ctx, daemon.Config{
		BusAddress: opts.busAddress,
		SysfsRoot:  opts.sysfsRoot,
		Version:    Version,
	})
}

func watchLogLevel(ctx context.Context, path string, levelVar *slog.LevelVar) {
	err := config.Watch(ctx, path, func(cfg *config.Config) {
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return
		}
		if level != levelVar.Level() {
			levelVar.Set(level)
			slog.Info("log level changed", "level", level)
		}
	})
	if err != nil {
		slog.Debug("config reload disabled", "path", path, "error", err)
	}
}
