// Package main provides the feedsync binary entry point.
// Feedsync keeps a local feed cache consistent with a remote social store
// through optimistic mutations and live bus events.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plexfeed/feedsync/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "feedsync"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "feedsync",
		Short: "Feed synchronization engine",
		Long: `Feedsync mirrors a social feed locally and keeps it consistent:
mutations apply optimistically and reconcile against the store's
response, and live events stream in over per-post bus channels.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = newLogger(logLevel)
			slog.SetDefault(logger)

			var err error
			cfg, err = loadConfig(configPath)
			return err
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		feedCmd(),
		postCmd(),
		commentCmd(),
		likeCmd(),
		repostCmd(),
		deleteCmd(),
		draftsCmd(),
		watchCmd(),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		c, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return c, nil
	}
	return config.NewLoader(logger).Load()
}
