package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mason50x/sentinel/internal/config"
	"github.com/mason50x/sentinel/internal/logging"
	"github.com/mason50x/sentinel/internal/server"
	"github.com/mason50x/sentinel/internal/tracker"
	"github.com/mason50x/sentinel/internal/version"
	"github.com/mason50x/sentinel/internal/watchdog"
)

var (
	cfgFile string
	port    int
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel - agent activity tracker",
	Long: `Sentinel tracks whether a coding agent is currently working and exposes
that state over HTTP, so a browser extension can block distracting sites
while the agent is idle.

Agent hooks POST lifecycle events to /hook; consumers poll /status or
subscribe to /ws.`,
	Version: version.Full(),
}

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the sentinel server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("sentinel %s\n", version.Full())
		if version.BuildDate != "unknown" {
			fmt.Printf("Build date: %s\n", version.BuildDate)
		}
		fmt.Printf("Go version: %s\n", version.GoVersion)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "sentinel.json", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	serverCmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP server port (overrides config)")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)

	// If no command is specified, default to server
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return serverCmd.RunE(cmd, args)
	}
}

func runServer() error {
	logging.SetVerbose(verbose)
	log := logging.NewLogger("sentinel")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if port != 0 {
		cfg.Port = port
	}

	tr := tracker.New(tracker.Options{
		InactivityTimeout: cfg.InactivityTimeout(),
		HistorySize:       cfg.HistorySize,
	})

	var wd *watchdog.Watchdog
	if cfg.Watchdog.Enabled {
		wd = watchdog.New(tr, cfg.Watchdog.Schedule, logging.NewLogger("watchdog"))
	}

	srv := server.New(cfg, tr, wd, logging.NewLogger("server"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("received signal")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info("stopped gracefully")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
