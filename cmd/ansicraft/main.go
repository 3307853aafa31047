package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/furrysalamander/ansicraft/internal/config"
	"github.com/furrysalamander/ansicraft/internal/game"
	"github.com/furrysalamander/ansicraft/internal/logging"
	"github.com/furrysalamander/ansicraft/internal/monitor"
	"github.com/furrysalamander/ansicraft/internal/queue"
	"github.com/furrysalamander/ansicraft/internal/sshfront"
)

var (
	version = "0.1.0"
	cfgFile string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "ansicraft",
	Short: "SSH gateway streaming a graphical game as terminal half-blocks",
	Long: `ansicraft serves an interactive terminal view of a graphical game over SSH.
Clients authenticate with any public key, wait in an admission queue for a
display slot, and then see the game's framebuffer painted as colored
half-block characters while their keystrokes and mouse events are injected
into the game.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway",
	Run: func(cmd *cobra.Command, args []string) {
		serve()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ansicraft v%s\n", version)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "ansicraft.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", path)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ansicraft.yaml)")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogging sets up structured logging from config. Call after config.Load.
func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stderr
	if cfg.LogFile != "" {
		sink, err := logging.NewFileSink(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v (logging to stderr)\n", cfg.LogFile, err)
		} else {
			output = io.MultiWriter(os.Stderr, sink)
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")
}

func serve() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	initLogging(cfg)

	log.Info("starting gateway",
		"version", version,
		"listen", cfg.ListenAddr,
		"maxSessions", cfg.MaxSessions,
		"game", fmt.Sprintf("%dx%d", cfg.GameWidth, cfg.GameHeight))

	pool := queue.NewPool(cfg.MaxSessions)
	reaper := game.NewReaper(time.Duration(cfg.KillGraceSeconds)*time.Second, cfg.ReaperConcurrency)
	registry := monitor.NewRegistry()

	frontend, err := sshfront.New(cfg, pool, reaper, registry)
	if err != nil {
		log.Error("frontend init failed", "error", err)
		os.Exit(1)
	}

	var statusSrv *monitor.Server
	if cfg.MonitorAddr != "" {
		statusSrv = monitor.New(cfg.MonitorAddr, pool, registry)
		go func() {
			if err := statusSrv.ListenAndServe(); err != nil {
				log.Warn("status feed stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- frontend.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		log.Error("ssh server failed", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	frontend.Shutdown(ctx)
	if statusSrv != nil {
		statusSrv.Shutdown(ctx)
	}
	pool.Close()
	// Let in-flight game kills finish their grace before exiting.
	reaper.Close(ctx)
	log.Info("gateway stopped")
}
