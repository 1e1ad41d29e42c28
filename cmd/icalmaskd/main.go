// icalmaskd serves privacy-scrubbed versions of remote calendar feeds.
// Each path in the configuration maps to an upstream feed URL; subscribing a
// calendar client to http://<listen>/<path> yields the anonymized or
// filtered rendition of that feed.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/calmux/icalmask/config"
	"github.com/calmux/icalmask/internal/upstream"
	"github.com/calmux/icalmask/server"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "icalmaskd",
		Usage: "Anonymize the contents of calendar feed URLs while keeping the time slots.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "path to the YAML configuration file",
				EnvVars:  []string{"ICALMASK_CONFIG"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "listen address, overrides the config file",
				EnvVars: []string{"ICALMASK_LISTEN"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "log level: debug, info, warn, error",
				EnvVars: []string{"ICALMASK_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "reload the configuration when the file changes",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger, err := setupLogger(c.String("log-level"))
	if err != nil {
		return err
	}

	cfgPath := c.String("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", cfgPath, err)
	}
	listen := cfg.Listen
	if override := c.String("listen"); override != "" {
		listen = override
	}

	fetcher := upstream.New(upstream.WithLogger(logger))
	srv := server.New(cfg, fetcher, server.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.Bool("watch") {
		watcher, err := config.NewWatcher(cfgPath, srv.UpdateConfig, config.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("watching config %s: %w", cfgPath, err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("config watcher stopped", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              listen,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			"addr", listen,
			"calendars", len(cfg.Calendars))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func setupLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger, nil
}
