// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/redewable/dataroom/pkg/logging"
	"github.com/redewable/dataroom/services/dataroom/client"
	"github.com/redewable/dataroom/services/dataroom/session"
)

var (
	flagBackendURL   string
	flagBackendKey   string
	flagPageURL      string
	flagDataDir      string
	flagPollInterval time.Duration
	flagVerbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "dataroom",
	Short: "Headless data room viewer client",
	Long: `Runs the investor data room client against a hosted backing store:
access gating, session tracking, and continuous reconciliation via the
realtime feed and the fallback poll timer.

The backend endpoint pair comes from --backend-url/--backend-key, from
sbUrl/sbKey parameters embedded in --page-url, or from the pair persisted
by a previous run.`,
	RunE: runViewer,
}

func init() {
	rootCmd.Flags().StringVar(&flagBackendURL, "backend-url", os.Getenv("DATAROOM_BACKEND_URL"), "backing store base URL")
	rootCmd.Flags().StringVar(&flagBackendKey, "backend-key", os.Getenv("DATAROOM_BACKEND_KEY"), "backing store API key")
	rootCmd.Flags().StringVar(&flagPageURL, "page-url", "", "page URL carrying sbUrl/sbKey or credential parameters")
	rootCmd.Flags().StringVar(&flagDataDir, "data-dir", defaultDataDir(), "directory for local state")
	rootCmd.Flags().DurationVar(&flagPollInterval, "poll-interval", 0, "fallback poll period (default 30s)")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dataroom"
	}
	return filepath.Join(home, ".dataroom")
}

func runViewer(cmd *cobra.Command, args []string) error {
	level := logging.LevelInfo
	if flagVerbose {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   level,
		Service: "dataroom",
		// Interactive terminals get text; everything else gets JSON for
		// log collection.
		JSON: !isatty.IsTerminal(os.Stderr.Fd()),
	})
	defer logger.Close()

	c, err := client.New(client.Options{
		DataDir:      flagDataDir,
		BackendURL:   flagBackendURL,
		BackendKey:   flagBackendKey,
		PageURL:      flagPageURL,
		PollInterval: flagPollInterval,
		Env:          session.Env{UserAgent: "dataroom-cli/" + version},
		Logger:       logger.Slog(),
	})
	if err != nil {
		return fmt.Errorf("start client: %w", err)
	}

	logger.Info("data room client starting", "data_dir", flagDataDir)
	c.Boot()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			// Operator-requested refresh.
			logger.Info("refresh requested")
			c.Refresh()
			continue
		}
		logger.Info("shutting down", "signal", sig.String())
		break
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.Close(ctx)
}
