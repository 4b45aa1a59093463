/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kentakayama/nzcp-over-http/internal/config"
	"github.com/kentakayama/nzcp-over-http/internal/server"
)

func main() {
	logger := log.New(os.Stderr, "[nzcp] ", log.LstdFlags|log.Lmsgprefix)

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	cfg.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to start: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatalf("server error: %v", err)
		}
		return
	case <-ctx.Done():
	}

	logger.Printf("Shutting down server gracefully.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("graceful shutdown failed: %v", err)
	}
	logger.Printf("Server stopped.")
}
