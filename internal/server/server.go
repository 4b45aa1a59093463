/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/kentakayama/nzcp-over-http/internal/config"
	"github.com/kentakayama/nzcp-over-http/internal/domain/service"
	"github.com/kentakayama/nzcp-over-http/internal/infra/authority"
	"github.com/kentakayama/nzcp-over-http/internal/infra/sqlite"
	"github.com/kentakayama/nzcp-over-http/internal/metrics"
	"github.com/kentakayama/nzcp-over-http/internal/nzcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires the HTTP listener and request handling stack.
type Server struct {
	cfg       config.ServerConfig
	authority string
	handler   *handler
	http      *http.Server
	db        *sql.DB
	logger    *log.Logger
}

// New constructs a Server using the provided configuration.
func New(ctx context.Context, cfg config.ServerConfig) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Authority.Logger == nil {
		cfg.Authority.Logger = logger
	}

	client, err := authority.NewClient(cfg.Authority)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	client.SetObserver(m)

	var fetcher nzcp.DocumentFetcher = client
	if cfg.Authority.CacheTTL > 0 {
		fetcher = authority.NewCachedFetcher(client, cfg.Authority.CacheTTL)
		logger.Printf("Caching authority document for %s.", cfg.Authority.CacheTTL)
	}

	db, err := sqlite.InitDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	audit := service.NewAudit(sqlite.NewVerificationRepository(db), sqlite.NewIncidentRepository(db), logger)

	verifier := nzcp.NewVerifier(fetcher,
		nzcp.WithLogger(logger),
		nzcp.WithRecorder(m),
		nzcp.WithRecorder(audit),
	)

	h, err := newHandler(verifier, audit, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), logger)
	if err != nil {
		sqlite.CloseDB(db)
		return nil, err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		cfg:       cfg,
		authority: client.URL(),
		handler:   h,
		http:      httpSrv,
		db:        db,
		logger:    logger,
	}, nil
}

// ListenAndServe starts the HTTP server and blocks until it stops.
func (s *Server) ListenAndServe() error {
	s.logger.Printf("Run NZCP verifier on %s, trusting %s.", s.http.Addr, s.authority)

	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully takes down the HTTP server and closes the audit database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	if cerr := sqlite.CloseDB(s.db); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
