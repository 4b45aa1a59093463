/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package authority

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/kentakayama/nzcp-over-http/internal/config"
	"github.com/kentakayama/nzcp-over-http/internal/nzcp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultRetryBackoff = 200 * time.Millisecond
	defaultUserAgent    = "nzcp-over-http/authority-client"
	maxDocumentBytes    = 1 << 20
)

var (
	ErrNoURL          = errors.New("authority URL is not configured")
	ErrDocumentTooBig = errors.New("authority document exceeds size limit")
)

// FetchObserver is told how long each document fetch took.
type FetchObserver interface {
	ObserveFetch(elapsed time.Duration, err error)
}

// Client fetches the trust authority's DID document over HTTP.
// It implements nzcp.DocumentFetcher.
type Client struct {
	url        *url.URL
	httpClient *http.Client
	timeout    time.Duration
	retries    int
	backoff    time.Duration
	logger     *log.Logger
	tracer     trace.Tracer
	observer   FetchObserver
}

var _ nzcp.DocumentFetcher = (*Client)(nil)

func NewClient(cfg config.AuthorityConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse authority URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported authority URL scheme %q", u.Scheme)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}

	transport := &http.Transport{}
	if u.Scheme == "https" {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureTLS}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Client{
		url: u,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		timeout: timeout,
		retries: retries,
		backoff: defaultRetryBackoff,
		logger:  logger,
		tracer:  otel.Tracer("nzcp-over-http/authority"),
	}, nil
}

// SetObserver registers an observer for fetch durations.
func (c *Client) SetObserver(o FetchObserver) {
	c.observer = o
}

// URL returns the configured document location.
func (c *Client) URL() string {
	return c.url.String()
}

// FetchDocument retrieves and decodes the DID document, retrying transport errors and 5xx responses.
func (c *Client) FetchDocument(ctx context.Context) (*nzcp.DIDDocument, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "authority.fetch", trace.WithAttributes(
		attribute.String("authority.url", c.url.String()),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	doc, err := c.fetchWithRetry(ctx, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		c.logger.Printf("Failed to fetch authority document from %s: %v", c.url, err)
	}
	if c.observer != nil {
		c.observer.ObserveFetch(time.Since(start), err)
	}
	return doc, err
}

func (c *Client) fetchWithRetry(ctx context.Context, span trace.Span) (*nzcp.DIDDocument, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
			c.logger.Printf("Retrying authority fetch (attempt %d/%d): %v", attempt+1, c.retries+1, lastErr)
		}
		span.SetAttributes(attribute.Int("authority.attempts", attempt+1))

		doc, retryable, err := c.fetchOnce(ctx)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// fetchOnce performs one GET and reports whether a failure is worth retrying.
func (c *Client) fetchOnce(ctx context.Context) (*nzcp.DIDDocument, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url.String(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resp.StatusCode >= 500, fmt.Errorf("unexpected authority status %s: %s", resp.Status, bytes.TrimSpace(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("read response body: %w", err)
	}
	if len(body) > maxDocumentBytes {
		return nil, false, ErrDocumentTooBig
	}

	var doc nzcp.DIDDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, false, fmt.Errorf("decode DID document: %w", err)
	}
	return &doc, false, nil
}
