/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Command nzcp-verify verifies NZCP passes given as arguments or as stdin lines
// and prints one JSON result per line, in input order.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/kentakayama/nzcp-over-http/internal/config"
	"github.com/kentakayama/nzcp-over-http/internal/infra/authority"
	"github.com/kentakayama/nzcp-over-http/internal/nzcp"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nzcp-verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	authorityURL := fs.String("authority", os.Getenv("AUTHORITY_URL"), "URL of the trust authority DID document")
	timeout := fs.Duration("timeout", config.DefaultAuthorityTimeout, "authority fetch timeout")
	retries := fs.Int("retries", 0, "authority fetch retries on transport errors and 5xx")
	insecure := fs.Bool("insecure", false, "skip TLS verification of the authority (development only)")
	concurrency := fs.Int("concurrency", 4, "number of passes verified at once")
	inspect := fs.Bool("inspect", false, "decode and print passes without verifying them")
	verbose := fs.Bool("v", false, "log rejections and authority fetches to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(stderr, "[nzcp-verify] ", log.LstdFlags|log.Lmsgprefix)
	}

	payloads := fs.Args()
	if len(payloads) == 0 {
		var err error
		if payloads, err = readLines(stdin); err != nil {
			fmt.Fprintf(stderr, "read stdin: %v\n", err)
			return 2
		}
	}
	if len(payloads) == 0 {
		fmt.Fprintln(stderr, "no payloads given")
		return 2
	}

	if *inspect {
		return inspectAll(payloads, stdout, stderr)
	}

	client, err := authority.NewClient(config.AuthorityConfig{
		URL:         *authorityURL,
		Timeout:     *timeout,
		Retries:     *retries,
		InsecureTLS: *insecure,
		Logger:      logger,
	})
	if err != nil {
		fmt.Fprintf(stderr, "authority: %v\n", err)
		return 2
	}
	// one batch shares one document
	fetcher := authority.NewCachedFetcher(client, time.Minute)
	verifier := nzcp.NewVerifier(fetcher, nzcp.WithLogger(logger))

	results := verifyAll(ctx, verifier, payloads, *concurrency)

	status := 0
	enc := json.NewEncoder(stdout)
	for _, res := range results {
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(stderr, "write result: %v\n", err)
			return 2
		}
		if !res.Verified {
			status = 1
		}
	}
	return status
}

// verifyAll verifies payloads with at most limit in flight and keeps input order.
func verifyAll(ctx context.Context, v *nzcp.Verifier, payloads []string, limit int) []*nzcp.Result {
	if limit < 1 {
		limit = 1
	}
	results := make([]*nzcp.Result, len(payloads))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range payloads {
		g.Go(func() error {
			results[i] = v.Verify(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func inspectAll(payloads []string, stdout, stderr io.Writer) int {
	status := 0
	for _, p := range payloads {
		out, err := nzcp.Inspect(p)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", abbreviate(p), err)
			status = 1
			continue
		}
		fmt.Fprintln(stdout, out)
	}
	return status
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func abbreviate(s string) string {
	if len(s) <= 24 {
		return s
	}
	return s[:24] + "..."
}
