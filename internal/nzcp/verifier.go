/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package nzcp

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Observation describes one finished verification for recorders.
// Claims is set whenever the claims stage succeeded, even if a later stage rejected the pass.
type Observation struct {
	Result  *Result
	Claims  *Claims
	Cause   error
	Elapsed time.Duration
}

// Recorder receives every verdict, e.g. for metrics or an audit log.
// Recorders must not block for long; they run on the request path.
type Recorder interface {
	Record(ctx context.Context, o Observation)
}

// Verifier runs the decode, resolve and verify pipeline.
// It keeps no per-request state and is safe for concurrent use.
type Verifier struct {
	resolver  *TrustResolver
	clock     Clock
	logger    *log.Logger
	tracer    trace.Tracer
	recorders []Recorder
	newRef    func() string
}

type Option func(*Verifier)

func WithClock(c Clock) Option {
	return func(v *Verifier) {
		if c != nil {
			v.clock = c
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(v *Verifier) {
		if t != nil {
			v.tracer = t
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(v *Verifier) {
		if r != nil {
			v.recorders = append(v.recorders, r)
		}
	}
}

// WithRefGenerator replaces the correlation reference generator.
func WithRefGenerator(f func() string) Option {
	return func(v *Verifier) {
		if f != nil {
			v.newRef = f
		}
	}
}

func NewVerifier(fetcher DocumentFetcher, opts ...Option) *Verifier {
	v := &Verifier{
		resolver: NewTrustResolver(fetcher),
		clock:    SystemClock,
		logger:   log.Default(),
		tracer:   otel.Tracer("nzcp-over-http/nzcp"),
		newRef:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

type stages struct {
	header *Header
	claims *Claims
}

// Verify checks a payload of the form "NZCP:/1/<base32>".
// The caller is expected to have checked that shape already.
func (v *Verifier) Verify(ctx context.Context, payload string) *Result {
	start := time.Now()
	ctx, span := v.tracer.Start(ctx, "nzcp.verify")
	defer span.End()

	var st stages
	err := v.runSafely(ctx, payload, &st)

	var res *Result
	switch rej, ok := AsRejection(err); {
	case err == nil:
		res = verified(st.header, st.claims)
		span.SetAttributes(attribute.String("nzcp.issuer", st.claims.Issuer))
	case ok:
		v.logger.Printf("pass rejected: %v", err)
		res = rejected(rej)
		span.SetStatus(codes.Error, rej.Message)
	default:
		ref := v.newRef()
		v.logger.Printf("Fatal Error: %s: %v", ref, err)
		res = internalFailure(ref)
		span.RecordError(err)
		span.SetStatus(codes.Error, "internal failure")
	}
	span.SetAttributes(
		attribute.Bool("nzcp.verified", res.Verified),
		attribute.String("nzcp.outcome", res.Kind.String()),
	)

	obs := Observation{Result: res, Claims: st.claims, Cause: err, Elapsed: time.Since(start)}
	for _, r := range v.recorders {
		r.Record(ctx, obs)
	}
	return res
}

func (v *Verifier) runSafely(ctx context.Context, payload string, st *stages) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in verification pipeline: %v", p)
		}
	}()
	return v.run(ctx, payload, st)
}

func (v *Verifier) run(ctx context.Context, payload string, st *stages) error {
	raw, err := DecodeTransport(payloadBody(payload))
	if err != nil {
		return err
	}
	envelope, err := ParseEnvelope(raw)
	if err != nil {
		return err
	}
	if st.header, err = ExtractHeader(envelope.Protected); err != nil {
		return err
	}
	if st.claims, err = ExtractClaims(envelope.Claims, v.clock); err != nil {
		return err
	}
	key, err := v.resolver.Resolve(ctx, st.header, st.claims)
	if err != nil {
		return err
	}
	return VerifySignature(key, envelope)
}
