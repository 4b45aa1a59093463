/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kentakayama/nzcp-over-http/internal/domain"
	"github.com/kentakayama/nzcp-over-http/internal/domain/model"
	"github.com/kentakayama/nzcp-over-http/internal/nzcp"
)

const defaultRecentLimit = 20

// Audit stores every verdict and every internal failure.
// It implements nzcp.Recorder; storage errors are logged and never affect a verdict.
type Audit struct {
	verifications VerificationRepository
	incidents     IncidentRepository
	logger        *log.Logger
	now           func() time.Time
}

var _ nzcp.Recorder = (*Audit)(nil)

func NewAudit(verifications VerificationRepository, incidents IncidentRepository, logger *log.Logger) *Audit {
	if logger == nil {
		logger = log.Default()
	}
	return &Audit{
		verifications: verifications,
		incidents:     incidents,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (a *Audit) Record(ctx context.Context, o nzcp.Observation) {
	if o.Result == nil {
		return
	}
	// the request may already be gone; the audit row must still be written
	ctx = context.WithoutCancel(ctx)
	now := a.now()

	v := &model.Verification{
		Verified:  o.Result.Verified,
		ErrorKind: o.Result.Outcome(),
		Message:   o.Result.Reason(),
		CreatedAt: now,
	}
	if o.Claims != nil {
		v.JTI = o.Claims.ID
		v.Issuer = o.Claims.Issuer
	}
	if _, err := a.verifications.Create(ctx, v); err != nil {
		a.logger.Printf("Failed to record verification: %v", err)
	}

	if o.Result.Kind != nzcp.KindInternal {
		return
	}
	detail := "unknown"
	if o.Cause != nil {
		detail = o.Cause.Error()
	}
	incident := &model.Incident{Ref: o.Result.Ref, Detail: detail, CreatedAt: now}
	if _, err := a.incidents.Create(ctx, incident); err != nil {
		a.logger.Printf("Failed to record incident %s: %v", o.Result.Ref, err)
	}
}

// Verification returns the verdict recorded under id, or domain.ErrNotFound.
func (a *Audit) Verification(ctx context.Context, id int64) (*model.Verification, error) {
	v, err := a.verifications.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("verification %d: %w", id, domain.ErrNotFound)
	}
	return v, nil
}

// Incident returns the incident recorded under ref, or domain.ErrNotFound.
func (a *Audit) Incident(ctx context.Context, ref string) (*model.Incident, error) {
	i, err := a.incidents.FindByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if i == nil {
		return nil, fmt.Errorf("incident %s: %w", ref, domain.ErrNotFound)
	}
	return i, nil
}

// Summary is an overview of recorded verdicts.
type Summary struct {
	Counts map[string]int64      `json:"counts"`
	Recent []*model.Verification `json:"recent"`
}

// Summarise returns per-outcome counts and the most recent verdicts.
func (a *Audit) Summarise(ctx context.Context, limit int) (*Summary, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	counts, err := a.verifications.CountByOutcome(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := a.verifications.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &Summary{Counts: counts, Recent: recent}, nil
}
