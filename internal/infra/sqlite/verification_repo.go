/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kentakayama/nzcp-over-http/internal/domain/model"
)

// VerificationRepository handles verdict audit persistence.
type VerificationRepository struct {
	db *sql.DB
}

func NewVerificationRepository(db *sql.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Create inserts a verdict and returns the inserted id.
func (r *VerificationRepository) Create(ctx context.Context, v *model.Verification) (int64, error) {
	const q = `
		INSERT INTO verifications (jti, issuer, verified, error_kind, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, q, nullString(v.JTI), nullString(v.Issuer), v.Verified, v.ErrorKind, v.Message, v.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert verification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

// FindByID returns a verdict by its ID.
func (r *VerificationRepository) FindByID(ctx context.Context, id int64) (*model.Verification, error) {
	const q = `
		SELECT id, jti, issuer, verified, error_kind, message, created_at
		FROM verifications
		WHERE id = ?
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, q, id)
	v, err := scanVerification(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan verification: %w", err)
	}
	return v, nil
}

// ListRecent returns up to limit verdicts, newest first.
func (r *VerificationRepository) ListRecent(ctx context.Context, limit int) ([]*model.Verification, error) {
	const q = `
		SELECT id, jti, issuer, verified, error_kind, message, created_at
		FROM verifications
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query verifications: %w", err)
	}
	defer rows.Close()

	var out []*model.Verification
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// CountByOutcome returns the number of verdicts per error kind ("verified" for verified passes).
func (r *VerificationRepository) CountByOutcome(ctx context.Context) (map[string]int64, error) {
	const q = `
		SELECT error_kind, COUNT(*)
		FROM verifications
		GROUP BY error_kind
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query outcome counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[kind] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return counts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVerification(s scanner) (*model.Verification, error) {
	var v model.Verification
	var jti, issuer sql.NullString
	if err := s.Scan(&v.ID, &jti, &issuer, &v.Verified, &v.ErrorKind, &v.Message, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.JTI = jti.String
	v.Issuer = issuer.String
	return &v, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
