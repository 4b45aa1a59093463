/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kentakayama/nzcp-over-http/internal/domain"
	"github.com/kentakayama/nzcp-over-http/internal/domain/model"
	"github.com/mattn/go-sqlite3"
)

// IncidentRepository handles internal failure persistence.
type IncidentRepository struct {
	db *sql.DB
}

func NewIncidentRepository(db *sql.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

// Create inserts an incident and returns the inserted id.
// A second incident with the same ref fails with domain.ErrDuplicate.
func (r *IncidentRepository) Create(ctx context.Context, i *model.Incident) (int64, error) {
	const q = `
		INSERT INTO incidents (ref, detail, created_at)
		VALUES (?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, q, i.Ref, i.Detail, i.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, fmt.Errorf("insert incident %s: %w", i.Ref, domain.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert incident: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

// FindByRef returns an incident by its correlation ref.
func (r *IncidentRepository) FindByRef(ctx context.Context, ref string) (*model.Incident, error) {
	const q = `
		SELECT id, ref, detail, created_at
		FROM incidents
		WHERE ref = ?
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, q, ref)
	var i model.Incident
	if err := row.Scan(&i.ID, &i.Ref, &i.Detail, &i.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan incident: %w", err)
	}
	return &i, nil
}
