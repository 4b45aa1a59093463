/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package service

import (
	"context"

	"github.com/kentakayama/nzcp-over-http/internal/domain/model"
)

// VerificationRepository defines the interface for verdict audit persistence.
type VerificationRepository interface {
	Create(ctx context.Context, v *model.Verification) (int64, error)
	FindByID(ctx context.Context, id int64) (*model.Verification, error)
	ListRecent(ctx context.Context, limit int) ([]*model.Verification, error)
	CountByOutcome(ctx context.Context) (map[string]int64, error)
}

// IncidentRepository defines the interface for internal failure persistence.
type IncidentRepository interface {
	Create(ctx context.Context, i *model.Incident) (int64, error)
	FindByRef(ctx context.Context, ref string) (*model.Incident, error)
}
