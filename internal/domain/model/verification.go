/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// Verification is the audit record of one verdict.
// JTI and Issuer are empty when the pass was rejected before its claims were decoded.
type Verification struct {
	ID        int64     `json:"id"`
	JTI       string    `json:"jti,omitempty"`
	Issuer    string    `json:"iss,omitempty"`
	Verified  bool      `json:"verified"`
	ErrorKind string    `json:"kind"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
