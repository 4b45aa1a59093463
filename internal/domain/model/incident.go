/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// Incident is an internal failure, keyed by the correlation ref handed to the caller.
type Incident struct {
	ID        int64
	Ref       string
	Detail    string
	CreatedAt time.Time
}
