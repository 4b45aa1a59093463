/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package resources

import (
	_ "embed"
)

var (
	// DID document in the shape the NZCP trust authority publishes at /.well-known/did.json
	//go:embed did.json
	AuthorityDIDDocument []byte
)
