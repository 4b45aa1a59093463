/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package nzcp

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/kentakayama/nzcp-over-http/internal/util"
)

const uuidURNPrefix = "urn:uuid:"

// Claims is the decoded content of a pass.
// CredentialSubject is the "vc" claim, passed through without schema checks.
type Claims struct {
	Issuer            string `json:"iss"`
	Expiry            int64  `json:"exp"`
	NotBefore         int64  `json:"nbf"`
	ID                string `json:"jti"`
	CredentialSubject any    `json:"vc"`
}

// ExpiresAt returns the expiry as a time.Time.
func (c *Claims) ExpiresAt() time.Time {
	return time.Unix(c.Expiry, 0)
}

// ActiveFrom returns the not-before time as a time.Time.
func (c *Claims) ActiveFrom() time.Time {
	return time.Unix(c.NotBefore, 0)
}

// RFC 8392 CWT claims used by NZCP
type cwtClaims struct {
	Issuer    *string         `cbor:"1,keyasint"`
	Expiry    *int64          `cbor:"4,keyasint"`
	NotBefore *int64          `cbor:"5,keyasint"`
	CTI       *[]byte         `cbor:"7,keyasint"`
	VC        cbor.RawMessage `cbor:"vc"`
}

// ExtractClaims decodes the claims bytes and applies the validity window against clock.
func ExtractClaims(data []byte, clock Clock) (*Claims, error) {
	claims, err := decodeClaims(data)
	if err != nil {
		return nil, decodeError(MsgDecodePayload, err)
	}

	now := clock.Now()
	// the pass must expire strictly after now; a pass is active from nbf inclusive
	if !now.Before(claims.ExpiresAt()) {
		return nil, decodeError(MsgPassExpired, fmt.Errorf("expired at %s", claims.ExpiresAt().UTC().Format(time.RFC3339)))
	}
	if now.Before(claims.ActiveFrom()) {
		return nil, decodeError(MsgPassNotYetActive, fmt.Errorf("active from %s", claims.ActiveFrom().UTC().Format(time.RFC3339)))
	}
	return claims, nil
}

func decodeClaims(data []byte) (*Claims, error) {
	if len(data) == 0 || majorType(data) != cborMajorMap {
		return nil, errors.New("claims are not a map")
	}

	var c cwtClaims
	if err := decMode.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Issuer == nil || *c.Issuer == "" {
		return nil, errors.New("iss is missing")
	}
	if c.Expiry == nil {
		return nil, errors.New("exp is missing")
	}
	if c.NotBefore == nil {
		return nil, errors.New("nbf is missing")
	}
	if c.CTI == nil {
		return nil, errors.New("cti is missing")
	}
	id, err := uuid.FromBytes(*c.CTI)
	if err != nil {
		return nil, fmt.Errorf("cti: %w", err)
	}

	var vc any
	if c.VC != nil {
		var decoded any
		if err := decMode.Unmarshal(c.VC, &decoded); err != nil {
			return nil, fmt.Errorf("vc: %w", err)
		}
		if vc, err = util.NormaliseCBOR(decoded); err != nil {
			return nil, fmt.Errorf("vc: %w", err)
		}
	}

	return &Claims{
		Issuer:            *c.Issuer,
		Expiry:            *c.Expiry,
		NotBefore:         *c.NotBefore,
		ID:                uuidURNPrefix + id.String(),
		CredentialSubject: vc,
	}, nil
}
