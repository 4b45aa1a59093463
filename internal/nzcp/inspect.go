/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package nzcp

import (
	"encoding/hex"

	"github.com/kentakayama/nzcp-over-http/internal/util"
)

// Inspect decodes a payload without checking time, trust or signature and
// renders the protected header and claims as JSON. Intended for diagnostics only.
func Inspect(payload string) (string, error) {
	raw, err := DecodeTransport(payloadBody(payload))
	if err != nil {
		return "", err
	}
	envelope, err := ParseEnvelope(raw)
	if err != nil {
		return "", err
	}

	var protected, claims any
	if err := decMode.Unmarshal(envelope.Protected, &protected); err != nil {
		return "", decodeError(MsgDecodeHeaders, err)
	}
	if err := decMode.Unmarshal(envelope.Claims, &claims); err != nil {
		return "", decodeError(MsgDecodePayload, err)
	}

	return util.RenderCBORPretty(map[string]any{
		"tagged":    envelope.Tagged,
		"protected": protected,
		"payload":   claims,
		"signature": hex.EncodeToString(envelope.Signature),
	})
}
