/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package nzcp

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
)

var rawBase32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// unusedBits maps the length of a final partial 8-character group to the
// number of low bits of its last character that carry no data.
// Lengths 1, 3 and 6 cannot end on a byte boundary.
var unusedBits = map[int]uint{0: 0, 2: 2, 4: 4, 5: 1, 7: 3}

// DecodeTransport reverses the RFC 4648 base32 transport encoding.
// Trailing '=' padding is optional, but when present it must complete the last group.
func DecodeTransport(body string) ([]byte, error) {
	trimmed := strings.TrimRight(body, "=")
	if trimmed == "" {
		return nil, decodeError(MsgBase32Decode, errors.New("empty body"))
	}
	// encoding/base32 silently skips CR and LF, so check the alphabet first
	for i := 0; i < len(trimmed); i++ {
		if base32Value(trimmed[i]) < 0 {
			return nil, decodeError(MsgBase32Decode, fmt.Errorf("illegal character %q at offset %d", trimmed[i], i))
		}
	}

	// encoding/base32 drops a dangling final group of 1, 3 or 6 characters
	rem := len(trimmed) % 8
	unused, ok := unusedBits[rem]
	if !ok {
		return nil, decodeError(MsgBase32Decode, fmt.Errorf("%d trailing characters do not form a whole byte", rem))
	}
	if padding := len(body) - len(trimmed); padding > 0 && (rem == 0 || padding != 8-rem) {
		return nil, decodeError(MsgBase32Decode, fmt.Errorf("%d padding characters do not complete the last group", padding))
	}
	if last := base32Value(trimmed[len(trimmed)-1]); last&(1<<unused-1) != 0 {
		return nil, decodeError(MsgBase32Decode, errors.New("non-zero trailing bits"))
	}

	raw, err := rawBase32.DecodeString(trimmed)
	if err != nil {
		return nil, decodeError(MsgBase32Decode, err)
	}
	return raw, nil
}

// base32Value returns the 5-bit value of an RFC 4648 alphabet character, or -1.
func base32Value(c byte) int {
	switch {
	case c >= 'A' && c <= 'Z':
		return int(c - 'A')
	case c >= '2' && c <= '7':
		return int(c-'2') + 26
	default:
		return -1
	}
}

// payloadBody returns the part of "NZCP:/1/<body>" after the last slash.
func payloadBody(payload string) string {
	if i := strings.LastIndexByte(payload, '/'); i >= 0 {
		return payload[i+1:]
	}
	return payload
}
