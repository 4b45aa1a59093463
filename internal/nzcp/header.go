/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package nzcp

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

// AlgorithmName is the only signature algorithm a pass may declare.
const AlgorithmName = "ES256"

// Header is the credential metadata carried in the protected header.
type Header struct {
	KeyID     string `json:"kid"`
	Algorithm string `json:"alg"`
}

// protectedHeader mirrors the COSE header labels we need (RFC 9052 section 3.1).
type protectedHeader struct {
	Alg *int64  `cbor:"1,keyasint"`
	Kid *[]byte `cbor:"4,keyasint"`
}

// ExtractHeader decodes the protected header bytes of a pass.
func ExtractHeader(protected []byte) (*Header, error) {
	if len(protected) == 0 || majorType(protected) != cborMajorMap {
		return nil, decodeError(MsgDecodeHeaders, errors.New("protected header is not a map"))
	}

	var h protectedHeader
	if err := decMode.Unmarshal(protected, &h); err != nil {
		// a present but wrong-typed label lands here too
		var typeErr *cbor.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, decodeError(MsgExtractHeaders, err)
		}
		return nil, decodeError(MsgDecodeHeaders, err)
	}

	if h.Alg == nil {
		return nil, decodeError(MsgExtractHeaders, errors.New("alg is missing"))
	}
	if cose.Algorithm(*h.Alg) != cose.AlgorithmES256 {
		return nil, decodeError(MsgExtractHeaders, fmt.Errorf("unsupported alg %d", *h.Alg))
	}
	if h.Kid == nil || len(*h.Kid) == 0 {
		return nil, decodeError(MsgExtractHeaders, errors.New("kid is missing"))
	}
	if !utf8.Valid(*h.Kid) {
		return nil, decodeError(MsgExtractHeaders, errors.New("kid is not UTF-8"))
	}

	return &Header{
		KeyID:     string(*h.Kid),
		Algorithm: AlgorithmName,
	}, nil
}
