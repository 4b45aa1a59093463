/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package nzcp

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// RFC 9052 COSE_Sign1
const (
	Sign1Tag         = 18
	sign1TagBytesLen = 1
	sign1Elements    = 4
)

const (
	cborMajorByteString = 2
	cborMajorArray      = 4
	cborMajorMap        = 5
)

var sign1TagBytes = []byte{0xD2}

// decMode rejects duplicate map keys; Unmarshal already rejects trailing bytes.
var decMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		IndefLength:      cbor.IndefLengthAllowed,
		MaxNestedLevels:  32,
		MaxArrayElements: 4096,
		MaxMapPairs:      4096,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// SignedEnvelope holds the parts of a COSE_Sign1 message that take part in verification.
// Protected and Claims are still CBOR encoded.
type SignedEnvelope struct {
	Tagged    bool
	Protected []byte
	Claims    []byte
	Signature []byte
}

// ParseEnvelope decodes a tagged or untagged COSE_Sign1 structure.
func ParseEnvelope(data []byte) (*SignedEnvelope, error) {
	var e SignedEnvelope
	if err := e.UnmarshalCBOR(data); err != nil {
		return nil, decodeError(MsgCBORDecode, err)
	}
	return &e, nil
}

func (e *SignedEnvelope) UnmarshalCBOR(data []byte) error {
	e.Tagged, data = skipTag(data)
	if len(data) == 0 || majorType(data) != cborMajorArray {
		return errors.New("not a COSE_Sign1 array")
	}

	var items []cbor.RawMessage
	if err := decMode.Unmarshal(data, &items); err != nil {
		return err
	}
	if len(items) != sign1Elements {
		return fmt.Errorf("expected %d elements, got %d", sign1Elements, len(items))
	}

	expected := [sign1Elements]byte{cborMajorByteString, cborMajorMap, cborMajorByteString, cborMajorByteString}
	for i, item := range items {
		if len(item) == 0 || majorType(item) != expected[i] {
			return fmt.Errorf("element %d has unexpected type", i)
		}
	}

	// the unprotected header (items[1]) is not used
	if err := decMode.Unmarshal(items[0], &e.Protected); err != nil {
		return fmt.Errorf("protected header: %w", err)
	}
	if err := decMode.Unmarshal(items[2], &e.Claims); err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	if err := decMode.Unmarshal(items[3], &e.Signature); err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	return nil
}

// skipTag strips a leading COSE_Sign1 tag if there is one.
func skipTag(data []byte) (bool, []byte) {
	if len(data) > sign1TagBytesLen && bytes.Equal(data[:sign1TagBytesLen], sign1TagBytes) {
		return true, data[sign1TagBytesLen:]
	}
	return false, data
}

func majorType(raw []byte) byte {
	return raw[0] >> 5
}
