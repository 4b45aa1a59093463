/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package nzcp

import (
	"errors"

	"github.com/fxamacker/cbor/v2"
)

// RFC 9052 section 4.4
const sign1Context = "Signature1"

// SigStructure encodes the bytes a COSE_Sign1 signer signs:
// ["Signature1", protected, external_aad, payload].
func SigStructure(protected, payload []byte) ([]byte, error) {
	if protected == nil {
		protected = []byte{}
	}
	if payload == nil {
		payload = []byte{}
	}
	return cbor.Marshal([]any{
		sign1Context,
		protected,
		[]byte{}, // external_aad
		payload,
	})
}

// VerifySignature checks the envelope signature against the resolved key.
func VerifySignature(key *TrustedKey, envelope *SignedEnvelope) error {
	if key == nil || envelope == nil {
		return errors.New("nothing to verify")
	}

	coseKey, err := key.COSEKey()
	if err != nil {
		return signatureError(err)
	}
	verifier, err := coseKey.Verifier()
	if err != nil {
		return signatureError(err)
	}

	toBeSigned, err := SigStructure(envelope.Protected, envelope.Claims)
	if err != nil {
		return err
	}
	if err := verifier.Verify(toBeSigned, envelope.Signature); err != nil {
		return signatureError(err)
	}
	return nil
}
