/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package nzcp

import (
	"errors"
	"fmt"
)

// Kind classifies why a pass was not verified.
type Kind int

const (
	KindNone Kind = iota
	KindDecode
	KindTrust
	KindSignature
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindDecode:
		return "decode"
	case KindTrust:
		return "trust"
	case KindSignature:
		return "signature"
	case KindInternal:
		return "internal"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// rejection reasons returned to the caller verbatim
const (
	MsgBase32Decode       = "unable to base32 decode"
	MsgCBORDecode         = "unable to decode cbor"
	MsgDecodeHeaders      = "unable to decode headers"
	MsgExtractHeaders     = "unable to extract headers"
	MsgDecodePayload      = "unable to decode payload"
	MsgPassExpired        = "pass expired"
	MsgPassNotYetActive   = "pass not yet active"
	MsgFetchAuthority     = "unable to fetch authority DID"
	MsgUntrustedIssuer    = "not a trusted issuer"
	MsgKeyMismatch        = "absolute key mismatch"
	MsgVerificationMethod = "verification method failure"
	MsgSignatureInvalid   = "elliptical signature verification failed"
)

// Error is a deliberate rejection raised by one of the pipeline stages.
// Err keeps the underlying cause for server-side logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func decodeError(msg string, cause error) error {
	return &Error{Kind: KindDecode, Message: msg, Err: cause}
}

func trustError(msg string, cause error) error {
	return &Error{Kind: KindTrust, Message: msg, Err: cause}
}

func signatureError(cause error) error {
	return &Error{Kind: KindSignature, Message: MsgSignatureInvalid, Err: cause}
}

// AsRejection reports whether err carries a deliberate rejection.
func AsRejection(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindNone && e.Kind != KindInternal {
		return e, true
	}
	return nil, false
}
