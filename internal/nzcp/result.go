/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package nzcp

import "fmt"

const (
	ErrorVerificationFailure = "verification failure"
	ErrorInternal            = "Internal Server Error"
)

// Result is the verdict for one pass.
// Exactly one of Metadata (verified) or Error/Message (rejected) is set.
type Result struct {
	Verified bool      `json:"verified"`
	Metadata *Metadata `json:"metadata,omitempty"`
	Error    string    `json:"error,omitempty"`
	Message  []string  `json:"message,omitempty"`

	Kind Kind   `json:"-"`
	Ref  string `json:"-"`
}

// OutcomeVerified names a verified pass wherever verdicts are counted.
// Rejections are named by their Kind.
const OutcomeVerified = "verified"

// Outcome returns OutcomeVerified or the rejection kind.
func (r *Result) Outcome() string {
	if r.Verified {
		return OutcomeVerified
	}
	return r.Kind.String()
}

type Metadata struct {
	Header  *Header `json:"header"`
	Payload *Claims `json:"payload"`
}

func verified(header *Header, claims *Claims) *Result {
	return &Result{
		Verified: true,
		Metadata: &Metadata{Header: header, Payload: claims},
		Kind:     KindNone,
	}
}

func rejected(e *Error) *Result {
	return &Result{
		Verified: false,
		Error:    ErrorVerificationFailure,
		Message:  []string{e.Message},
		Kind:     e.Kind,
	}
}

func internalFailure(ref string) *Result {
	return &Result{
		Verified: false,
		Error:    ErrorInternal,
		Message:  []string{fmt.Sprintf("An unknown error occurred. Please contact the administrator with ref: %s.", ref)},
		Kind:     KindInternal,
		Ref:      ref,
	}
}

// Reason returns the first rejection message, or "" for a verified pass.
func (r *Result) Reason() string {
	if r == nil || len(r.Message) == 0 {
		return ""
	}
	return r.Message[0]
}
