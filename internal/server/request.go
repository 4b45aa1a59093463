/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
)

const (
	msgPayloadPattern     = "payload should match the pattern: NZCP:/{version}/{base32-encoded-string}"
	msgInvalidRequestBody = "invalid request body"
)

var payloadPattern = regexp.MustCompile(`^NZCP:/1/[A-Z2-7]+=*$`)

// verifyRequest is the body of POST /nzcp/v1/verify.
type verifyRequest struct {
	Payload string `json:"payload" validate:"required,nzcp_payload"`
}

var requestValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("nzcp_payload", func(fl validator.FieldLevel) bool {
		return payloadPattern.MatchString(fl.Field().String())
	})
	return v
}

// validate returns the messages reported to the client, or nil when req is acceptable.
func (req *verifyRequest) validate() []string {
	err := requestValidator.Struct(req)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []string{msgInvalidRequestBody}
	}
	messages := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		switch fe.StructField() {
		case "Payload":
			messages = append(messages, msgPayloadPattern)
		default:
			messages = append(messages, fe.Field()+" is invalid")
		}
	}
	return messages
}
