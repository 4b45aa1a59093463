/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package nzcp

import (
	"context"
	"crypto/ecdh"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kentakayama/nzcp-over-http/internal/util"
	"github.com/veraison/go-cose"
)

const (
	VerificationMethodType = "JsonWebKey2020"
	coordinateSize         = 32
)

// DIDDocument is the part of a W3C DID document the resolver inspects.
type DIDDocument struct {
	ID                 string               `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	// entries may be references (strings) or embedded methods (objects)
	AssertionMethod []json.RawMessage `json:"assertionMethod"`
}

type VerificationMethod struct {
	ID           string `json:"id"`
	Controller   string `json:"controller"`
	Type         string `json:"type"`
	PublicKeyJwk *JWK   `json:"publicKeyJwk,omitempty"`
}

// JWK is an EC public key as published in the document.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// AssertionMethodRefs returns the string references listed in assertionMethod.
func (d *DIDDocument) AssertionMethodRefs() []string {
	refs := make([]string, 0, len(d.AssertionMethod))
	for _, raw := range d.AssertionMethod {
		var ref string
		if err := json.Unmarshal(raw, &ref); err == nil {
			refs = append(refs, ref)
		}
	}
	return refs
}

// DocumentFetcher retrieves the trust authority's DID document.
// Implementations fetch from a fixed, configured location.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context) (*DIDDocument, error)
}

// TrustedKey is the issuer's P-256 public key for one verification.
type TrustedKey struct {
	Reference string
	X         []byte
	Y         []byte
}

// COSEKey converts the key into a go-cose ES256 verification key.
func (k *TrustedKey) COSEKey() (*cose.Key, error) {
	return cose.NewKeyEC2(cose.AlgorithmES256, k.X, k.Y, nil)
}

// TrustResolver resolves the signing key of a pass from the authority's DID document.
type TrustResolver struct {
	fetcher DocumentFetcher
}

func NewTrustResolver(fetcher DocumentFetcher) *TrustResolver {
	return &TrustResolver{fetcher: fetcher}
}

// KeyReference builds the absolute key reference "iss#kid".
func KeyReference(issuer, kid string) string {
	return issuer + "#" + kid
}

// Resolve performs one document fetch and returns the key the pass must be signed with.
func (r *TrustResolver) Resolve(ctx context.Context, header *Header, claims *Claims) (*TrustedKey, error) {
	if r.fetcher == nil {
		return nil, errors.New("trust resolver has no document fetcher")
	}
	ref := KeyReference(claims.Issuer, header.KeyID)

	doc, err := r.fetcher.FetchDocument(ctx)
	if err != nil || doc == nil {
		return nil, trustError(MsgFetchAuthority, err)
	}

	if doc.ID != claims.Issuer {
		return nil, trustError(MsgUntrustedIssuer, fmt.Errorf("document id %q, issuer %q", doc.ID, claims.Issuer))
	}

	if !util.NewSetOf(doc.AssertionMethodRefs()...).Has(ref) {
		return nil, trustError(MsgKeyMismatch, fmt.Errorf("%q is not an assertion method", ref))
	}

	if len(doc.VerificationMethod) == 0 {
		return nil, trustError(MsgVerificationMethod, errors.New("no verification method"))
	}
	vm := doc.VerificationMethod[0]
	if vm.Type != VerificationMethodType {
		return nil, trustError(MsgVerificationMethod, fmt.Errorf("unexpected type %q", vm.Type))
	}
	key, err := trustedKeyFromJWK(vm.PublicKeyJwk)
	if err != nil {
		return nil, trustError(MsgVerificationMethod, err)
	}
	key.Reference = ref
	return key, nil
}

func trustedKeyFromJWK(jwk *JWK) (*TrustedKey, error) {
	if jwk == nil {
		return nil, errors.New("publicKeyJwk is missing")
	}
	if jwk.Kty != "" && jwk.Kty != "EC" {
		return nil, fmt.Errorf("unexpected kty %q", jwk.Kty)
	}
	if jwk.Crv != "" && jwk.Crv != "P-256" {
		return nil, fmt.Errorf("unexpected crv %q", jwk.Crv)
	}
	x, err := decodeCoordinate(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("x: %w", err)
	}
	y, err := decodeCoordinate(jwk.Y)
	if err != nil {
		return nil, fmt.Errorf("y: %w", err)
	}

	// rejects points that are not on P-256
	point := make([]byte, 0, 1+2*coordinateSize)
	point = append(point, 0x04)
	point = append(point, x...)
	point = append(point, y...)
	if _, err := ecdh.P256().NewPublicKey(point); err != nil {
		return nil, err
	}
	return &TrustedKey{X: x, Y: y}, nil
}

// decodeCoordinate accepts base64url and standard base64, padded or not.
func decodeCoordinate(s string) ([]byte, error) {
	trimmed := strings.TrimRight(s, "=")
	if trimmed == "" {
		return nil, errors.New("coordinate is missing")
	}
	b, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		if b, err = base64.RawStdEncoding.DecodeString(trimmed); err != nil {
			return nil, err
		}
	}
	if len(b) != coordinateSize {
		return nil, fmt.Errorf("coordinate is %d bytes, expected %d", len(b), coordinateSize)
	}
	return b, nil
}
