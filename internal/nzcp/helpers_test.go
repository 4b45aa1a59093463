/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package nzcp

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/veraison/go-cose"
)

var (
	testNow = time.Unix(1700000000, 0)
	// cti of the NZCP example pass
	testCTI = []byte{
		0x60, 0xa4, 0xf5, 0x4d, 0x4e, 0x30, 0x43, 0x32,
		0xbe, 0x33, 0xad, 0x78, 0xb1, 0xea, 0xfa, 0x4b,
	}
	testJTI = "urn:uuid:60a4f54d-4e30-4332-be33-ad78b1eafa4b"
)

type testIssuer struct {
	t    *testing.T
	priv *ecdsa.PrivateKey
	did  string
	kid  string
}

func newTestIssuer(t *testing.T) *testIssuer {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.Nil(t, err)
	return &testIssuer{
		t:    t,
		priv: priv,
		did:  "did:web:nzcp.covid19.health.nz",
		kid:  "key-1",
	}
}

func testVC() map[string]any {
	return map[string]any{
		"@context": []any{
			"https://www.w3.org/2018/credentials/v1",
			"https://nzcp.covid19.health.nz/contexts/v1",
		},
		"version": "1.0.0",
		"type":    []any{"VerifiableCredential", "PublicCovidPass"},
		"credentialSubject": map[string]any{
			"givenName":  "Jack",
			"familyName": "Sparrow",
			"dob":        "1960-04-16",
		},
	}
}

func (i *testIssuer) claims() map[any]any {
	return map[any]any{
		1:    i.did,
		4:    testNow.Add(24 * time.Hour).Unix(),
		5:    testNow.Add(-24 * time.Hour).Unix(),
		7:    testCTI,
		"vc": testVC(),
	}
}

func (i *testIssuer) coordinates() ([]byte, []byte) {
	x := make([]byte, 32)
	y := make([]byte, 32)
	i.priv.PublicKey.X.FillBytes(x)
	i.priv.PublicKey.Y.FillBytes(y)
	return x, y
}

// sign1 produces a tagged COSE_Sign1 with go-cose.
func (i *testIssuer) sign1(claims map[any]any) []byte {
	i.t.Helper()
	payload, err := cbor.Marshal(claims)
	require.Nil(i.t, err)

	signer, err := cose.NewSigner(cose.AlgorithmES256, i.priv)
	require.Nil(i.t, err)

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Headers.Protected[cose.HeaderLabelKeyID] = []byte(i.kid)
	msg.Payload = payload
	require.Nil(i.t, msg.Sign(rand.Reader, nil, signer))

	raw, err := msg.MarshalCBOR()
	require.Nil(i.t, err)
	return raw
}

// assemble builds a COSE_Sign1 by hand, so headers go-cose refuses can be tested.
func (i *testIssuer) assemble(protected map[any]any, claims map[any]any) []byte {
	i.t.Helper()
	protectedBytes, err := cbor.Marshal(protected)
	require.Nil(i.t, err)
	claimsBytes, err := cbor.Marshal(claims)
	require.Nil(i.t, err)

	toBeSigned, err := SigStructure(protectedBytes, claimsBytes)
	require.Nil(i.t, err)
	signer, err := cose.NewSigner(cose.AlgorithmES256, i.priv)
	require.Nil(i.t, err)
	sig, err := signer.Sign(rand.Reader, toBeSigned)
	require.Nil(i.t, err)

	raw, err := cbor.Marshal(cbor.Tag{
		Number:  Sign1Tag,
		Content: []any{protectedBytes, map[any]any{}, claimsBytes, sig},
	})
	require.Nil(i.t, err)
	return raw
}

func (i *testIssuer) document() *DIDDocument {
	x, y := i.coordinates()
	ref := KeyReference(i.did, i.kid)
	return &DIDDocument{
		ID: i.did,
		VerificationMethod: []VerificationMethod{
			{
				ID:         ref,
				Controller: i.did,
				Type:       VerificationMethodType,
				PublicKeyJwk: &JWK{
					Kty: "EC",
					Crv: "P-256",
					X:   base64.RawURLEncoding.EncodeToString(x),
					Y:   base64.RawURLEncoding.EncodeToString(y),
				},
			},
		},
		AssertionMethod: refs(ref),
	}
}

func refs(values ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		b, _ := json.Marshal(v)
		out = append(out, b)
	}
	return out
}

func toPayload(raw []byte) string {
	return "NZCP:/1/" + base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)
}

func requireRejection(t *testing.T, err error, kind Kind, msg string) {
	t.Helper()
	require.NotNil(t, err)
	var e *Error
	require.True(t, errors.As(err, &e), "expected *Error, got %T: %v", err, err)
	require.Equal(t, kind, e.Kind)
	require.Equal(t, msg, e.Message)
}

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchDocument(ctx context.Context) (*DIDDocument, error) {
	args := m.Called(ctx)
	doc, _ := args.Get(0).(*DIDDocument)
	return doc, args.Error(1)
}

// staticFetcher is safe for concurrent use, unlike a mock with expectations being set.
type staticFetcher struct {
	doc   *DIDDocument
	err   error
	calls atomic.Int64
}

func (f *staticFetcher) FetchDocument(context.Context) (*DIDDocument, error) {
	f.calls.Add(1)
	return f.doc, f.err
}

type panickingFetcher struct{}

func (panickingFetcher) FetchDocument(context.Context) (*DIDDocument, error) {
	panic("registry client exploded")
}
