/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package nzcp

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/kentakayama/nzcp-over-http/resources"
)

type captureRecorder struct {
	mu  sync.Mutex
	obs []Observation
}

func (r *captureRecorder) Record(_ context.Context, o Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, o)
}

type VerifierSuite struct {
	suite.Suite
	issuer  *testIssuer
	fetcher *staticFetcher
	logs    *bytes.Buffer
	rec     *captureRecorder
	v       *Verifier
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.issuer = newTestIssuer(s.T())
	s.fetcher = &staticFetcher{doc: s.issuer.document()}
	s.logs = &bytes.Buffer{}
	s.rec = &captureRecorder{}
	s.v = s.newVerifier(s.fetcher)
}

func (s *VerifierSuite) newVerifier(f DocumentFetcher, opts ...Option) *Verifier {
	base := []Option{
		WithClock(FixedClock(testNow)),
		WithLogger(log.New(s.logs, "", 0)),
		WithRecorder(s.rec),
		WithRefGenerator(func() string { return "ref-1" }),
	}
	return NewVerifier(f, append(base, opts...)...)
}

func (s *VerifierSuite) requireRejected(res *Result, kind Kind, msg string) {
	s.Require().False(res.Verified)
	s.Require().Nil(res.Metadata)
	s.Equal(ErrorVerificationFailure, res.Error)
	s.Equal([]string{msg}, res.Message)
	s.Equal(kind, res.Kind)
}

func (s *VerifierSuite) TestVerified() {
	res := s.v.Verify(context.Background(), toPayload(s.issuer.sign1(s.issuer.claims())))

	s.Require().True(res.Verified, res.Reason())
	s.Require().NotNil(res.Metadata)
	s.Equal(&Header{KeyID: "key-1", Algorithm: "ES256"}, res.Metadata.Header)
	s.Equal(s.issuer.did, res.Metadata.Payload.Issuer)
	s.Equal(testJTI, res.Metadata.Payload.ID)
	s.Equal(testVC(), res.Metadata.Payload.CredentialSubject)
	s.Empty(res.Error)
	s.Empty(res.Message)
	s.Equal(KindNone, res.Kind)
	s.EqualValues(1, s.fetcher.calls.Load())
}

func (s *VerifierSuite) TestVerifiedJSON() {
	res := s.v.Verify(context.Background(), toPayload(s.issuer.sign1(s.issuer.claims())))
	body, err := json.Marshal(res)
	s.Require().Nil(err)

	var got map[string]any
	s.Require().Nil(json.Unmarshal(body, &got))
	s.Equal(true, got["verified"])
	s.NotContains(got, "error")
	s.NotContains(got, "message")

	metadata := got["metadata"].(map[string]any)
	s.Equal(map[string]any{"kid": "key-1", "alg": "ES256"}, metadata["header"])
	payload := metadata["payload"].(map[string]any)
	s.Equal(s.issuer.did, payload["iss"])
	s.Equal(float64(testNow.Add(24*time.Hour).Unix()), payload["exp"])
	s.Equal(float64(testNow.Add(-24*time.Hour).Unix()), payload["nbf"])
	s.Equal(testJTI, payload["jti"])
	s.Contains(payload, "vc")
}

func (s *VerifierSuite) TestRejectedJSON() {
	v := s.newVerifier(s.fetcher, WithClock(FixedClock(testNow.Add(48*time.Hour))))
	res := v.Verify(context.Background(), toPayload(s.issuer.sign1(s.issuer.claims())))

	body, err := json.Marshal(res)
	s.Require().Nil(err)
	s.JSONEq(`{"verified":false,"error":"verification failure","message":["pass expired"]}`, string(body))
}

func (s *VerifierSuite) TestDecodeRejections() {
	notEnvelope, err := cbor.Marshal(42)
	s.Require().Nil(err)

	cases := map[string]struct {
		payload string
		msg     string
	}{
		"bad base32":   {"NZCP:/1/1", MsgBase32Decode},
		"empty body":   {"NZCP:/1/", MsgBase32Decode},
		"not envelope": {toPayload(notEnvelope), MsgCBORDecode},
		"wrong alg": {
			toPayload(s.issuer.assemble(map[any]any{1: -35, 4: []byte(s.issuer.kid)}, s.issuer.claims())),
			MsgExtractHeaders,
		},
		"empty header": {
			toPayload(s.issuer.assemble(map[any]any{}, s.issuer.claims())),
			MsgExtractHeaders,
		},
	}
	for name, tc := range cases {
		s.Run(name, func() {
			fetcher := new(mockFetcher)
			res := s.newVerifier(fetcher).Verify(context.Background(), tc.payload)
			s.requireRejected(res, KindDecode, tc.msg)
			fetcher.AssertNotCalled(s.T(), "FetchDocument", mock.Anything)
		})
	}
}

func (s *VerifierSuite) TestTimeRejections() {
	payload := toPayload(s.issuer.sign1(s.issuer.claims()))

	expired := s.newVerifier(s.fetcher, WithClock(FixedClock(testNow.Add(25*time.Hour))))
	s.requireRejected(expired.Verify(context.Background(), payload), KindDecode, MsgPassExpired)

	early := s.newVerifier(s.fetcher, WithClock(FixedClock(testNow.Add(-25*time.Hour))))
	s.requireRejected(early.Verify(context.Background(), payload), KindDecode, MsgPassNotYetActive)

	s.EqualValues(0, s.fetcher.calls.Load())
}

func (s *VerifierSuite) TestUntrustedIssuerBeforeSignature() {
	claims := s.issuer.claims()
	claims[1] = "did:web:example.com"
	protected, err := cbor.Marshal(map[any]any{1: -7, 4: []byte(s.issuer.kid)})
	s.Require().Nil(err)
	claimBytes, err := cbor.Marshal(claims)
	s.Require().Nil(err)
	raw, err := cbor.Marshal(cbor.Tag{
		Number:  Sign1Tag,
		Content: []any{protected, map[any]any{}, claimBytes, []byte{0x01, 0x02, 0x03}},
	})
	s.Require().Nil(err)

	res := s.v.Verify(context.Background(), toPayload(raw))
	s.requireRejected(res, KindTrust, MsgUntrustedIssuer)
}

func (s *VerifierSuite) TestFetchFailure() {
	fetcher := &staticFetcher{err: context.DeadlineExceeded}
	res := s.newVerifier(fetcher).Verify(context.Background(), toPayload(s.issuer.sign1(s.issuer.claims())))
	s.requireRejected(res, KindTrust, MsgFetchAuthority)
	s.Contains(s.logs.String(), "pass rejected")
}

func (s *VerifierSuite) TestSignatureRejection() {
	forger := newTestIssuer(s.T())
	res := s.v.Verify(context.Background(), toPayload(forger.sign1(forger.claims())))
	s.requireRejected(res, KindSignature, MsgSignatureInvalid)
}

func (s *VerifierSuite) TestIdempotent() {
	payload := toPayload(s.issuer.sign1(s.issuer.claims()))
	first := s.v.Verify(context.Background(), payload)
	second := s.v.Verify(context.Background(), payload)
	s.Equal(first, second)
}

func (s *VerifierSuite) TestInternalFailures() {
	payload := toPayload(s.issuer.sign1(s.issuer.claims()))
	for name, f := range map[string]DocumentFetcher{
		"no fetcher":        nil,
		"panicking fetcher": panickingFetcher{},
	} {
		s.Run(name, func() {
			s.logs.Reset()
			res := s.newVerifier(f).Verify(context.Background(), payload)

			s.False(res.Verified)
			s.Equal(ErrorInternal, res.Error)
			s.Equal([]string{"An unknown error occurred. Please contact the administrator with ref: ref-1."}, res.Message)
			s.Equal(KindInternal, res.Kind)
			s.Equal("ref-1", res.Ref)
			s.Contains(s.logs.String(), "Fatal Error: ref-1")
		})
	}
}

func (s *VerifierSuite) TestRecorderObservations() {
	s.v.Verify(context.Background(), toPayload(s.issuer.sign1(s.issuer.claims())))
	s.v.Verify(context.Background(), "NZCP:/1/1")

	s.Require().Len(s.rec.obs, 2)
	ok, bad := s.rec.obs[0], s.rec.obs[1]

	s.True(ok.Result.Verified)
	s.Require().NotNil(ok.Claims)
	s.Equal(testJTI, ok.Claims.ID)
	s.Nil(ok.Cause)

	s.False(bad.Result.Verified)
	s.Nil(bad.Claims)
	s.ErrorIs(bad.Cause, &Error{Kind: KindDecode, Message: MsgBase32Decode})
}

func (s *VerifierSuite) TestClaimsObservedOnLateRejection() {
	forger := newTestIssuer(s.T())
	s.v.Verify(context.Background(), toPayload(forger.sign1(forger.claims())))

	s.Require().Len(s.rec.obs, 1)
	s.Require().NotNil(s.rec.obs[0].Claims)
	s.Equal(testJTI, s.rec.obs[0].Claims.ID)
}

func (s *VerifierSuite) TestConcurrentVerify() {
	payload := toPayload(s.issuer.sign1(s.issuer.claims()))
	const n = 32

	results := make([]*Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.v.Verify(context.Background(), payload)
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		s.True(res.Verified)
	}
	s.EqualValues(n, s.fetcher.calls.Load())
}

// published example pass signed with did:web:nzcp.covid19.health.nz#key-1
const examplePass = "NZCP:/1/2KCEVIQEIVVWK6JNGEASNICZAEP2KALYDZSGSZB2O5SWEOTOPJRXALTDN53GSZBRHEXGQZLBNR2GQLTOPICRUYMBTIFAIGTUKBAAUYTWMOSGQQDDN5XHIZLYOSBHQJTIOR2HA4Z2F4XXO53XFZ3TGLTPOJTS6MRQGE4C6Y3SMVSGK3TUNFQWY4ZPOYYXQKTIOR2HA4Z2F4XW46TDOAXGG33WNFSDCOJONBSWC3DUNAXG46RPMNXW45DFPB2HGL3WGFTXMZLSONUW63TFGEXDALRQMR2HS4DFQJ2FMZLSNFTGSYLCNRSUG4TFMRSW45DJMFWG6UDVMJWGSY2DN53GSZCQMFZXG4LDOJSWIZLOORUWC3CTOVRGUZLDOSRWSZ3JOZSW4TTBNVSWISTBMNVWUZTBNVUWY6KOMFWWKZ2TOBQXE4TPO5RWI33CNIYTSNRQFUYDILJRGYDVAYFE6VGU4MCDGK7DHLLYWHVPUS2YIDJOA6Y524TD3AZRM263WTY2BE4DPKIF27WKF3UDNNVSVWRDYIYVJ65IRJJJ6Z25M2DO4YZLBHWFQGVQR5ZLIWEQJOZTS3IQ7JTNCFDX"

func (s *VerifierSuite) authorityVerifier() *Verifier {
	var doc DIDDocument
	s.Require().Nil(json.Unmarshal(resources.AuthorityDIDDocument, &doc))
	return s.newVerifier(&staticFetcher{doc: &doc})
}

func (s *VerifierSuite) TestExamplePass() {
	res := s.authorityVerifier().Verify(context.Background(), examplePass)

	s.Require().True(res.Verified, res.Reason())
	s.Equal(&Header{KeyID: "key-1", Algorithm: "ES256"}, res.Metadata.Header)
	s.Equal("did:web:nzcp.covid19.health.nz", res.Metadata.Payload.Issuer)
	s.Equal(testJTI, res.Metadata.Payload.ID)
	s.EqualValues(1635883530, res.Metadata.Payload.NotBefore)
	s.EqualValues(1951416330, res.Metadata.Payload.Expiry)
	s.Equal(testVC(), res.Metadata.Payload.CredentialSubject)
}

func (s *VerifierSuite) TestExamplePassBadSignature() {
	raw, err := DecodeTransport(payloadBody(examplePass))
	s.Require().Nil(err)
	raw[len(raw)-1] ^= 0x01

	res := s.authorityVerifier().Verify(context.Background(), toPayload(raw))
	s.requireRejected(res, KindSignature, MsgSignatureInvalid)
}

func (s *VerifierSuite) TestExamplePassTrailingCharacters() {
	v := s.authorityVerifier()
	for _, suffix := range []string{"A", "7", "AAA", "AAAAAA", "=", "A======="} {
		res := v.Verify(context.Background(), examplePass+suffix)
		s.requireRejected(res, KindDecode, MsgBase32Decode)
	}
}
