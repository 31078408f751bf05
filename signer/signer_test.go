// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package signer

import (
	"testing"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

type params struct {
	Chain uint64 `json:"chain"`
	Block uint64 `json:"block"`
}

func TestSignAndRecover(t *testing.T) {
	require := require.New(t)

	s, err := GenerateLocalSigner()
	require.NoError(err)

	digest := common.HexToHash("0x1234")
	sig, err := s.Sign(digest)
	require.NoError(err)

	addr, err := Recover(digest, sig)
	require.NoError(err)
	require.Equal(s.Address(), addr)

	_, err = Recover(digest, sig[:10])
	require.ErrorIs(err, ErrInvalidSignature)
}

func TestSignerFromHex(t *testing.T) {
	require := require.New(t)

	s, err := GenerateLocalSigner()
	require.NoError(err)

	parsed, err := NewLocalSignerFromHex(s.PrivateKeyHex())
	require.NoError(err)
	require.Equal(s.Address(), parsed.Address())

	_, err = NewLocalSignerFromHex("0xnothex")
	require.Error(err)
}

func TestVerifyRequest(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name    string
		mutate  func(*SignedRequest)
		method  string
		now     time.Time
		wantErr error
	}{
		{
			name:   "valid",
			mutate: func(*SignedRequest) {},
			method: "setLastBlock",
			now:    now,
		},
		{
			name:    "expired",
			mutate:  func(*SignedRequest) {},
			method:  "setLastBlock",
			now:     now.Add(2 * time.Minute),
			wantErr: ErrExpiredRequest,
		},
		{
			name:    "other method",
			mutate:  func(*SignedRequest) {},
			method:  "setMsgHash",
			now:     now,
			wantErr: ErrCallerMismatch,
		},
		{
			name:    "tampered params",
			mutate:  func(r *SignedRequest) { r.Params = []byte(`{"chain":1,"block":999}`) },
			method:  "setLastBlock",
			now:     now,
			wantErr: ErrCallerMismatch,
		},
		{
			name:    "tampered nonce",
			mutate:  func(r *SignedRequest) { r.Nonce++ },
			method:  "setLastBlock",
			now:     now,
			wantErr: ErrCallerMismatch,
		},
		{
			name:    "impersonated caller",
			mutate:  func(r *SignedRequest) { r.Caller = common.HexToAddress("0xad") },
			method:  "setLastBlock",
			now:     now,
			wantErr: ErrCallerMismatch,
		},
		{
			name:    "garbage signature",
			mutate:  func(r *SignedRequest) { r.Signature = []byte{1, 2, 3} },
			method:  "setLastBlock",
			now:     now,
			wantErr: ErrInvalidSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			s, err := GenerateLocalSigner()
			require.NoError(err)
			req, err := SignRequest(s, "setLastBlock", params{Chain: 1, Block: 2}, now.Add(time.Minute))
			require.NoError(err)
			require.Equal(s.Address(), req.Caller)

			tt.mutate(req)
			require.ErrorIs(VerifyRequest(tt.method, req, tt.now), tt.wantErr)
		})
	}
}

func TestSignRequestNonce(t *testing.T) {
	require := require.New(t)

	s, err := GenerateLocalSigner()
	require.NoError(err)
	expiry := time.Now().Add(time.Minute)
	a, err := SignRequest(s, "sendMessage", params{Chain: 1}, expiry)
	require.NoError(err)
	b, err := SignRequest(s, "sendMessage", params{Chain: 1}, expiry)
	require.NoError(err)

	require.Equal(a.Params, b.Params)
	require.NotEqual(a.Nonce, b.Nonce)
	require.NotEqual(a.Digest("sendMessage"), b.Digest("sendMessage"))
}

func TestReplayGuard(t *testing.T) {
	require := require.New(t)

	now := time.Unix(1_700_000_000, 0)
	s, err := GenerateLocalSigner()
	require.NoError(err)
	g := NewReplayGuard(5 * time.Minute)

	req, err := SignRequest(s, "sendMessage", params{Chain: 1}, now.Add(time.Minute))
	require.NoError(err)
	require.NoError(g.Verify("sendMessage", req, now))
	require.ErrorIs(g.Verify("sendMessage", req, now), ErrReplayedRequest)
	require.ErrorIs(g.Verify("sendMessage", req, now.Add(30*time.Second)), ErrReplayedRequest)
	require.Equal(1, g.Len())

	// A rejected request is not remembered.
	bad, err := SignRequest(s, "sendMessage", params{Chain: 2}, now.Add(time.Minute))
	require.NoError(err)
	bad.Caller = common.HexToAddress("0xad")
	require.ErrorIs(g.Verify("sendMessage", bad, now), ErrCallerMismatch)
	require.Equal(1, g.Len())

	far, err := SignRequest(s, "sendMessage", params{Chain: 3}, now.Add(time.Hour))
	require.NoError(err)
	require.ErrorIs(g.Verify("sendMessage", far, now), ErrExpiryTooFar)

	// Once expired the request fails on expiry and its digest is dropped.
	later := now.Add(2 * time.Minute)
	require.ErrorIs(g.Verify("sendMessage", req, later), ErrExpiredRequest)
	fresh, err := SignRequest(s, "sendMessage", params{Chain: 4}, later.Add(time.Minute))
	require.NoError(err)
	require.NoError(g.Verify("sendMessage", fresh, later))
	require.Equal(1, g.Len())
}
