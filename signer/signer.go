// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package signer authenticates API transactions with secp256k1 keys. A
// signed request recovers to the address that acts as the caller of the
// ledger method.
package signer

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/xcomm"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrExpiredRequest   = errors.New("request expired")
	ErrCallerMismatch   = errors.New("signature does not match caller")
	ErrReplayedRequest  = errors.New("request already executed")
	ErrExpiryTooFar     = errors.New("request expiry too far in the future")
)

// Signer signs request digests
type Signer interface {
	// Address returns the address signatures recover to
	Address() common.Address

	// Sign signs a 32-byte digest
	Sign(digest common.Hash) ([]byte, error)
}

var _ Signer = (*LocalSigner)(nil)

// LocalSigner signs with a private key held in memory
type LocalSigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewLocalSigner creates a new local signer
func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{
		key:  key,
		addr: common.Address(crypto.PubkeyToAddress(key.PublicKey)),
	}
}

// NewLocalSignerFromHex parses a hex-encoded private key, with or without
// the 0x prefix.
func NewLocalSignerFromHex(hexKey string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(xcomm.SanitizeHexString(hexKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewLocalSigner(key), nil
}

// GenerateLocalSigner creates a signer with a fresh random key.
func GenerateLocalSigner() (*LocalSigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewLocalSigner(key), nil
}

func (s *LocalSigner) Address() common.Address {
	return s.addr
}

func (s *LocalSigner) Sign(digest common.Hash) ([]byte, error) {
	return crypto.Sign(digest.Bytes(), s.key)
}

// PrivateKeyHex returns the hex encoding of the private key.
func (s *LocalSigner) PrivateKeyHex() string {
	return hexutil.Encode(crypto.FromECDSA(s.key))
}

// Recover returns the address that produced sig over digest.
func Recover(digest common.Hash, sig []byte) (common.Address, error) {
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return common.Address(crypto.PubkeyToAddress(*pub)), nil
}

// SignedRequest is the envelope of an authenticated API transaction. The
// nonce makes otherwise identical requests distinct.
type SignedRequest struct {
	Caller    common.Address  `json:"caller"`
	Expiry    int64           `json:"expiry"`
	Nonce     uint64          `json:"nonce"`
	Params    json.RawMessage `json:"params"`
	Signature hexutil.Bytes   `json:"signature"`
}

// Digest returns the digest signed for the request under method.
func (r *SignedRequest) Digest(method string) common.Hash {
	return RequestDigest(method, r.Caller, r.Expiry, r.Nonce, r.Params)
}

// RequestDigest is the digest signed for a request:
// keccak256(method || caller || expiry || nonce || params), with expiry and
// nonce as 8-byte big-endian integers.
func RequestDigest(method string, caller common.Address, expiry int64, nonce uint64, params []byte) common.Hash {
	var e, n [8]byte
	binary.BigEndian.PutUint64(e[:], uint64(expiry))
	binary.BigEndian.PutUint64(n[:], nonce)
	return common.Hash(crypto.Keccak256Hash([]byte(method), caller.Bytes(), e[:], n[:], params))
}

func randomNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// SignRequest encodes params and signs the request for method.
func SignRequest(s Signer, method string, params any, expiry time.Time) (*SignedRequest, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	nonce, err := randomNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to draw nonce: %w", err)
	}
	req := &SignedRequest{
		Caller: s.Address(),
		Expiry: expiry.Unix(),
		Nonce:  nonce,
		Params: raw,
	}
	sig, err := s.Sign(req.Digest(method))
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}
	req.Signature = sig
	return req, nil
}

// VerifyRequest checks that req is unexpired at now and signed by its caller.
func VerifyRequest(method string, req *SignedRequest, now time.Time) error {
	if now.Unix() > req.Expiry {
		return fmt.Errorf("%w: expired at %d", ErrExpiredRequest, req.Expiry)
	}
	addr, err := Recover(req.Digest(method), req.Signature)
	if err != nil {
		return err
	}
	if addr != req.Caller {
		return fmt.Errorf("%w: recovered %s, caller %s", ErrCallerMismatch, addr, req.Caller)
	}
	return nil
}
