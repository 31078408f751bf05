// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package xcomm

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strconv"

	"github.com/luxfi/crypto"
	"github.com/luxfi/ids"
)

// ChainID identifies a blockchain network. It is the primary key for all
// per-chain state and is encoded as uint256 on the wire.
type ChainID uint64

func (c ChainID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// Big returns the chain id as a big integer for ABI encoding.
func (c ChainID) Big() *big.Int {
	return new(big.Int).SetUint64(uint64(c))
}

// ParseChainID parses a decimal chain id.
func ParseChainID(s string) (ChainID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q: %w", s, err)
	}
	return ChainID(v), nil
}

// Key identifies one message from one source chain. Each key moves from
// unseen to delivered at most once.
type Key struct {
	SourceChain   ChainID
	MessageNumber uint64
}

// ID derives a stable identifier for the key, used for logging and caches.
func (k Key) ID() ids.ID {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], uint64(k.SourceChain))
	binary.BigEndian.PutUint64(b[8:], k.MessageNumber)
	return ids.ID(crypto.Keccak256Hash(b[:]))
}

func (k Key) String() string {
	return k.SourceChain.String() + "/" + strconv.FormatUint(k.MessageNumber, 10)
}
