// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package xcomm

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
)

var (
	bytesType   = mustNewType("bytes")
	uint256Type = mustNewType("uint256")

	// hashArguments is the layout the message hash commits to:
	// abi.encode(bytes payload, uint256 sourceChain, uint256 messageNumber)
	hashArguments = abi.Arguments{
		{Name: "payload", Type: bytesType},
		{Name: "sourceChain", Type: uint256Type},
		{Name: "messageNumber", Type: uint256Type},
	}
)

func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// MessageHash computes the canonical hash binding a payload to its source
// chain and message number. Source chain logs and destination gates must
// agree on this encoding.
func MessageHash(payload []byte, sourceChain ChainID, messageNumber uint64) common.Hash {
	if payload == nil {
		payload = []byte{}
	}
	packed, err := hashArguments.Pack(
		payload,
		sourceChain.Big(),
		new(big.Int).SetUint64(messageNumber),
	)
	if err != nil {
		// Packing a byte slice and two uint256 values cannot fail.
		panic(fmt.Sprintf("failed to pack message hash arguments: %v", err))
	}
	return common.Hash(crypto.Keccak256Hash(packed))
}

// OutboundMessage is the immutable record emitted when an application sends a
// message to another chain.
type OutboundMessage struct {
	Data             []byte         `json:"data"`
	Sender           common.Address `json:"sender"`
	Receiver         common.Address `json:"receiver"`
	DestinationChain ChainID        `json:"destination-chain-id"`
	FinalityBlocks   uint16         `json:"finality-blocks"`
	MessageNumber    uint64         `json:"message-number"`
	Taxi             bool           `json:"taxi"`
	Fee              *uint256.Int   `json:"fee"`
}

// Verify verifies the message format
func (m *OutboundMessage) Verify() error {
	switch {
	case m.FinalityBlocks == 0:
		return fmt.Errorf("%w: finality blocks must be at least 1", ErrInvalidMessage)
	case len(m.Data) > MaxMessageSize:
		return fmt.Errorf("%w: message size %d exceeds maximum %d", ErrInvalidMessage, len(m.Data), MaxMessageSize)
	case m.MessageNumber == 0:
		return fmt.Errorf("%w: message number must be at least 1", ErrInvalidMessage)
	case m.Fee == nil:
		return fmt.Errorf("%w: fee is nil", ErrInvalidMessage)
	}
	return nil
}

// Hash returns the hash the destination registry expects for this message
// when it originates from sourceChain.
func (m *OutboundMessage) Hash(sourceChain ChainID) common.Hash {
	return MessageHash(m.Data, sourceChain, m.MessageNumber)
}

// InboundClaim is a relayer's claim that a message from SourceChain is ready
// for delivery. FinalBlock and ReceiptsRoot are optional references to the
// committed chain state the claim depends on; a non-zero ReceiptsRoot must
// match the root attested for FinalBlock.
type InboundClaim struct {
	SourceChain   ChainID     `json:"source-chain-id"`
	MessageNumber uint64      `json:"message-number"`
	Payload       []byte      `json:"payload"`
	ClaimedHash   common.Hash `json:"claimed-hash"`
	FinalBlock    uint64      `json:"final-block,omitempty"`
	ReceiptsRoot  common.Hash `json:"receipts-root,omitempty"`
}

// Key returns the delivery key of the claim.
func (c *InboundClaim) Key() Key {
	return Key{SourceChain: c.SourceChain, MessageNumber: c.MessageNumber}
}
