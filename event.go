// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package xcomm

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
)

// OutboundEventName is the name of the event emitted for every sent message.
const OutboundEventName = "OutboundMessage"

// OutboundEventABI is the JSON ABI of the outbound event. Field order and
// types are fixed so that existing decoders keep working.
const OutboundEventABI = `[{
	"anonymous": false,
	"name": "OutboundMessage",
	"type": "event",
	"inputs": [
		{"indexed": false, "internalType": "bytes", "name": "data", "type": "bytes"},
		{"indexed": false, "internalType": "address", "name": "sender", "type": "address"},
		{"indexed": false, "internalType": "address", "name": "receiver", "type": "address"},
		{"indexed": false, "internalType": "uint256", "name": "destinationChainId", "type": "uint256"},
		{"indexed": false, "internalType": "uint16", "name": "finalityBlocks", "type": "uint16"},
		{"indexed": false, "internalType": "uint256", "name": "messageNumber", "type": "uint256"},
		{"indexed": false, "internalType": "bool", "name": "taxi", "type": "bool"},
		{"indexed": false, "internalType": "uint256", "name": "fee", "type": "uint256"}
	]
}]`

var (
	ErrUnexpectedEvent = errors.New("unexpected event")

	outboundEvent = mustParseEvent(OutboundEventABI, OutboundEventName)
)

func mustParseEvent(def, name string) abi.Event {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	ev, ok := parsed.Events[name]
	if !ok {
		panic("missing event " + name)
	}
	return ev
}

// OutboundEventID returns topic0 of the outbound event.
func OutboundEventID() common.Hash {
	return outboundEvent.ID
}

// PackEvent ABI-encodes the data section of the outbound event.
func PackEvent(m *OutboundMessage) ([]byte, error) {
	if err := m.Verify(); err != nil {
		return nil, err
	}
	data := m.Data
	if data == nil {
		data = []byte{}
	}
	return outboundEvent.Inputs.NonIndexed().Pack(
		data,
		m.Sender,
		m.Receiver,
		m.DestinationChain.Big(),
		m.FinalityBlocks,
		new(big.Int).SetUint64(m.MessageNumber),
		m.Taxi,
		m.Fee.ToBig(),
	)
}

// EncodeEvent builds the log an emitter contract at address would produce for m.
func EncodeEvent(emitter common.Address, m *OutboundMessage) (*types.Log, error) {
	data, err := PackEvent(m)
	if err != nil {
		return nil, fmt.Errorf("failed to pack outbound event: %w", err)
	}
	return &types.Log{
		Address: emitter,
		Topics:  []common.Hash{outboundEvent.ID},
		Data:    data,
	}, nil
}

// DecodeEvent parses an outbound event log.
func DecodeEvent(l *types.Log) (*OutboundMessage, error) {
	if len(l.Topics) == 0 || l.Topics[0] != outboundEvent.ID {
		return nil, ErrUnexpectedEvent
	}
	return UnpackEvent(l.Data)
}

// UnpackEvent parses the data section of an outbound event.
func UnpackEvent(data []byte) (*OutboundMessage, error) {
	values, err := outboundEvent.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack outbound event: %w", err)
	}
	if len(values) != 8 {
		return nil, fmt.Errorf("%w: expected 8 fields, got %d", ErrUnexpectedEvent, len(values))
	}

	var (
		m  OutboundMessage
		ok bool
	)
	if m.Data, ok = values[0].([]byte); !ok {
		return nil, fmt.Errorf("%w: data", ErrUnexpectedEvent)
	}
	if m.Sender, ok = values[1].(common.Address); !ok {
		return nil, fmt.Errorf("%w: sender", ErrUnexpectedEvent)
	}
	if m.Receiver, ok = values[2].(common.Address); !ok {
		return nil, fmt.Errorf("%w: receiver", ErrUnexpectedEvent)
	}
	dest, err := bigToUint64(values[3], "destinationChainId")
	if err != nil {
		return nil, err
	}
	m.DestinationChain = ChainID(dest)
	if m.FinalityBlocks, ok = values[4].(uint16); !ok {
		return nil, fmt.Errorf("%w: finalityBlocks", ErrUnexpectedEvent)
	}
	if m.MessageNumber, err = bigToUint64(values[5], "messageNumber"); err != nil {
		return nil, err
	}
	if m.Taxi, ok = values[6].(bool); !ok {
		return nil, fmt.Errorf("%w: taxi", ErrUnexpectedEvent)
	}
	fee, ok := values[7].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: fee", ErrUnexpectedEvent)
	}
	var overflow bool
	if m.Fee, overflow = uint256.FromBig(fee); overflow {
		return nil, fmt.Errorf("%w: fee overflows uint256", ErrUnexpectedEvent)
	}
	return &m, nil
}

func bigToUint64(v interface{}, field string) (uint64, error) {
	b, ok := v.(*big.Int)
	if !ok || !b.IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrUnexpectedEvent, field)
	}
	return b.Uint64(), nil
}
