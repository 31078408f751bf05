// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package outbox accepts application messages bound for other chains, assigns
// per-destination message numbers, charges delivery fees and keeps the
// append-only record that relayers follow.
package outbox

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/event"
	"github.com/luxfi/log"
	"github.com/luxfi/xcomm"
	"go.uber.org/zap"
)

// PeerChecker reports whether a destination chain has registered peers.
type PeerChecker interface {
	HasPeers(chain xcomm.ChainID) bool
}

// Record is an emitted outbound message together with where it was emitted.
type Record struct {
	xcomm.OutboundMessage
	SourceChain xcomm.ChainID `json:"source-chain-id"`
	BlockNumber uint64        `json:"block-number"`
	// Index is the position of the record in the log, starting at 0.
	Index uint64 `json:"index"`
	// Event is the OutboundMessage log emitted for the record.
	Event *types.Log `json:"-"`
}

// Hash returns the message hash the destination registry must commit.
func (r *Record) Hash() common.Hash {
	return r.OutboundMessage.Hash(r.SourceChain)
}

// Key returns the delivery key of the record on its destination.
func (r *Record) Key() xcomm.Key {
	return xcomm.Key{SourceChain: r.SourceChain, MessageNumber: r.MessageNumber}
}

// FinalAt returns the source block at which the record reaches the finality
// depth requested by the sender.
func (r *Record) FinalAt() uint64 {
	return r.BlockNumber + uint64(r.FinalityBlocks)
}

// SendRequest is the input of SendMessage.
type SendRequest struct {
	Sender           common.Address
	Value            *uint256.Int
	Data             []byte
	Receiver         common.Address
	DestinationChain xcomm.ChainID
	FinalityBlocks   uint16
	Taxi             bool
	// BlockNumber is the block the message is included in and Emitter the
	// address its event is logged from, both set by the host ledger.
	BlockNumber uint64
	Emitter     common.Address
}

// Log is the outbound message log of one source chain.
type Log struct {
	log    log.Logger
	source xcomm.ChainID
	peers  PeerChecker
	policy FeePolicy

	mu        sync.RWMutex
	sequences map[xcomm.ChainID]uint64
	balance   *uint256.Int
	records   []*Record

	feed event.Feed
}

// New creates an empty log for the source chain.
func New(logger log.Logger, source xcomm.ChainID, peers PeerChecker, policy FeePolicy) *Log {
	return &Log{
		log:       logger,
		source:    source,
		peers:     peers,
		policy:    policy,
		sequences: make(map[xcomm.ChainID]uint64),
		balance:   new(uint256.Int),
	}
}

// SourceChain returns the chain this log emits from.
func (l *Log) SourceChain() xcomm.ChainID {
	return l.source
}

// Fee returns the fee for a message with the given parameters.
func (l *Log) Fee(finalityBlocks uint16, taxi bool) (*uint256.Int, error) {
	return l.policy.Fee(finalityBlocks, taxi)
}

// SendMessage validates and prices a message, assigns it the next message
// number for its destination and appends it to the log. Any payment above
// the fee is kept.
func (l *Log) SendMessage(req SendRequest) (*Record, error) {
	if !l.peers.HasPeers(req.DestinationChain) {
		return nil, fmt.Errorf("%w: destination chain %s has no registered peers", xcomm.ErrUnknownPeer, req.DestinationChain)
	}
	fee, err := l.policy.Fee(req.FinalityBlocks, req.Taxi)
	if err != nil {
		return nil, err
	}
	value := req.Value
	if value == nil {
		value = new(uint256.Int)
	}
	if value.Lt(fee) {
		return nil, fmt.Errorf("%w: paid %s, fee is %s", xcomm.ErrInsufficientFee, value.Dec(), fee.Dec())
	}

	l.mu.Lock()
	next, err := xcomm.AddUint64(l.sequences[req.DestinationChain], 1)
	if err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: message numbers exhausted for chain %s", xcomm.ErrInvalidMessage, req.DestinationChain)
	}
	balance, overflow := new(uint256.Int).AddOverflow(l.balance, value)
	if overflow {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: balance overflows", xcomm.ErrInvalidMessage)
	}
	rec := &Record{
		OutboundMessage: xcomm.OutboundMessage{
			Data:             append([]byte(nil), req.Data...),
			Sender:           req.Sender,
			Receiver:         req.Receiver,
			DestinationChain: req.DestinationChain,
			FinalityBlocks:   req.FinalityBlocks,
			MessageNumber:    next,
			Taxi:             req.Taxi,
			Fee:              fee,
		},
		SourceChain: l.source,
		BlockNumber: req.BlockNumber,
		Index:       uint64(len(l.records)),
	}
	if err := rec.Verify(); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	rec.Event, err = xcomm.EncodeEvent(req.Emitter, &rec.OutboundMessage)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	l.sequences[req.DestinationChain] = next
	l.balance = balance
	l.records = append(l.records, rec)
	l.mu.Unlock()

	l.log.Info("outbound message sent",
		zap.Stringer("destinationChainID", rec.DestinationChain),
		zap.Uint64("messageNumber", rec.MessageNumber),
		zap.Stringer("sender", rec.Sender),
		zap.Bool("taxi", rec.Taxi),
		zap.String("fee", fee.Dec()),
	)
	l.feed.Send(rec)
	return rec, nil
}

// NextMessageNumber returns the number the next message to dest will get.
func (l *Log) NextMessageNumber(dest xcomm.ChainID) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sequences[dest] + 1
}

// Balance returns the total value collected by the log.
func (l *Log) Balance() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance.Clone()
}

// Len returns the number of records in the log.
func (l *Log) Len() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.records))
}

// Records returns the records starting at index from, up to limit entries.
// A zero limit returns all remaining records.
func (l *Log) Records(from uint64, limit int) []*Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if from >= uint64(len(l.records)) {
		return nil
	}
	recs := l.records[from:]
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return append([]*Record(nil), recs...)
}

// Subscribe delivers every new record to ch. Subscribers must keep up:
// sending blocks until all subscribers have received the record.
func (l *Log) Subscribe(ch chan<- *Record) event.Subscription {
	return l.feed.Subscribe(ch)
}
