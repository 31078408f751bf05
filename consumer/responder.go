// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package consumer

import (
	"bytes"
	"context"
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/xcomm"
	"github.com/luxfi/xcomm/gate"
	"github.com/luxfi/xcomm/outbox"
	"go.uber.org/zap"
)

var (
	_ gate.Consumer = (*Responder)(nil)

	Ping = []byte("ping")
	Pong = []byte("pong")

	errQueueFull = errors.New("reply queue is full")
)

// Sender sends outbound messages. It is satisfied by *chain.Chain.
type Sender interface {
	Fee(finalityBlocks uint16, taxi bool) (*uint256.Int, error)
	SendMessage(
		caller common.Address,
		value *uint256.Int,
		data []byte,
		receiver common.Address,
		dest xcomm.ChainID,
		finalityBlocks uint16,
		taxi bool,
	) (*outbox.Record, error)
}

// Responder answers every ping with a pong sent back to the source chain.
// Replies are sent from Run, outside the delivery that triggered them.
type Responder struct {
	log      log.Logger
	sender   Sender
	account  common.Address
	finality uint16
	queue    chan gate.Inbound
}

// NewResponder creates a responder that replies from account, which is also
// the receiver of the pong on the source chain.
func NewResponder(logger log.Logger, sender Sender, account common.Address, finalityBlocks uint16, queueSize int) *Responder {
	return &Responder{
		log:      logger,
		sender:   sender,
		account:  account,
		finality: finalityBlocks,
		queue:    make(chan gate.Inbound, queueSize),
	}
}

// Consume queues a pong for every ping. A full queue fails the delivery so
// that it is retried later.
func (r *Responder) Consume(_ context.Context, msg gate.Inbound) ([]byte, error) {
	if !bytes.Equal(msg.Payload, Ping) {
		return nil, nil
	}
	select {
	case r.queue <- msg:
		return Pong, nil
	default:
		return nil, errQueueFull
	}
}

// Run sends queued replies until ctx is done.
func (r *Responder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-r.queue:
			if _, err := r.reply(msg); err != nil {
				r.log.Warn("failed to send pong",
					zap.Stringer("sourceChainID", msg.SourceChain),
					zap.Uint64("messageNumber", msg.MessageNumber),
					zap.Error(err),
				)
			}
		}
	}
}

func (r *Responder) reply(msg gate.Inbound) (*outbox.Record, error) {
	fee, err := r.sender.Fee(r.finality, false)
	if err != nil {
		return nil, err
	}
	rec, err := r.sender.SendMessage(r.account, fee, Pong, r.account, msg.SourceChain, r.finality, false)
	if err != nil {
		return nil, err
	}
	r.log.Info("pong sent",
		zap.Stringer("destinationChainID", msg.SourceChain),
		zap.Uint64("inReplyTo", msg.MessageNumber),
		zap.Uint64("messageNumber", rec.MessageNumber),
	)
	return rec, nil
}
