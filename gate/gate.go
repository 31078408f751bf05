// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package gate admits inbound messages that authenticate against the
// oracle-committed chain state and hands each one to the registered
// consumer at most once.
package gate

import (
	"context"
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"
	"github.com/luxfi/xcomm"
	"go.uber.org/zap"
)

// Inbound is an authenticated message handed to a consumer.
type Inbound struct {
	SourceChain   xcomm.ChainID
	MessageNumber uint64
	Payload       []byte
}

// Consumer is the downstream application receiving delivered messages. A
// consumer must not call back into the gate synchronously.
type Consumer interface {
	Consume(ctx context.Context, msg Inbound) ([]byte, error)
}

// Registry is the read-only view of committed chain state the gate checks
// claims against.
type Registry interface {
	MessageHash(chain xcomm.ChainID, n uint64) (common.Hash, bool)
	LastBlock(chain xcomm.ChainID) uint64
	RootAt(chain xcomm.ChainID, block uint64) (common.Hash, bool)
}

// Authorizer is the subset of access control the gate depends on.
type Authorizer interface {
	RequireAdmin(caller common.Address) error
	RequireRelayer(caller common.Address) error
}

// Result is returned for a successful delivery.
type Result struct {
	Key    xcomm.Key `json:"key"`
	Output []byte    `json:"output"`
}

// Gate is the inbound delivery gate.
type Gate struct {
	log      log.Logger
	auth     Authorizer
	registry Registry

	// mu is held across the consumer call so that a key is delivered at most
	// once even when relayers race.
	mu        sync.Mutex
	consumer  Consumer
	delivered set.Set[xcomm.Key]
}

// New creates a gate. consumer may be nil and set later with SetConsumer.
func New(logger log.Logger, auth Authorizer, registry Registry, consumer Consumer) *Gate {
	return &Gate{
		log:       logger,
		auth:      auth,
		registry:  registry,
		consumer:  consumer,
		delivered: set.NewSet[xcomm.Key](16),
	}
}

// SetConsumer replaces the downstream consumer. Admin only.
func (g *Gate) SetConsumer(caller common.Address, consumer Consumer) error {
	if err := g.auth.RequireAdmin(caller); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.consumer = consumer
	g.log.Info("consumer updated", zap.Stringer("caller", caller))
	return nil
}

// Deliver delivers message n from source with the given payload.
func (g *Gate) Deliver(
	ctx context.Context,
	caller common.Address,
	source xcomm.ChainID,
	n uint64,
	payload []byte,
	claimedHash common.Hash,
) (*Result, error) {
	return g.DeliverClaim(ctx, caller, &xcomm.InboundClaim{
		SourceChain:   source,
		MessageNumber: n,
		Payload:       payload,
		ClaimedHash:   claimedHash,
	})
}

// DeliverClaim checks claim against the registry and, if it authenticates,
// forwards its payload to the consumer. The key is marked delivered only when
// the consumer succeeds; otherwise the claim may be retried.
func (g *Gate) DeliverClaim(ctx context.Context, caller common.Address, claim *xcomm.InboundClaim) (*Result, error) {
	if err := g.auth.RequireRelayer(caller); err != nil {
		return nil, err
	}
	key := claim.Key()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.delivered.Contains(key) {
		return nil, fmt.Errorf("%w: message %s", xcomm.ErrAlreadyDelivered, key)
	}
	if err := g.verify(claim); err != nil {
		g.log.Debug("claim rejected",
			zap.Stringer("key", key),
			zap.Error(err),
		)
		return nil, err
	}
	if g.consumer == nil {
		return nil, fmt.Errorf("%w: no consumer registered", xcomm.ErrConsumerFailed)
	}

	out, err := g.consumer.Consume(ctx, Inbound{
		SourceChain:   claim.SourceChain,
		MessageNumber: claim.MessageNumber,
		Payload:       claim.Payload,
	})
	if err != nil {
		g.log.Warn("consumer failed",
			zap.Stringer("key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: message %s: %w", xcomm.ErrConsumerFailed, key, err)
	}

	g.delivered.Add(key)
	g.log.Info("message delivered",
		zap.Stringer("sourceChainID", claim.SourceChain),
		zap.Uint64("messageNumber", claim.MessageNumber),
		zap.Stringer("caller", caller),
	)
	return &Result{Key: key, Output: out}, nil
}

func (g *Gate) verify(claim *xcomm.InboundClaim) error {
	key := claim.Key()
	committed, ok := g.registry.MessageHash(claim.SourceChain, claim.MessageNumber)
	if !ok {
		return fmt.Errorf("%w: no hash committed for message %s", xcomm.ErrNotCommitted, key)
	}
	computed := xcomm.MessageHash(claim.Payload, claim.SourceChain, claim.MessageNumber)
	if computed != committed {
		return fmt.Errorf("%w: payload hash %s != committed %s", xcomm.ErrHashMismatch, computed, committed)
	}
	if claim.ClaimedHash != computed {
		return fmt.Errorf("%w: claimed hash %s != payload hash %s", xcomm.ErrHashMismatch, claim.ClaimedHash, computed)
	}
	if last := g.registry.LastBlock(claim.SourceChain); last < claim.FinalBlock {
		return fmt.Errorf("%w: chain %s committed up to block %d, message final at %d",
			xcomm.ErrNotCommitted, claim.SourceChain, last, claim.FinalBlock)
	}
	if claim.ReceiptsRoot != (common.Hash{}) {
		root, ok := g.registry.RootAt(claim.SourceChain, claim.FinalBlock)
		if !ok {
			return fmt.Errorf("%w: no receipts root committed for chain %s block %d",
				xcomm.ErrNotCommitted, claim.SourceChain, claim.FinalBlock)
		}
		if root != claim.ReceiptsRoot {
			return fmt.Errorf("%w: receipts root %s != committed %s", xcomm.ErrHashMismatch, claim.ReceiptsRoot, root)
		}
	}
	return nil
}

// IsDelivered reports whether key has been delivered.
func (g *Gate) IsDelivered(key xcomm.Key) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.delivered.Contains(key)
}

// DeliveredCount returns the number of delivered messages.
func (g *Gate) DeliveredCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.delivered.Len()
}
