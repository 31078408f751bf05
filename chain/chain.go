// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package chain hosts the access control, registry, outbound log and
// delivery gate of one chain behind a single ordered ledger. Every mutating
// call is one transaction: it runs under the ledger lock, either commits
// fully or changes nothing, and a committed transaction mines one block.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/event"
	"github.com/luxfi/log"
	"github.com/luxfi/xcomm"
	"github.com/luxfi/xcomm/access"
	"github.com/luxfi/xcomm/gate"
	"github.com/luxfi/xcomm/outbox"
	"github.com/luxfi/xcomm/registry"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

// Method names of the ledger surface.
const (
	MethodModifyOracleAddresses   = "modifyOracleAddresses"
	MethodModifyRelayerAddresses  = "modifyRelayerAddresses"
	MethodSetLastBlock            = "setLastBlock"
	MethodSetMsgHash              = "setMsgHash"
	MethodSetRecTrieRoot          = "setRecTrieRoot"
	MethodSendMessage             = "sendMessage"
	MethodDeliver                 = "deliver"
	MethodUpdateChainAddresses    = "updateChainAddresses"
	MethodUpdateChainBlockNumbers = "updateChainBlockNumbers"
	MethodUpdateConsumer          = "updateConsumer"
)

var ErrUnknownBlock = errors.New("unknown block")

// Deployment is the configuration a chain is instantiated with.
type Deployment struct {
	ChainID  xcomm.ChainID
	Admin    common.Address
	Oracles  []common.Address
	Relayers []common.Address
	// Peers maps each remote chain to its peer contract addresses.
	Peers map[xcomm.ChainID][]common.Address
	// InitialBlocks sets the starting block of each remote chain.
	InitialBlocks map[xcomm.ChainID]uint64
	Fee           outbox.FeePolicy
	// OutboxAddress is the emitter address of outbound event logs.
	OutboxAddress common.Address
}

// Chain is a single-ledger host for the messaging components. Consumers run
// inside the deliver transaction and must not call back into the Chain.
type Chain struct {
	log        log.Logger
	id         xcomm.ChainID
	outboxAddr common.Address
	metrics    *Metrics
	now        func() time.Time

	access   *access.Control
	registry *registry.Registry
	outbox   *outbox.Log
	gate     *gate.Gate

	// mu orders all transactions.
	mu     deadlock.Mutex
	blocks []*Block

	blockFeed event.Feed
}

// Option configures a Chain.
type Option func(*Chain)

// WithMetrics records ledger metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Chain) { c.metrics = m }
}

// WithClock replaces the block timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) { c.now = now }
}

// New creates a chain and applies the deployment: peers, initial blocks and
// initial role holders are set once, before any transaction.
func New(logger log.Logger, d Deployment, consumer gate.Consumer, opts ...Option) (*Chain, error) {
	c := &Chain{
		log:        logger,
		id:         d.ChainID,
		outboxAddr: d.OutboxAddress,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.access = access.NewControl(logger, d.Admin, d.Oracles, d.Relayers)
	c.registry = registry.New(logger, c.access)
	c.outbox = outbox.New(logger, d.ChainID, c.registry, d.Fee)
	c.gate = gate.New(logger, c.access, c.registry, consumer)

	for chain, peers := range d.Peers {
		if err := c.registry.RegisterPeerAddresses(d.Admin, chain, peers, true); err != nil {
			return nil, fmt.Errorf("failed to register peers of chain %s: %w", chain, err)
		}
	}
	for chain, block := range d.InitialBlocks {
		if block == 0 {
			continue
		}
		if err := c.registry.SetInitialBlock(d.Admin, chain, block); err != nil {
			return nil, fmt.Errorf("failed to set initial block of chain %s: %w", chain, err)
		}
	}

	c.blocks = []*Block{genesisBlock(uint64(c.now().Unix()))}
	logger.Info("chain initialized",
		zap.Stringer("chainID", d.ChainID),
		zap.Stringer("admin", d.Admin),
		zap.Int("peerChains", len(d.Peers)),
	)
	return c, nil
}

// ID returns the chain id.
func (c *Chain) ID() xcomm.ChainID {
	return c.id
}

// Access returns the access control component.
func (c *Chain) Access() *access.Control {
	return c.access
}

// Registry returns the chain-state registry component.
func (c *Chain) Registry() *registry.Registry {
	return c.registry
}

// Outbox returns the outbound message log component.
func (c *Chain) Outbox() *outbox.Log {
	return c.outbox
}

// Gate returns the inbound delivery gate component.
func (c *Chain) Gate() *gate.Gate {
	return c.gate
}

// transact runs fn as one transaction. If fn succeeds a block is mined holding
// the logs it returns.
func (c *Chain) transact(method string, caller common.Address, fn func(next uint64) ([]*types.Log, error)) (*Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	parent := c.blocks[len(c.blocks)-1]
	logs, err := fn(parent.Number + 1)
	if err != nil {
		c.observeTx(method, err)
		c.log.Debug("transaction reverted",
			zap.String("method", method),
			zap.Stringer("caller", caller),
			zap.Error(err),
		)
		return nil, err
	}

	b := newBlock(parent, uint64(c.now().Unix()), method, caller, logs)
	c.blocks = append(c.blocks, b)
	c.observeTx(method, nil)
	if c.metrics != nil {
		c.metrics.blockHeight.Set(float64(b.Number))
	}
	c.log.Debug("block mined",
		zap.Uint64("number", b.Number),
		zap.String("method", method),
		zap.Stringer("receiptsRoot", b.ReceiptsRoot),
	)
	c.blockFeed.Send(b)
	return b, nil
}

func (c *Chain) observeTx(method string, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "reverted"
	}
	c.metrics.transactionCount.WithLabelValues(method, outcome).Inc()
}

// ModifyOracleAddresses enables or disables addr as an oracle. Admin only.
func (c *Chain) ModifyOracleAddresses(caller, addr common.Address, enabled bool) error {
	_, err := c.transact(MethodModifyOracleAddresses, caller, func(uint64) ([]*types.Log, error) {
		return nil, c.access.SetOracle(caller, addr, enabled)
	})
	return err
}

// ModifyRelayerAddresses enables or disables addr as a relayer. Admin only.
func (c *Chain) ModifyRelayerAddresses(caller, addr common.Address, enabled bool) error {
	_, err := c.transact(MethodModifyRelayerAddresses, caller, func(uint64) ([]*types.Log, error) {
		return nil, c.access.SetRelayer(caller, addr, enabled)
	})
	return err
}

// SetLastBlock commits the latest attested block of a remote chain. Oracle only.
func (c *Chain) SetLastBlock(caller common.Address, chain xcomm.ChainID, block uint64) error {
	_, err := c.transact(MethodSetLastBlock, caller, func(uint64) ([]*types.Log, error) {
		return nil, c.registry.CommitBlock(caller, chain, block)
	})
	return err
}

// SetMsgHash commits the hash of a remote message. Oracle only.
func (c *Chain) SetMsgHash(caller common.Address, chain xcomm.ChainID, n uint64, hash common.Hash) error {
	_, err := c.transact(MethodSetMsgHash, caller, func(uint64) ([]*types.Log, error) {
		return nil, c.registry.CommitMessageHash(caller, chain, n, hash)
	})
	return err
}

// SetRecTrieRoot commits the receipts root of a remote block. Oracle only.
func (c *Chain) SetRecTrieRoot(caller common.Address, chain xcomm.ChainID, block uint64, root common.Hash) error {
	_, err := c.transact(MethodSetRecTrieRoot, caller, func(uint64) ([]*types.Log, error) {
		return nil, c.registry.CommitReceiptsRoot(caller, chain, block, root)
	})
	return err
}

// BlocknumberPerChainID returns the last attested block of a remote chain.
func (c *Chain) BlocknumberPerChainID(chain xcomm.ChainID) uint64 {
	return c.registry.LastBlock(chain)
}

// UpdateChainAddresses adds or removes peer addresses of a remote chain. Admin only.
func (c *Chain) UpdateChainAddresses(caller common.Address, chain xcomm.ChainID, addrs []common.Address, allowed bool) error {
	_, err := c.transact(MethodUpdateChainAddresses, caller, func(uint64) ([]*types.Log, error) {
		return nil, c.registry.RegisterPeerAddresses(caller, chain, addrs, allowed)
	})
	return err
}

// UpdateChainBlockNumbers sets the starting block of a remote chain. Admin only.
func (c *Chain) UpdateChainBlockNumbers(caller common.Address, chain xcomm.ChainID, block uint64) error {
	_, err := c.transact(MethodUpdateChainBlockNumbers, caller, func(uint64) ([]*types.Log, error) {
		return nil, c.registry.SetInitialBlock(caller, chain, block)
	})
	return err
}

// UpdateConsumer replaces the consumer of delivered messages. Admin only.
func (c *Chain) UpdateConsumer(caller common.Address, consumer gate.Consumer) error {
	_, err := c.transact(MethodUpdateConsumer, caller, func(uint64) ([]*types.Log, error) {
		return nil, c.gate.SetConsumer(caller, consumer)
	})
	return err
}

// SendMessage sends data to receiver on dest, paying value. The returned
// record carries the assigned message number and the block it was mined in.
func (c *Chain) SendMessage(
	caller common.Address,
	value *uint256.Int,
	data []byte,
	receiver common.Address,
	dest xcomm.ChainID,
	finalityBlocks uint16,
	taxi bool,
) (*outbox.Record, error) {
	var rec *outbox.Record
	_, err := c.transact(MethodSendMessage, caller, func(next uint64) ([]*types.Log, error) {
		var err error
		rec, err = c.outbox.SendMessage(outbox.SendRequest{
			Sender:           caller,
			Value:            value,
			Data:             data,
			Receiver:         receiver,
			DestinationChain: dest,
			FinalityBlocks:   finalityBlocks,
			Taxi:             taxi,
			BlockNumber:      next,
			Emitter:          c.outboxAddr,
		})
		if err != nil {
			return nil, err
		}
		return []*types.Log{rec.Event}, nil
	})
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.sentMessageCount.WithLabelValues(dest.String(), strconv.FormatBool(taxi)).Inc()
		c.metrics.collectedFees.Set(c.outbox.Balance().Float64())
	}
	return rec, nil
}

// Deliver delivers an inbound message. Relayer only.
func (c *Chain) Deliver(
	ctx context.Context,
	caller common.Address,
	source xcomm.ChainID,
	n uint64,
	payload []byte,
	claimedHash common.Hash,
) (*gate.Result, error) {
	return c.DeliverClaim(ctx, caller, &xcomm.InboundClaim{
		SourceChain:   source,
		MessageNumber: n,
		Payload:       payload,
		ClaimedHash:   claimedHash,
	})
}

// DeliverClaim delivers an inbound claim with optional chain-state references.
func (c *Chain) DeliverClaim(ctx context.Context, caller common.Address, claim *xcomm.InboundClaim) (*gate.Result, error) {
	var res *gate.Result
	_, err := c.transact(MethodDeliver, caller, func(uint64) ([]*types.Log, error) {
		var err error
		res, err = c.gate.DeliverClaim(ctx, caller, claim)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.deliveredMsgCount.WithLabelValues(claim.SourceChain.String()).Inc()
	}
	return res, nil
}

// GetBalance returns the value collected by the outbound log.
func (c *Chain) GetBalance() *uint256.Int {
	return c.outbox.Balance()
}

// Fee returns the fee of a message with the given parameters.
func (c *Chain) Fee(finalityBlocks uint16, taxi bool) (*uint256.Int, error) {
	return c.outbox.Fee(finalityBlocks, taxi)
}

// Height returns the number of the latest mined block.
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocks[len(c.blocks)-1].Number
}

// Block returns the block with the given number.
func (c *Chain) Block(number uint64) (*Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if number >= uint64(len(c.blocks)) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBlock, number)
	}
	return c.blocks[number], nil
}

// Records returns outbound records starting at index from.
func (c *Chain) Records(from uint64, limit int) []*outbox.Record {
	return c.outbox.Records(from, limit)
}

// SubscribeBlocks delivers every newly mined block to ch. Blocks are sent
// while the ledger lock is held, so ch must be drained promptly.
func (c *Chain) SubscribeBlocks(ch chan<- *Block) event.Subscription {
	return c.blockFeed.Subscribe(ch)
}
