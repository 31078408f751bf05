// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package relayer carries messages along one route. It reads the outbound
// log of the source chain, waits for each message to reach its finality
// depth, commits the source chain state to the destination as an oracle and
// then delivers the message as a relayer.
package relayer

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/xcomm"
	"github.com/luxfi/xcomm/api"
	"github.com/luxfi/xcomm/cache"
	"github.com/luxfi/xcomm/database"
	"github.com/luxfi/xcomm/outbox"
	"github.com/luxfi/xcomm/relayer/checkpoint"
	"github.com/luxfi/xcomm/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	_ Source      = (*api.Client)(nil)
	_ Destination = (*api.Client)(nil)
)

// Source is the chain messages are read from.
type Source interface {
	ChainID() xcomm.ChainID
	Height(ctx context.Context) (uint64, error)
	Records(ctx context.Context, from uint64, limit int) ([]*outbox.Record, error)
	ReceiptsRoot(ctx context.Context, number uint64) (common.Hash, error)
}

// Destination is the chain messages are committed and delivered to.
type Destination interface {
	ChainID() xcomm.ChainID
	BlockNumber(ctx context.Context, source xcomm.ChainID) (uint64, error)
	SetLastBlock(ctx context.Context, source xcomm.ChainID, block uint64) error
	SetRecTrieRoot(ctx context.Context, source xcomm.ChainID, block uint64, root common.Hash) error
	SetMsgHash(ctx context.Context, source xcomm.ChainID, n uint64, hash common.Hash) error
	Deliver(ctx context.Context, claim *xcomm.InboundClaim) error
	IsDelivered(ctx context.Context, key xcomm.Key) (bool, error)
}

// Config tunes a Relayer.
type Config struct {
	PollInterval       time.Duration
	RetryTimeout       time.Duration
	RetryInterval      time.Duration
	BatchSize          int
	DeliveredCacheSize int
	// StartIndex is the first source record read when no checkpoint is stored.
	StartIndex uint64
}

func (c *Config) setDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
	if c.RetryTimeout == 0 {
		c.RetryTimeout = time.Minute
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 100 * time.Millisecond
	}
	if c.BatchSize == 0 {
		c.BatchSize = 128
	}
	if c.DeliveredCacheSize == 0 {
		c.DeliveredCacheSize = 4096
	}
}

// Relayer relays the messages of one source chain addressed to one
// destination chain.
type Relayer struct {
	logger     log.Logger
	source     Source
	dest       Destination
	db         database.RelayerDatabase
	relayerID  database.RelayerID
	checkpoint *checkpoint.CheckpointManager
	metrics    *ApplicationRelayerMetrics
	cfg        Config

	// delivered remembers keys known to be delivered on the destination.
	delivered *cache.LRUCache[ids.ID, struct{}]
	// next is the index of the next source record to read.
	next uint64
	// pending holds records read but not yet relayed, by index.
	pending map[uint64]*outbox.Record
}

func NewRelayer(
	logger log.Logger,
	source Source,
	dest Destination,
	db database.RelayerDatabase,
	writeSignal <-chan struct{},
	metrics *ApplicationRelayerMetrics,
	cfg Config,
) (*Relayer, error) {
	cfg.setDefaults()
	relayerID := database.NewRelayerID(source.ChainID(), dest.ChainID())
	logger = logger.With(
		zap.Stringer("sourceChainID", source.ChainID()),
		zap.Stringer("destinationChainID", dest.ChainID()),
	)

	cm, err := checkpoint.NewCheckpointManager(logger, db, writeSignal, relayerID, cfg.StartIndex)
	if err != nil {
		return nil, err
	}
	delivered, err := cache.NewLRUCache[ids.ID, struct{}](cfg.DeliveredCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivered cache: %w", err)
	}
	return &Relayer{
		logger:     logger,
		source:     source,
		dest:       dest,
		db:         db,
		relayerID:  relayerID,
		checkpoint: cm,
		metrics:    metrics,
		cfg:        cfg,
		delivered:  delivered,
		next:       cm.Committed(),
		pending:    make(map[uint64]*outbox.Record),
	}, nil
}

// Run relays until ctx is done.
func (r *Relayer) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.checkpoint.Run(ctx)
		close(done)
	}()
	defer func() { <-done }()

	r.logger.Info("Starting relayer", zap.Uint64("startIndex", r.next))
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := r.ProcessPending(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("Failed to process source records", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping relayer", zap.Uint64("checkpoint", r.checkpoint.Committed()))
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessPending reads new source records and relays every record that has
// reached its finality depth. Records that are not final yet, or fail, are
// retried on the next call.
func (r *Relayer) ProcessPending(ctx context.Context) error {
	records, err := r.source.Records(ctx, r.next, r.cfg.BatchSize)
	if err != nil {
		r.observeFailure(failureSource)
		return fmt.Errorf("failed to read source records: %w", err)
	}
	for _, rec := range records {
		r.pending[rec.Index] = rec
		r.next = rec.Index + 1
	}
	if len(r.pending) == 0 {
		return nil
	}

	height, err := r.source.Height(ctx)
	if err != nil {
		r.observeFailure(failureSource)
		return fmt.Errorf("failed to read source height: %w", err)
	}

	var errs []error
	for _, index := range slices.Sorted(maps.Keys(r.pending)) {
		rec := r.pending[index]
		switch {
		case rec.DestinationChain != r.dest.ChainID():
		case height < rec.FinalAt():
			continue
		default:
			if err := r.relay(ctx, rec); err != nil {
				r.logger.Warn("Failed to relay message",
					zap.Stringer("key", rec.Key()),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}
		}
		delete(r.pending, index)
		r.checkpoint.StageProcessed(index)
	}
	if r.metrics != nil {
		r.metrics.processedIndex.WithLabelValues(r.labels()...).Set(float64(r.checkpoint.Committed()))
	}
	return errors.Join(errs...)
}

func (r *Relayer) relay(ctx context.Context, rec *outbox.Record) error {
	key := rec.Key()
	if r.delivered.Contains(key.ID()) {
		return nil
	}
	delivered, err := r.dest.IsDelivered(ctx, key)
	if err != nil {
		return err
	}
	if delivered {
		r.delivered.Add(key.ID(), struct{}{})
		return nil
	}

	start := time.Now()
	root, err := r.commit(ctx, rec)
	if err != nil {
		r.observeFailure(failureCommit)
		return err
	}

	claim := &xcomm.InboundClaim{
		SourceChain:   rec.SourceChain,
		MessageNumber: rec.MessageNumber,
		Payload:       rec.Data,
		ClaimedHash:   rec.Hash(),
		FinalBlock:    rec.BlockNumber,
		ReceiptsRoot:  root,
	}
	operation := func() error {
		err := r.dest.Deliver(ctx, claim)
		switch {
		case err == nil, errors.Is(err, xcomm.ErrAlreadyDelivered):
			return nil
		case errors.Is(err, xcomm.ErrNotCommitted), errors.Is(err, xcomm.ErrConsumerFailed):
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	if err := utils.WithRetriesTimeout(ctx, r.logger, operation, r.cfg.RetryTimeout, r.cfg.RetryInterval); err != nil {
		r.observeFailure(failureDeliver)
		return fmt.Errorf("failed to deliver message %s: %w", key, err)
	}

	r.delivered.Add(key.ID(), struct{}{})
	if r.metrics != nil {
		r.metrics.successfulRelayMessageCount.WithLabelValues(r.labels()...).Inc()
		r.metrics.relayMessageLatencyMS.WithLabelValues(r.labels()...).Set(float64(time.Since(start).Milliseconds()))
	}
	r.logger.Info("Relayed message",
		zap.Stringer("key", key),
		zap.Uint64("blockNumber", rec.BlockNumber),
	)
	return nil
}

// commit publishes the source chain state rec depends on to the destination.
// It returns the receipts root the claim can reference, or the zero hash if
// the destination has already moved past rec's block.
func (r *Relayer) commit(ctx context.Context, rec *outbox.Record) (common.Hash, error) {
	src := rec.SourceChain

	err := r.dest.SetLastBlock(ctx, src, rec.BlockNumber)
	switch {
	case err == nil:
		r.observeCommit("setLastBlock")
		if err := database.PutUint64(r.db, r.relayerID.ID, database.LatestRelayedBlockKey, rec.BlockNumber); err != nil {
			r.logger.Warn("Failed to store relayed block", zap.Error(err))
		}
	case errors.Is(err, xcomm.ErrStaleBlock):
	default:
		return common.Hash{}, fmt.Errorf("failed to commit block %d: %w", rec.BlockNumber, err)
	}

	root, err := r.source.ReceiptsRoot(ctx, rec.BlockNumber)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read receipts root of block %d: %w", rec.BlockNumber, err)
	}
	err = r.dest.SetRecTrieRoot(ctx, src, rec.BlockNumber, root)
	switch {
	case err == nil:
		r.observeCommit("setRecTrieRoot")
	case errors.Is(err, xcomm.ErrStaleBlock):
		root = common.Hash{}
	default:
		return common.Hash{}, fmt.Errorf("failed to commit receipts root of block %d: %w", rec.BlockNumber, err)
	}

	if err := r.dest.SetMsgHash(ctx, src, rec.MessageNumber, rec.Hash()); err != nil {
		return common.Hash{}, fmt.Errorf("failed to commit hash of message %d: %w", rec.MessageNumber, err)
	}
	r.observeCommit("setMsgHash")
	return root, nil
}

func (r *Relayer) labels() []string {
	return []string{r.dest.ChainID().String(), r.source.ChainID().String()}
}

func (r *Relayer) observeFailure(reason string) {
	if r.metrics == nil {
		return
	}
	r.metrics.failedRelayMessageCount.WithLabelValues(r.dest.ChainID().String(), r.source.ChainID().String(), reason).Inc()
}

func (r *Relayer) observeCommit(method string) {
	if r.metrics == nil {
		return
	}
	r.metrics.oracleCommitCount.WithLabelValues(r.dest.ChainID().String(), r.source.ChainID().String(), method).Inc()
}

// Checkpoint returns the number of leading source records relayed.
func (r *Relayer) Checkpoint() uint64 {
	return r.checkpoint.Committed()
}

// RunAll runs every relayer until ctx is done or one of them fails.
func RunAll(ctx context.Context, relayers []*Relayer) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range relayers {
		g.Go(func() error {
			return r.Run(ctx)
		})
	}
	return g.Wait()
}
