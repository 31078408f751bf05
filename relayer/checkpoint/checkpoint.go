// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package checkpoint

import (
	"container/heap"
	"context"
	"fmt"
	"sync"

	"github.com/luxfi/log"
	"github.com/luxfi/xcomm/database"
	"github.com/luxfi/xcomm/utils"
	"go.uber.org/zap"
)

// CheckpointManager tracks how many outbound records of a source log have
// been fully relayed. Records may finish out of order; the checkpoint only
// advances over a contiguous prefix, so a restart never skips a record.
type CheckpointManager struct {
	logger         log.Logger
	database       database.RelayerDatabase
	writeSignal    <-chan struct{}
	relayerID      database.RelayerID
	committedIndex uint64
	lock           sync.Mutex
	pendingCommits *utils.UInt64Heap
	// dirty is set when committedIndex changes and cleared on write
	dirty bool
}

func NewCheckpointManager(
	logger log.Logger,
	db database.RelayerDatabase,
	writeSignal <-chan struct{},
	relayerID database.RelayerID,
	startingIndex uint64,
) (*CheckpointManager, error) {
	h := &utils.UInt64Heap{}
	heap.Init(h)

	storedIndex, err := database.GetLatestProcessedIndex(db, relayerID)
	if err != nil && !database.IsKeyNotFoundError(err) {
		logger.Error("Failed to get latest processed index",
			zap.Stringer("relayerID", relayerID.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to get the latest processed index: %w", err)
	}
	committedIndex := max(storedIndex, startingIndex)

	logger.Info("Creating checkpoint manager",
		zap.Stringer("relayerID", relayerID.ID),
		zap.Uint64("startingIndex", startingIndex),
		zap.Uint64("storedIndex", storedIndex),
	)
	return &CheckpointManager{
		logger:         logger,
		database:       db,
		writeSignal:    writeSignal,
		relayerID:      relayerID,
		committedIndex: committedIndex,
		pendingCommits: h,
	}, nil
}

// Run writes the checkpoint on every write signal until ctx is done, then
// writes it a final time.
func (cm *CheckpointManager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			cm.Flush()
			return
		case _, ok := <-cm.writeSignal:
			if !ok {
				cm.Flush()
				return
			}
			cm.Flush()
		}
	}
}

// Flush writes the committed index if it changed since the last write.
func (cm *CheckpointManager) Flush() {
	cm.lock.Lock()
	defer cm.lock.Unlock()
	if !cm.dirty {
		return
	}

	cm.logger.Debug("Writing checkpoint",
		zap.Uint64("index", cm.committedIndex),
		zap.Stringer("relayerID", cm.relayerID.ID),
	)
	err := database.PutUint64(cm.database, cm.relayerID.ID, database.LatestProcessedIndexKey, cm.committedIndex)
	if err != nil {
		cm.logger.Error("Failed to write checkpoint",
			zap.Stringer("relayerID", cm.relayerID.ID),
			zap.Error(err),
		)
		return
	}
	cm.dirty = false
}

// Committed returns the number of leading records that have been relayed.
func (cm *CheckpointManager) Committed() uint64 {
	cm.lock.Lock()
	defer cm.lock.Unlock()
	return cm.committedIndex
}

// StageProcessed marks the record at index as done. The checkpoint advances
// once every record below index is done too.
func (cm *CheckpointManager) StageProcessed(index uint64) {
	cm.lock.Lock()
	defer cm.lock.Unlock()

	// The checkpoint counts records, so record i completes position i+1.
	position := index + 1
	if position <= cm.committedIndex {
		cm.logger.Debug("Record already behind the checkpoint. Skipping.",
			zap.Uint64("index", index),
			zap.Uint64("committedIndex", cm.committedIndex),
		)
		return
	}

	heap.Push(cm.pendingCommits, position)
	for cm.pendingCommits.Len() > 0 {
		next := cm.pendingCommits.Peek()
		if next <= cm.committedIndex {
			// duplicate stage
			heap.Pop(cm.pendingCommits)
			continue
		}
		if next != cm.committedIndex+1 {
			break
		}
		cm.committedIndex = heap.Pop(cm.pendingCommits).(uint64)
		cm.dirty = true
	}
}
