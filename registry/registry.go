// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry tracks, per remote chain, the oracle-attested block number,
// receipts root and message hashes, along with the peer addresses allowed to
// exchange messages with that chain.
package registry

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"
	"github.com/luxfi/xcomm"
	"go.uber.org/zap"
)

// Authorizer is the subset of access control the registry depends on.
type Authorizer interface {
	RequireAdmin(caller common.Address) error
	RequireOracle(caller common.Address) error
}

// ChainRecord is the committed state for one remote chain.
type ChainRecord struct {
	LastBlock uint64
	// ReceiptsRoot is the root attested for LastBlock, zero until one is.
	ReceiptsRoot common.Hash
	// Roots holds every attested root by block.
	Roots         map[uint64]common.Hash
	Peers         set.Set[common.Address]
	MessageHashes map[uint64]common.Hash
	// PendingRoots holds roots received for blocks above LastBlock.
	PendingRoots map[uint64]common.Hash
}

func newChainRecord() *ChainRecord {
	return &ChainRecord{
		Roots:         make(map[uint64]common.Hash),
		Peers:         set.NewSet[common.Address](1),
		MessageHashes: make(map[uint64]common.Hash),
		PendingRoots:  make(map[uint64]common.Hash),
	}
}

func (r *ChainRecord) clone() *ChainRecord {
	return &ChainRecord{
		LastBlock:     r.LastBlock,
		ReceiptsRoot:  r.ReceiptsRoot,
		Roots:         maps.Clone(r.Roots),
		Peers:         set.Of(r.Peers.List()...),
		MessageHashes: maps.Clone(r.MessageHashes),
		PendingRoots:  maps.Clone(r.PendingRoots),
	}
}

// Registry is the chain-state registry. All mutations are routed through its
// methods and checked against the Authorizer first.
type Registry struct {
	log    log.Logger
	auth   Authorizer
	mu     sync.RWMutex
	chains map[xcomm.ChainID]*ChainRecord
}

// New creates an empty registry.
func New(logger log.Logger, auth Authorizer) *Registry {
	return &Registry{
		log:    logger,
		auth:   auth,
		chains: make(map[xcomm.ChainID]*ChainRecord),
	}
}

// record returns the record for chain, creating it if needed. Caller must hold
// the write lock.
func (r *Registry) record(chain xcomm.ChainID) *ChainRecord {
	rec, ok := r.chains[chain]
	if !ok {
		rec = newChainRecord()
		r.chains[chain] = rec
	}
	return rec
}

// RegisterPeerAddresses adds (allowed=true) or removes (allowed=false) peer
// addresses for chain. Admin only.
func (r *Registry) RegisterPeerAddresses(caller common.Address, chain xcomm.ChainID, addrs []common.Address, allowed bool) error {
	if err := r.auth.RequireAdmin(caller); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.record(chain)
	if allowed {
		rec.Peers.Add(addrs...)
	} else {
		for _, addr := range addrs {
			rec.Peers.Remove(addr)
		}
	}
	r.log.Info("peer addresses updated",
		zap.Stringer("chainID", chain),
		zap.Int("count", len(addrs)),
		zap.Bool("allowed", allowed),
		zap.Int("peers", rec.Peers.Len()),
	)
	return nil
}

// SetInitialBlock sets the starting block of chain at deployment. Admin only;
// subject to the same monotonicity as CommitBlock.
func (r *Registry) SetInitialBlock(caller common.Address, chain xcomm.ChainID, block uint64) error {
	if err := r.auth.RequireAdmin(caller); err != nil {
		return err
	}
	return r.commitBlock(chain, block)
}

// CommitBlock records that block is the latest attested block of chain.
// Oracle only. Fails with ErrStaleBlock unless block is above the current
// last block.
func (r *Registry) CommitBlock(caller common.Address, chain xcomm.ChainID, block uint64) error {
	if err := r.auth.RequireOracle(caller); err != nil {
		return err
	}
	return r.commitBlock(chain, block)
}

func (r *Registry) commitBlock(chain xcomm.ChainID, block uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.record(chain)
	if block <= rec.LastBlock {
		return fmt.Errorf("%w: chain %s block %d <= last block %d", xcomm.ErrStaleBlock, chain, block, rec.LastBlock)
	}
	rec.LastBlock = block
	rec.ReceiptsRoot = common.Hash{}

	if root, ok := rec.PendingRoots[block]; ok {
		rec.Roots[block] = root
		rec.ReceiptsRoot = root
		r.log.Info("pending receipts root promoted",
			zap.Stringer("chainID", chain),
			zap.Uint64("block", block),
			zap.Stringer("root", root),
		)
	}
	for pending := range rec.PendingRoots {
		if pending <= block {
			delete(rec.PendingRoots, pending)
		}
	}

	r.log.Info("block committed",
		zap.Stringer("chainID", chain),
		zap.Uint64("block", block),
	)
	return nil
}

// CommitReceiptsRoot attaches root to block. Oracle only.
//
// A root for a block below the last block fails with ErrStaleBlock. A root for
// the last block is stored; re-committing the same root is a no-op and a
// different root fails with ErrHashMismatch. A root for a block above the
// last block is held as pending and promoted when that block is committed.
// Roots committed before any block are kept but logged as a warning.
func (r *Registry) CommitReceiptsRoot(caller common.Address, chain xcomm.ChainID, block uint64, root common.Hash) error {
	if err := r.auth.RequireOracle(caller); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.record(chain)
	switch {
	case block < rec.LastBlock:
		return fmt.Errorf("%w: chain %s root for block %d < last block %d", xcomm.ErrStaleBlock, chain, block, rec.LastBlock)
	case block == rec.LastBlock:
		if existing, ok := rec.Roots[block]; ok {
			if existing == root {
				return nil
			}
			return fmt.Errorf("%w: chain %s block %d already has root %s", xcomm.ErrHashMismatch, chain, block, existing)
		}
		rec.Roots[block] = root
		rec.ReceiptsRoot = root
		if block == 0 {
			// No block has been committed for this chain yet.
			r.log.Warn("receipts root committed for an uncommitted block",
				zap.Stringer("chainID", chain),
				zap.Uint64("block", block),
				zap.Stringer("root", root),
			)
			return nil
		}
		r.log.Info("receipts root committed",
			zap.Stringer("chainID", chain),
			zap.Uint64("block", block),
			zap.Stringer("root", root),
		)
		return nil
	default:
		if existing, ok := rec.PendingRoots[block]; ok {
			if existing == root {
				return nil
			}
			return fmt.Errorf("%w: chain %s block %d already has pending root %s", xcomm.ErrHashMismatch, chain, block, existing)
		}
		rec.PendingRoots[block] = root
		r.log.Warn("receipts root committed ahead of its block",
			zap.Stringer("chainID", chain),
			zap.Uint64("block", block),
			zap.Uint64("lastBlock", rec.LastBlock),
			zap.Stringer("root", root),
		)
		return nil
	}
}

// CommitMessageHash records the hash of message n from chain. Oracle only.
// Committing the same hash again is a no-op; a different hash fails with
// ErrHashMismatch and leaves the original in place.
func (r *Registry) CommitMessageHash(caller common.Address, chain xcomm.ChainID, n uint64, hash common.Hash) error {
	if err := r.auth.RequireOracle(caller); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.record(chain)
	if existing, ok := rec.MessageHashes[n]; ok {
		if existing == hash {
			return nil
		}
		return fmt.Errorf("%w: chain %s message %d already committed as %s", xcomm.ErrHashMismatch, chain, n, existing)
	}
	rec.MessageHashes[n] = hash
	r.log.Info("message hash committed",
		zap.Stringer("chainID", chain),
		zap.Uint64("messageNumber", n),
		zap.Stringer("hash", hash),
	)
	return nil
}

// LastBlock returns the last attested block of chain, zero if unknown.
func (r *Registry) LastBlock(chain xcomm.ChainID) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.chains[chain]; ok {
		return rec.LastBlock
	}
	return 0
}

// Root returns the receipts root attested for the last block of chain.
func (r *Registry) Root(chain xcomm.ChainID) common.Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.chains[chain]; ok {
		return rec.ReceiptsRoot
	}
	return common.Hash{}
}

// RootAt returns the receipts root attested for block of chain.
func (r *Registry) RootAt(chain xcomm.ChainID, block uint64) (common.Hash, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.chains[chain]
	if !ok {
		return common.Hash{}, false
	}
	root, ok := rec.Roots[block]
	return root, ok
}

// MessageHash returns the committed hash of message n from chain.
func (r *Registry) MessageHash(chain xcomm.ChainID, n uint64) (common.Hash, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.chains[chain]
	if !ok {
		return common.Hash{}, false
	}
	hash, ok := rec.MessageHashes[n]
	return hash, ok
}

// IsPeer reports whether addr is a registered peer for chain.
func (r *Registry) IsPeer(chain xcomm.ChainID, addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.chains[chain]
	return ok && rec.Peers.Contains(addr)
}

// HasPeers reports whether chain has at least one registered peer.
func (r *Registry) HasPeers(chain xcomm.ChainID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.chains[chain]
	return ok && rec.Peers.Len() > 0
}

// Chains returns the known chain ids in ascending order.
func (r *Registry) Chains() []xcomm.ChainID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.chains))
}

// Snapshot returns a copy of the record for chain.
func (r *Registry) Snapshot(chain xcomm.ChainID) (*ChainRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.chains[chain]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}
