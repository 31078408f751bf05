// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package signer

import (
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/geth/common"
)

// DefaultMaxRequestTTL bounds how far in the future a request may expire.
const DefaultMaxRequestTTL = 10 * time.Minute

// ReplayGuard executes each signed request at most once. Digests are
// remembered until their request expires.
type ReplayGuard struct {
	maxTTL time.Duration

	mu        sync.Mutex
	seen      map[common.Hash]int64
	nextSweep int64
}

func NewReplayGuard(maxTTL time.Duration) *ReplayGuard {
	if maxTTL <= 0 {
		maxTTL = DefaultMaxRequestTTL
	}
	return &ReplayGuard{
		maxTTL: maxTTL,
		seen:   make(map[common.Hash]int64),
	}
}

// Verify checks req with VerifyRequest and records it. A request whose
// expiry is more than the max TTL after now fails with ErrExpiryTooFar, and a
// request seen before fails with ErrReplayedRequest.
func (g *ReplayGuard) Verify(method string, req *SignedRequest, now time.Time) error {
	if err := VerifyRequest(method, req, now); err != nil {
		return err
	}
	if limit := now.Add(g.maxTTL).Unix(); req.Expiry > limit {
		return fmt.Errorf("%w: expiry %d, limit %d", ErrExpiryTooFar, req.Expiry, limit)
	}

	digest := req.Digest(method)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.sweep(now.Unix())
	if _, ok := g.seen[digest]; ok {
		return fmt.Errorf("%w: %s", ErrReplayedRequest, digest)
	}
	g.seen[digest] = req.Expiry
	return nil
}

// Len returns the number of remembered requests.
func (g *ReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

// sweep drops requests that VerifyRequest already rejects as expired. It runs
// at most once per second. Caller must hold the lock.
func (g *ReplayGuard) sweep(now int64) {
	if now < g.nextSweep {
		return
	}
	for digest, expiry := range g.seen {
		if expiry < now {
			delete(g.seen, digest)
		}
	}
	g.nextSweep = now + 1
}
