// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"sync"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/xcomm"
	"github.com/luxfi/xcomm/access"
	"github.com/stretchr/testify/require"
)

const chainA xcomm.ChainID = 31337

var (
	admin  = common.HexToAddress("0xad")
	oracle = common.HexToAddress("0x0a")
	other  = common.HexToAddress("0x0c")
	peer   = common.HexToAddress("0xbeef")
)

func newTestRegistry() *Registry {
	logger := log.NewNoOpLogger()
	return New(logger, access.NewControl(logger, admin, []common.Address{oracle}, nil))
}

func TestRegisterPeerAddresses(t *testing.T) {
	require := require.New(t)
	r := newTestRegistry()

	require.False(r.HasPeers(chainA))
	require.ErrorIs(r.RegisterPeerAddresses(oracle, chainA, []common.Address{peer}, true), xcomm.ErrUnauthorized)
	require.False(r.HasPeers(chainA))

	require.NoError(r.RegisterPeerAddresses(admin, chainA, []common.Address{peer}, true))
	require.True(r.HasPeers(chainA))
	require.True(r.IsPeer(chainA, peer))
	require.False(r.IsPeer(chainA, other))

	require.NoError(r.RegisterPeerAddresses(admin, chainA, []common.Address{peer}, false))
	require.False(r.HasPeers(chainA))
	require.False(r.IsPeer(chainA, peer))

	// Several peers are added and removed in one call.
	peers := []common.Address{peer, other, admin}
	require.NoError(r.RegisterPeerAddresses(admin, chainA, peers, true))
	for _, p := range peers {
		require.True(r.IsPeer(chainA, p))
	}
	require.NoError(r.RegisterPeerAddresses(admin, chainA, peers[:2], false))
	require.False(r.IsPeer(chainA, peer))
	require.False(r.IsPeer(chainA, other))
	require.True(r.IsPeer(chainA, admin))
	require.True(r.HasPeers(chainA))

	rec, ok := r.Snapshot(chainA)
	require.True(ok)
	require.Equal([]common.Address{admin}, rec.Peers.List())
}

func TestCommitBlock(t *testing.T) {
	tests := []struct {
		name    string
		caller  common.Address
		blocks  []uint64
		next    uint64
		wantErr error
		want    uint64
	}{
		{
			name:   "first commit",
			caller: oracle,
			next:   100,
			want:   100,
		},
		{
			name:   "increasing",
			caller: oracle,
			blocks: []uint64{100},
			next:   101,
			want:   101,
		},
		{
			name:    "equal is stale",
			caller:  oracle,
			blocks:  []uint64{100},
			next:    100,
			wantErr: xcomm.ErrStaleBlock,
			want:    100,
		},
		{
			name:    "lower is stale",
			caller:  oracle,
			blocks:  []uint64{100},
			next:    99,
			wantErr: xcomm.ErrStaleBlock,
			want:    100,
		},
		{
			name:    "zero on fresh chain is stale",
			caller:  oracle,
			next:    0,
			wantErr: xcomm.ErrStaleBlock,
			want:    0,
		},
		{
			name:    "non-oracle",
			caller:  other,
			blocks:  []uint64{100},
			next:    200,
			wantErr: xcomm.ErrUnauthorized,
			want:    100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			r := newTestRegistry()
			for _, b := range tt.blocks {
				require.NoError(r.CommitBlock(oracle, chainA, b))
			}
			err := r.CommitBlock(tt.caller, chainA, tt.next)
			require.ErrorIs(err, tt.wantErr)
			require.Equal(tt.want, r.LastBlock(chainA))
		})
	}
}

func TestSetInitialBlock(t *testing.T) {
	require := require.New(t)
	r := newTestRegistry()

	require.ErrorIs(r.SetInitialBlock(oracle, chainA, 10), xcomm.ErrUnauthorized)
	require.NoError(r.SetInitialBlock(admin, chainA, 10))
	require.Equal(uint64(10), r.LastBlock(chainA))
	require.ErrorIs(r.SetInitialBlock(admin, chainA, 5), xcomm.ErrStaleBlock)
	require.NoError(r.CommitBlock(oracle, chainA, 11))
}

func TestCommitMessageHash(t *testing.T) {
	require := require.New(t)
	r := newTestRegistry()

	h := xcomm.MessageHash([]byte("ping"), chainA, 1)
	h2 := xcomm.MessageHash([]byte("pong"), chainA, 1)

	_, ok := r.MessageHash(chainA, 1)
	require.False(ok)

	require.ErrorIs(r.CommitMessageHash(other, chainA, 1, h), xcomm.ErrUnauthorized)
	_, ok = r.MessageHash(chainA, 1)
	require.False(ok)

	require.NoError(r.CommitMessageHash(oracle, chainA, 1, h))
	before, ok := r.Snapshot(chainA)
	require.True(ok)

	// Identical re-commit leaves state unchanged.
	require.NoError(r.CommitMessageHash(oracle, chainA, 1, h))
	after, ok := r.Snapshot(chainA)
	require.True(ok)
	require.Equal(before, after)

	// Conflicting re-commit is rejected and the original survives.
	require.ErrorIs(r.CommitMessageHash(oracle, chainA, 1, h2), xcomm.ErrHashMismatch)
	got, ok := r.MessageHash(chainA, 1)
	require.True(ok)
	require.Equal(h, got)
}

func TestCommitReceiptsRoot(t *testing.T) {
	root := common.HexToHash("0x01")
	root2 := common.HexToHash("0x02")

	t.Run("root for last block", func(t *testing.T) {
		require := require.New(t)
		r := newTestRegistry()
		require.NoError(r.CommitBlock(oracle, chainA, 100))
		require.NoError(r.CommitReceiptsRoot(oracle, chainA, 100, root))
		require.Equal(root, r.Root(chainA))

		require.NoError(r.CommitReceiptsRoot(oracle, chainA, 100, root))
		require.ErrorIs(r.CommitReceiptsRoot(oracle, chainA, 100, root2), xcomm.ErrHashMismatch)
		require.Equal(root, r.Root(chainA))
	})

	t.Run("root for regressed block", func(t *testing.T) {
		require := require.New(t)
		r := newTestRegistry()
		require.NoError(r.CommitBlock(oracle, chainA, 100))
		require.ErrorIs(r.CommitReceiptsRoot(oracle, chainA, 99, root), xcomm.ErrStaleBlock)
		require.Equal(common.Hash{}, r.Root(chainA))
	})

	t.Run("root before block is promoted", func(t *testing.T) {
		require := require.New(t)
		r := newTestRegistry()
		require.NoError(r.CommitBlock(oracle, chainA, 100))
		require.NoError(r.CommitReceiptsRoot(oracle, chainA, 105, root))
		require.Equal(common.Hash{}, r.Root(chainA))

		require.ErrorIs(r.CommitReceiptsRoot(oracle, chainA, 105, root2), xcomm.ErrHashMismatch)

		require.NoError(r.CommitBlock(oracle, chainA, 105))
		require.Equal(root, r.Root(chainA))
		rec, ok := r.Snapshot(chainA)
		require.True(ok)
		require.Equal(map[uint64]common.Hash{105: root}, rec.Roots)
		require.Empty(rec.PendingRoots)
	})

	t.Run("skipped pending root is pruned", func(t *testing.T) {
		require := require.New(t)
		r := newTestRegistry()
		require.NoError(r.CommitReceiptsRoot(oracle, chainA, 5, root))
		require.NoError(r.CommitBlock(oracle, chainA, 6))
		require.Equal(common.Hash{}, r.Root(chainA))
		rec, ok := r.Snapshot(chainA)
		require.True(ok)
		require.Empty(rec.PendingRoots)
	})

	t.Run("root is per block", func(t *testing.T) {
		require := require.New(t)
		r := newTestRegistry()
		require.NoError(r.CommitBlock(oracle, chainA, 100))
		require.NoError(r.CommitReceiptsRoot(oracle, chainA, 100, root))

		// A newer block without a root has no current root.
		require.NoError(r.CommitBlock(oracle, chainA, 110))
		require.Equal(common.Hash{}, r.Root(chainA))

		require.NoError(r.CommitReceiptsRoot(oracle, chainA, 110, root2))
		require.Equal(root2, r.Root(chainA))

		got, ok := r.RootAt(chainA, 100)
		require.True(ok)
		require.Equal(root, got)
		got, ok = r.RootAt(chainA, 110)
		require.True(ok)
		require.Equal(root2, got)
		_, ok = r.RootAt(chainA, 105)
		require.False(ok)
		_, ok = r.RootAt(77, 100)
		require.False(ok)
	})

	t.Run("root before any block", func(t *testing.T) {
		require := require.New(t)
		r := newTestRegistry()
		require.NoError(r.CommitReceiptsRoot(oracle, chainA, 0, root))
		require.Equal(root, r.Root(chainA))
		require.ErrorIs(r.CommitReceiptsRoot(oracle, chainA, 0, root2), xcomm.ErrHashMismatch)

		require.NoError(r.CommitBlock(oracle, chainA, 1))
		require.Equal(common.Hash{}, r.Root(chainA))
	})

	t.Run("non-oracle", func(t *testing.T) {
		require := require.New(t)
		r := newTestRegistry()
		require.ErrorIs(r.CommitReceiptsRoot(admin, chainA, 0, root), xcomm.ErrUnauthorized)
	})
}

func TestConcurrentCommitsConverge(t *testing.T) {
	require := require.New(t)
	r := newTestRegistry()

	var wg sync.WaitGroup
	for b := uint64(1); b <= 64; b++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.CommitBlock(oracle, chainA, b)
		}()
	}
	wg.Wait()
	require.Equal(uint64(64), r.LastBlock(chainA))
}

func TestChains(t *testing.T) {
	require := require.New(t)
	r := newTestRegistry()

	require.NoError(r.CommitBlock(oracle, 3, 1))
	require.NoError(r.CommitBlock(oracle, 1, 1))
	require.Equal([]xcomm.ChainID{1, 3}, r.Chains())

	_, ok := r.Snapshot(2)
	require.False(ok)
}
