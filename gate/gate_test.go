// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/xcomm"
	"github.com/luxfi/xcomm/access"
	"github.com/luxfi/xcomm/registry"
	"github.com/stretchr/testify/require"
)

const chainA xcomm.ChainID = 1

var (
	admin   = common.HexToAddress("0xad")
	oracle  = common.HexToAddress("0x0a")
	relayer = common.HexToAddress("0x0b")
	other   = common.HexToAddress("0x0c")

	errConsumer = errors.New("consumer exploded")
)

type mockConsumer struct {
	mu       sync.Mutex
	payloads [][]byte
	fail     bool
}

func (m *mockConsumer) Consume(_ context.Context, msg Inbound) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errConsumer
	}
	m.payloads = append(m.payloads, msg.Payload)
	return []byte("ok"), nil
}

func (m *mockConsumer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payloads)
}

type testEnv struct {
	registry *registry.Registry
	gate     *Gate
	consumer *mockConsumer
}

func newTestEnv() *testEnv {
	logger := log.NewNoOpLogger()
	ac := access.NewControl(logger, admin, []common.Address{oracle}, []common.Address{relayer})
	reg := registry.New(logger, ac)
	c := &mockConsumer{}
	return &testEnv{
		registry: reg,
		gate:     New(logger, ac, reg, c),
		consumer: c,
	}
}

func (e *testEnv) commit(t *testing.T, payload []byte, n uint64) common.Hash {
	h := xcomm.MessageHash(payload, chainA, n)
	require.NoError(t, e.registry.CommitMessageHash(oracle, chainA, n, h))
	return h
}

func TestDeliver(t *testing.T) {
	payload := []byte("ping")
	goodHash := xcomm.MessageHash(payload, chainA, 1)

	tests := []struct {
		name      string
		setup     func(t *testing.T, e *testEnv)
		caller    common.Address
		payload   []byte
		claimed   common.Hash
		wantErr   error
		delivered bool
	}{
		{
			name:      "success",
			setup:     func(t *testing.T, e *testEnv) { e.commit(t, payload, 1) },
			caller:    relayer,
			payload:   payload,
			claimed:   goodHash,
			delivered: true,
		},
		{
			name:    "not relayer",
			setup:   func(t *testing.T, e *testEnv) { e.commit(t, payload, 1) },
			caller:  oracle,
			payload: payload,
			claimed: goodHash,
			wantErr: xcomm.ErrUnauthorized,
		},
		{
			name:    "not committed",
			setup:   func(*testing.T, *testEnv) {},
			caller:  relayer,
			payload: payload,
			claimed: goodHash,
			wantErr: xcomm.ErrNotCommitted,
		},
		{
			name:    "tampered payload",
			setup:   func(t *testing.T, e *testEnv) { e.commit(t, payload, 1) },
			caller:  relayer,
			payload: []byte("pong"),
			claimed: xcomm.MessageHash([]byte("pong"), chainA, 1),
			wantErr: xcomm.ErrHashMismatch,
		},
		{
			name:    "wrong claimed hash",
			setup:   func(t *testing.T, e *testEnv) { e.commit(t, payload, 1) },
			caller:  relayer,
			payload: payload,
			claimed: common.HexToHash("0x1234"),
			wantErr: xcomm.ErrHashMismatch,
		},
		{
			name: "consumer failure",
			setup: func(t *testing.T, e *testEnv) {
				e.commit(t, payload, 1)
				e.consumer.fail = true
			},
			caller:  relayer,
			payload: payload,
			claimed: goodHash,
			wantErr: errConsumer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			e := newTestEnv()
			tt.setup(t, e)

			res, err := e.gate.Deliver(context.Background(), tt.caller, chainA, 1, tt.payload, tt.claimed)
			require.ErrorIs(err, tt.wantErr)
			key := xcomm.Key{SourceChain: chainA, MessageNumber: 1}
			require.Equal(tt.delivered, e.gate.IsDelivered(key))
			if tt.wantErr == nil {
				require.Equal(key, res.Key)
				require.Equal([]byte("ok"), res.Output)
			}
		})
	}
}

func TestDeliverAtMostOnce(t *testing.T) {
	require := require.New(t)
	e := newTestEnv()
	h := e.commit(t, []byte("ping"), 1)

	_, err := e.gate.Deliver(context.Background(), relayer, chainA, 1, []byte("ping"), h)
	require.NoError(err)
	for i := 0; i < 3; i++ {
		_, err = e.gate.Deliver(context.Background(), relayer, chainA, 1, []byte("ping"), h)
		require.ErrorIs(err, xcomm.ErrAlreadyDelivered)
	}
	require.Equal(1, e.consumer.count())
	require.Equal(1, e.gate.DeliveredCount())
}

func TestDeliverConcurrentRelayers(t *testing.T) {
	require := require.New(t)
	e := newTestEnv()
	h := e.commit(t, []byte("ping"), 1)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.gate.Deliver(context.Background(), relayer, chainA, 1, []byte("ping"), h); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(int32(1), successes.Load())
	require.Equal(1, e.consumer.count())
}

func TestConsumerFailureIsRetryable(t *testing.T) {
	require := require.New(t)
	e := newTestEnv()
	h := e.commit(t, []byte("ping"), 1)

	e.consumer.fail = true
	_, err := e.gate.Deliver(context.Background(), relayer, chainA, 1, []byte("ping"), h)
	require.ErrorIs(err, xcomm.ErrConsumerFailed)
	require.ErrorIs(err, errConsumer)

	e.consumer.fail = false
	_, err = e.gate.Deliver(context.Background(), relayer, chainA, 1, []byte("ping"), h)
	require.NoError(err)
	require.Equal([][]byte{[]byte("ping")}, e.consumer.payloads)
}

func TestDeliverClaimChecksChainState(t *testing.T) {
	require := require.New(t)
	e := newTestEnv()
	h := e.commit(t, []byte("ping"), 1)
	root := common.HexToHash("0xf00d")

	claim := &xcomm.InboundClaim{
		SourceChain:   chainA,
		MessageNumber: 1,
		Payload:       []byte("ping"),
		ClaimedHash:   h,
		FinalBlock:    100,
		ReceiptsRoot:  root,
	}

	_, err := e.gate.DeliverClaim(context.Background(), relayer, claim)
	require.ErrorIs(err, xcomm.ErrNotCommitted)

	require.NoError(e.registry.CommitBlock(oracle, chainA, 100))
	_, err = e.gate.DeliverClaim(context.Background(), relayer, claim)
	require.ErrorIs(err, xcomm.ErrNotCommitted)

	require.NoError(e.registry.CommitReceiptsRoot(oracle, chainA, 100, common.HexToHash("0xbad")))
	_, err = e.gate.DeliverClaim(context.Background(), relayer, claim)
	require.ErrorIs(err, xcomm.ErrHashMismatch)
	require.False(e.gate.IsDelivered(claim.Key()))
}

func TestDeliverClaimAgainstOlderRoot(t *testing.T) {
	require := require.New(t)
	e := newTestEnv()
	h := e.commit(t, []byte("ping"), 1)
	root := common.HexToHash("0xf00d")

	require.NoError(e.registry.CommitBlock(oracle, chainA, 100))
	require.NoError(e.registry.CommitReceiptsRoot(oracle, chainA, 100, root))

	// A later block and root land before the claim is delivered.
	require.NoError(e.registry.CommitBlock(oracle, chainA, 120))
	require.NoError(e.registry.CommitReceiptsRoot(oracle, chainA, 120, common.HexToHash("0xbeef")))

	claim := &xcomm.InboundClaim{
		SourceChain:   chainA,
		MessageNumber: 1,
		Payload:       []byte("ping"),
		ClaimedHash:   h,
		FinalBlock:    100,
		ReceiptsRoot:  root,
	}
	_, err := e.gate.DeliverClaim(context.Background(), relayer, claim)
	require.NoError(err)
	require.True(e.gate.IsDelivered(claim.Key()))
}

func TestSetConsumer(t *testing.T) {
	require := require.New(t)
	logger := log.NewNoOpLogger()
	ac := access.NewControl(logger, admin, []common.Address{oracle}, []common.Address{relayer})
	reg := registry.New(logger, ac)
	g := New(logger, ac, reg, nil)

	h := xcomm.MessageHash([]byte("ping"), chainA, 1)
	require.NoError(reg.CommitMessageHash(oracle, chainA, 1, h))

	_, err := g.Deliver(context.Background(), relayer, chainA, 1, []byte("ping"), h)
	require.ErrorIs(err, xcomm.ErrConsumerFailed)

	c := &mockConsumer{}
	require.ErrorIs(g.SetConsumer(other, c), xcomm.ErrUnauthorized)
	require.NoError(g.SetConsumer(admin, c))

	_, err = g.Deliver(context.Background(), relayer, chainA, 1, []byte("ping"), h)
	require.NoError(err)
	require.Equal(1, c.count())
}
