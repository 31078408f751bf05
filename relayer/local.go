// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/xcomm"
	"github.com/luxfi/xcomm/chain"
	"github.com/luxfi/xcomm/outbox"
)

var (
	_ Source      = (*LocalChain)(nil)
	_ Destination = (*LocalChain)(nil)
)

// LocalChain adapts an in-process chain to the Source and Destination
// interfaces. Transactions are sent from caller.
type LocalChain struct {
	chain  *chain.Chain
	caller common.Address
}

func NewLocalChain(c *chain.Chain, caller common.Address) *LocalChain {
	return &LocalChain{chain: c, caller: caller}
}

func (l *LocalChain) ChainID() xcomm.ChainID {
	return l.chain.ID()
}

func (l *LocalChain) Height(context.Context) (uint64, error) {
	return l.chain.Height(), nil
}

func (l *LocalChain) Records(_ context.Context, from uint64, limit int) ([]*outbox.Record, error) {
	return l.chain.Records(from, limit), nil
}

func (l *LocalChain) ReceiptsRoot(_ context.Context, number uint64) (common.Hash, error) {
	b, err := l.chain.Block(number)
	if err != nil {
		return common.Hash{}, err
	}
	return b.ReceiptsRoot, nil
}

func (l *LocalChain) BlockNumber(_ context.Context, source xcomm.ChainID) (uint64, error) {
	return l.chain.BlocknumberPerChainID(source), nil
}

func (l *LocalChain) SetLastBlock(_ context.Context, source xcomm.ChainID, block uint64) error {
	return l.chain.SetLastBlock(l.caller, source, block)
}

func (l *LocalChain) SetRecTrieRoot(_ context.Context, source xcomm.ChainID, block uint64, root common.Hash) error {
	return l.chain.SetRecTrieRoot(l.caller, source, block, root)
}

func (l *LocalChain) SetMsgHash(_ context.Context, source xcomm.ChainID, n uint64, hash common.Hash) error {
	return l.chain.SetMsgHash(l.caller, source, n, hash)
}

func (l *LocalChain) Deliver(ctx context.Context, claim *xcomm.InboundClaim) error {
	_, err := l.chain.DeliverClaim(ctx, l.caller, claim)
	return err
}

func (l *LocalChain) IsDelivered(_ context.Context, key xcomm.Key) (bool, error) {
	return l.chain.Gate().IsDelivered(key), nil
}
