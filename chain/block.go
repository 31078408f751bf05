// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"encoding/binary"
	"math/big"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/trie"
)

// Block is a mined block of the local ledger. Every successful mutating
// transaction produces exactly one block holding its receipt.
type Block struct {
	Number       uint64         `json:"number"`
	Hash         common.Hash    `json:"hash"`
	ParentHash   common.Hash    `json:"parent-hash"`
	ReceiptsRoot common.Hash    `json:"receipts-root"`
	Time         uint64         `json:"time"`
	Method       string         `json:"method"`
	Caller       common.Address `json:"caller"`
	TxHash       common.Hash    `json:"tx-hash"`
	Receipts     types.Receipts `json:"receipts"`
}

func genesisBlock(time uint64) *Block {
	b := &Block{
		Time:         time,
		ReceiptsRoot: types.EmptyReceiptsHash,
	}
	b.Hash = blockHash(b)
	return b
}

func txHash(method string, caller common.Address, number uint64) common.Hash {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], number)
	return common.Hash(crypto.Keccak256Hash([]byte(method), caller.Bytes(), n[:]))
}

func blockHash(b *Block) common.Hash {
	var n, ts [8]byte
	binary.BigEndian.PutUint64(n[:], b.Number)
	binary.BigEndian.PutUint64(ts[:], b.Time)
	return common.Hash(crypto.Keccak256Hash(b.ParentHash.Bytes(), n[:], ts[:], b.ReceiptsRoot.Bytes(), b.TxHash.Bytes()))
}

// newBlock seals a block on top of parent for a transaction that emitted logs.
func newBlock(parent *Block, time uint64, method string, caller common.Address, logs []*types.Log) *Block {
	number := parent.Number + 1
	b := &Block{
		Number:     number,
		ParentHash: parent.Hash,
		Time:       time,
		Method:     method,
		Caller:     caller,
		TxHash:     txHash(method, caller, number),
	}
	receipt := &types.Receipt{
		Type:             types.LegacyTxType,
		Status:           types.ReceiptStatusSuccessful,
		Logs:             logs,
		TxHash:           b.TxHash,
		BlockNumber:      new(big.Int).SetUint64(number),
		TransactionIndex: 0,
	}
	if logs == nil {
		receipt.Logs = []*types.Log{}
	}
	b.Receipts = types.Receipts{receipt}
	b.ReceiptsRoot = types.DeriveSha(b.Receipts, trie.NewStackTrie(nil))
	b.Hash = blockHash(b)

	receipt.BlockHash = b.Hash
	for i, l := range receipt.Logs {
		l.BlockNumber = number
		l.BlockHash = b.Hash
		l.TxHash = b.TxHash
		l.TxIndex = 0
		l.Index = uint(i)
	}
	return b
}
