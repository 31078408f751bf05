// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package utils

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUInt64Heap(t *testing.T) {
	require := require.New(t)

	h := &UInt64Heap{}
	heap.Init(h)
	for _, v := range []uint64{5, 1, 9, 3, 3} {
		heap.Push(h, v)
	}
	require.Equal(uint64(1), h.Peek())

	var got []uint64
	for h.Len() > 0 {
		got = append(got, heap.Pop(h).(uint64))
	}
	require.Equal([]uint64{1, 3, 3, 5, 9}, got)
}
