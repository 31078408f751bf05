// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"errors"
	"testing"

	"github.com/luxfi/xcomm"
	"github.com/stretchr/testify/require"
)

func TestLRUCacheGet(t *testing.T) {
	tests := []struct {
		name          string
		key           xcomm.Key
		invalidate    bool
		expectedCount int
	}{
		{
			name:          "fresh cache, fetch",
			key:           xcomm.Key{SourceChain: 1, MessageNumber: 1},
			expectedCount: 1,
		},
		{
			name:          "use cache, no fetch",
			key:           xcomm.Key{SourceChain: 1, MessageNumber: 1},
			expectedCount: 1,
		},
		{
			name:          "invalidate, fetch again",
			key:           xcomm.Key{SourceChain: 1, MessageNumber: 1},
			invalidate:    true,
			expectedCount: 2,
		},
		{
			name:          "different key, fetch",
			key:           xcomm.Key{SourceChain: 2, MessageNumber: 1},
			expectedCount: 3,
		},
	}

	cache, err := NewLRUCache[xcomm.Key, bool](10)
	require.NoError(t, err)
	fetchCount := 0
	fetchFunc := func(xcomm.Key) (bool, error) {
		fetchCount++
		return true, nil
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			val, err := cache.Get(tt.key, fetchFunc, tt.invalidate)
			require.NoError(err)
			require.True(val)
			require.Equal(tt.expectedCount, fetchCount)
		})
	}
}

func TestLRUCacheEviction(t *testing.T) {
	require := require.New(t)

	cache, err := NewLRUCache[uint64, string](2)
	require.NoError(err)
	cache.Add(1, "a")
	cache.Add(2, "b")
	cache.Add(3, "c")
	require.False(cache.Contains(1))
	require.True(cache.Contains(2))
	require.True(cache.Contains(3))
	require.Equal(2, cache.Len())

	errFetch := errors.New("fetch failed")
	_, err = cache.Get(4, func(uint64) (string, error) { return "", errFetch }, false)
	require.ErrorIs(err, errFetch)
	require.False(cache.Contains(4))

	_, err = NewLRUCache[uint64, string](0)
	require.ErrorIs(err, errInvalidSize)
}
