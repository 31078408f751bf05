// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luxfi/xcomm"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	tests := []struct {
		name          string
		advance       time.Duration
		invalidate    bool
		expectedValue uint64
		expectedCount int
	}{
		{
			name:          "fresh cache, fetch",
			expectedValue: 1,
			expectedCount: 1,
		},
		{
			name:          "use cache, no fetch",
			advance:       500 * time.Millisecond,
			expectedValue: 1,
			expectedCount: 1,
		},
		{
			name:          "invalidate, fetch",
			invalidate:    true,
			expectedValue: 2,
			expectedCount: 2,
		},
		{
			name:          "ttl expired, fetch",
			advance:       2 * time.Second,
			expectedValue: 3,
			expectedCount: 3,
		},
	}

	now := time.Unix(0, 0)
	cache := NewTTLCache[xcomm.ChainID, uint64](time.Second)
	cache.now = func() time.Time { return now }
	fetchCount := 0
	fetchFunc := func(xcomm.ChainID) (uint64, error) {
		fetchCount++
		return uint64(fetchCount), nil
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			now = now.Add(tt.advance)
			val, err := cache.Get(1, fetchFunc, tt.invalidate)
			require.NoError(err)
			require.Equal(tt.expectedValue, val)
			require.Equal(tt.expectedCount, fetchCount)
		})
	}
}

func TestTTLCacheSingleFlight(t *testing.T) {
	require := require.New(t)

	cache := NewTTLCache[string, int](time.Minute)
	var fetches atomic.Int32
	release := make(chan struct{})
	fetchFunc := func(string) (int, error) {
		fetches.Add(1)
		<-release
		return 42, nil
	}

	const callers = 8
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			val, err := cache.Get("height", fetchFunc, false)
			if err != nil || val != 42 {
				t.Errorf("unexpected result %d, %v", val, err)
			}
		}()
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(int32(1), fetches.Load())
	val, err := cache.Get("height", fetchFunc, false)
	require.NoError(err)
	require.Equal(42, val)
	require.Equal(int32(1), fetches.Load())
}
