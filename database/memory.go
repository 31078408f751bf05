// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package database

import (
	"sync"

	"github.com/luxfi/ids"
)

var _ RelayerDatabase = (*MemoryDatabase)(nil)

// MemoryDatabase keeps relayer state in process memory.
type MemoryDatabase struct {
	mu   sync.RWMutex
	data map[ids.ID]map[DataKey][]byte
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		data: make(map[ids.ID]map[DataKey][]byte),
	}
}

func (m *MemoryDatabase) Get(relayerID ids.ID, key DataKey) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries, ok := m.data[relayerID]
	if !ok {
		return nil, ErrRelayerIDNotFound
	}
	v, ok := entries[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryDatabase) Put(relayerID ids.ID, key DataKey, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.data[relayerID]
	if !ok {
		entries = make(map[DataKey][]byte)
		m.data[relayerID] = entries
	}
	entries[key] = append([]byte(nil), value...)
	return nil
}

func (*MemoryDatabase) Close() error {
	return nil
}
