// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package database

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/luxfi/ids"
)

var _ RelayerDatabase = (*PebbleDatabase)(nil)

// PebbleDatabase stores relayer state on local disk.
type PebbleDatabase struct {
	db *pebble.DB
}

// NewPebbleDatabase opens or creates a database in dir.
func NewPebbleDatabase(dir string) (*PebbleDatabase, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database at %s: %w", dir, err)
	}
	return &PebbleDatabase{db: db}, nil
}

func (p *PebbleDatabase) Get(relayerID ids.ID, key DataKey) ([]byte, error) {
	v, closer, err := p.db.Get(storageKey(relayerID, key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

func (p *PebbleDatabase) Put(relayerID ids.ID, key DataKey, value []byte) error {
	return p.db.Set(storageKey(relayerID, key), value, pebble.Sync)
}

func (p *PebbleDatabase) Close() error {
	return p.db.Close()
}
