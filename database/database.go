// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package database persists relayer progress so that a restarted relayer
// resumes where it left off.
package database

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/luxfi/crypto"
	"github.com/luxfi/ids"
	"github.com/luxfi/xcomm"
)

var (
	ErrKeyNotFound              = errors.New("key not found")
	ErrRelayerIDNotFound        = errors.New("no database entry for relayer id")
	ErrDatabaseMisconfiguration = errors.New("database misconfiguration")
)

// DataKey is a key stored per relayer.
type DataKey int

const (
	// LatestProcessedIndexKey is the number of source outbound records, counted
	// from the start of the log, that have all been relayed.
	LatestProcessedIndexKey DataKey = iota
	// LatestRelayedBlockKey is the highest source block committed to the
	// destination by the relayer.
	LatestRelayedBlockKey
)

func (k DataKey) String() string {
	switch k {
	case LatestProcessedIndexKey:
		return "latestProcessedIndex"
	case LatestRelayedBlockKey:
		return "latestRelayedBlock"
	}
	return "unknown"
}

// RelayerDatabase is a key-value store for relayer state, namespaced by
// relayer id.
type RelayerDatabase interface {
	Get(relayerID ids.ID, key DataKey) ([]byte, error)
	Put(relayerID ids.ID, key DataKey, value []byte) error
	Close() error
}

// RelayerID identifies the relayer of one route.
type RelayerID struct {
	SourceChain      xcomm.ChainID
	DestinationChain xcomm.ChainID
	ID               ids.ID
}

// NewRelayerID creates the relayer id of a route.
func NewRelayerID(source, destination xcomm.ChainID) RelayerID {
	return RelayerID{
		SourceChain:      source,
		DestinationChain: destination,
		ID:               CalculateRelayerID(source, destination),
	}
}

// CalculateRelayerID derives a relayer id from a route.
func CalculateRelayerID(source, destination xcomm.ChainID) ids.ID {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], uint64(source))
	binary.BigEndian.PutUint64(b[8:], uint64(destination))
	return ids.ID(crypto.Keccak256Hash([]byte("relayer"), b[:]))
}

// IsKeyNotFoundError reports whether err means the entry is missing.
func IsKeyNotFoundError(err error) bool {
	return errors.Is(err, ErrKeyNotFound) || errors.Is(err, ErrRelayerIDNotFound)
}

// GetUint64 reads a decimal value stored under key.
func GetUint64(db RelayerDatabase, relayerID ids.ID, key DataKey) (uint64, error) {
	b, err := db.Get(relayerID, key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return v, nil
}

// PutUint64 stores v as a decimal value under key.
func PutUint64(db RelayerDatabase, relayerID ids.ID, key DataKey, v uint64) error {
	return db.Put(relayerID, key, []byte(strconv.FormatUint(v, 10)))
}

// GetLatestProcessedIndex returns the stored checkpoint of a relayer.
func GetLatestProcessedIndex(db RelayerDatabase, relayerID RelayerID) (uint64, error) {
	return GetUint64(db, relayerID.ID, LatestProcessedIndexKey)
}

func storageKey(relayerID ids.ID, key DataKey) []byte {
	return []byte(relayerID.String() + "-" + key.String())
}
