// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package database

import (
	"fmt"

	"github.com/luxfi/log"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

// NewDatabase picks a backend: redis when redisURL is set, pebble when
// storageLocation is set, memory otherwise. Setting both is an error.
func NewDatabase(logger log.Logger, storageLocation, redisURL string) (RelayerDatabase, error) {
	switch {
	case redisURL != "" && storageLocation != "":
		return nil, fmt.Errorf("%w: both storage location and redis url are set", ErrDatabaseMisconfiguration)
	case redisURL != "":
		logger.Info("Using redis database")
		return NewRedisDatabase(redisURL)
	case storageLocation != "":
		dir, err := homedir.Expand(storageLocation)
		if err != nil {
			return nil, fmt.Errorf("failed to expand storage location: %w", err)
		}
		logger.Info("Using pebble database", zap.String("storageLocation", dir))
		return NewPebbleDatabase(dir)
	default:
		logger.Warn("No storage configured, relayer progress will not survive a restart")
		return NewMemoryDatabase(), nil
	}
}
