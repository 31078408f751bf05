// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/luxfi/log"
	"go.uber.org/zap"
)

// WithRetriesTimeout runs operation with exponential backoff until it
// succeeds, returns a backoff.Permanent error, ctx is done or timeout has
// elapsed.
func WithRetriesTimeout(
	ctx context.Context,
	logger log.Logger,
	operation backoff.Operation,
	timeout time.Duration,
	initialInterval time.Duration,
) error {
	expBackOff := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initialInterval),
		backoff.WithMaxElapsedTime(timeout),
	)
	notify := func(err error, next time.Duration) {
		logger.Debug("operation failed, retrying",
			zap.Error(err),
			zap.Duration("next", next),
		)
	}
	return backoff.RetryNotify(operation, backoff.WithContext(expBackOff, ctx), notify)
}
