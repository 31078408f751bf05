// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	// Command line option keys
	ConfigFileKey = "config-file"

	// Environment variable prefix, e.g. XCOMM_LOG_LEVEL
	EnvPrefix = "XCOMM"

	// Top-level configuration keys
	LogLevelKey    = "log-level"
	APIPortKey     = "api-port"
	MetricsPortKey = "metrics-port"
	DeploymentKey  = "deployment"
	RelayerKey     = "relayer"

	// Relayer configuration keys
	AccountPrivateKeyKey      = "relayer.account-private-key"
	StorageLocationKey        = "relayer.storage-location"
	RedisURLKey               = "relayer.redis-url"
	PollIntervalSecondsKey    = "relayer.poll-interval-seconds"
	RetryTimeoutSecondsKey    = "relayer.retry-timeout-seconds"
	DBWriteIntervalSecondsKey = "relayer.db-write-interval-seconds"
	DeliveredCacheSizeKey     = "relayer.delivered-cache-size"
	RequestTTLSecondsKey      = "relayer.request-ttl-seconds"

	// Deployment configuration keys
	TaxiMultiplierKey = "deployment.fee.taxi-multiplier"
	FeeScalingKey     = "deployment.fee.scaling"
)
