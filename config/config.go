// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads the node and relayer configuration.
package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/xcomm"
	"github.com/luxfi/xcomm/chain"
	"github.com/luxfi/xcomm/outbox"
)

const (
	defaultLogLevel               = "info"
	defaultAPIPort                = uint16(8080)
	defaultMetricsPort            = uint16(9090)
	defaultPollIntervalSeconds    = uint64(1)
	defaultRetryTimeoutSeconds    = uint64(60)
	defaultDBWriteIntervalSeconds = uint64(10)
	defaultDeliveredCacheSize     = 4096
	defaultRequestTTLSeconds      = uint64(60)
	defaultTaxiMultiplier         = uint64(2)
	defaultFeeScaling             = outbox.ScalingLinear
)

var (
	errInvalidLogLevel = errors.New("invalid log level")
	errInvalidAddress  = errors.New("invalid address")
	errInvalidBaseFee  = errors.New("invalid base fee")
	errInvalidChainID  = errors.New("invalid chain id")
	errInvalidRoute    = errors.New("invalid relayer route")
	errDuplicateRoute  = errors.New("duplicate relayer route")
	errInvalidInterval = errors.New("interval must be positive")
)

// Config is the top-level configuration.
type Config struct {
	LogLevel    string           `mapstructure:"log-level" json:"log-level"`
	APIPort     uint16           `mapstructure:"api-port" json:"api-port"`
	MetricsPort uint16           `mapstructure:"metrics-port" json:"metrics-port"`
	Deployment  DeploymentConfig `mapstructure:"deployment" json:"deployment"`
	Relayer     RelayerConfig    `mapstructure:"relayer" json:"relayer"`
}

// DeploymentConfig describes the chain a node hosts.
type DeploymentConfig struct {
	ChainID       uint64       `mapstructure:"chain-id" json:"chain-id"`
	Admin         string       `mapstructure:"admin" json:"admin"`
	OutboxAddress string       `mapstructure:"outbox-address" json:"outbox-address"`
	Oracles       []string     `mapstructure:"oracles" json:"oracles"`
	Relayers      []string     `mapstructure:"relayers" json:"relayers"`
	Peers         []PeerConfig `mapstructure:"peers" json:"peers"`
	Fee           FeeConfig    `mapstructure:"fee" json:"fee"`
}

// PeerConfig lists the peer contracts of one remote chain.
type PeerConfig struct {
	ChainID      uint64   `mapstructure:"chain-id" json:"chain-id"`
	Addresses    []string `mapstructure:"addresses" json:"addresses"`
	InitialBlock uint64   `mapstructure:"initial-block" json:"initial-block"`
}

// FeeConfig is the outbound fee policy. BaseFee is a decimal string so that
// values above 2^64 can be expressed.
type FeeConfig struct {
	BaseFee        string `mapstructure:"base-fee" json:"base-fee"`
	TaxiMultiplier uint64 `mapstructure:"taxi-multiplier" json:"taxi-multiplier"`
	Scaling        string `mapstructure:"scaling" json:"scaling"`
	Horizon        uint16 `mapstructure:"horizon" json:"horizon"`
}

// RelayerConfig configures the relayer process.
type RelayerConfig struct {
	AccountPrivateKey      string        `mapstructure:"account-private-key" json:"account-private-key"`
	StorageLocation        string        `mapstructure:"storage-location" json:"storage-location"`
	RedisURL               string        `mapstructure:"redis-url" json:"redis-url"`
	PollIntervalSeconds    uint64        `mapstructure:"poll-interval-seconds" json:"poll-interval-seconds"`
	RetryTimeoutSeconds    uint64        `mapstructure:"retry-timeout-seconds" json:"retry-timeout-seconds"`
	DBWriteIntervalSeconds uint64        `mapstructure:"db-write-interval-seconds" json:"db-write-interval-seconds"`
	DeliveredCacheSize     int           `mapstructure:"delivered-cache-size" json:"delivered-cache-size"`
	RequestTTLSeconds      uint64        `mapstructure:"request-ttl-seconds" json:"request-ttl-seconds"`
	Routes                 []RouteConfig `mapstructure:"routes" json:"routes"`
}

// RouteConfig is one relayed direction between two chain APIs.
type RouteConfig struct {
	SourceChainID      uint64 `mapstructure:"source-chain-id" json:"source-chain-id"`
	SourceAPI          string `mapstructure:"source-api" json:"source-api"`
	DestinationChainID uint64 `mapstructure:"destination-chain-id" json:"destination-chain-id"`
	DestinationAPI     string `mapstructure:"destination-api" json:"destination-api"`
	// StartIndex is the first outbound record index read when no checkpoint
	// is stored.
	StartIndex uint64 `mapstructure:"start-index" json:"start-index"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Deployment.ChainID != 0 {
		if _, err := c.Deployment.ToDeployment(); err != nil {
			return err
		}
	}
	return c.Relayer.Validate()
}

// ParseLogLevel converts a level name into a log level. An empty name is
// the info level.
func ParseLogLevel(level string) (log.Level, error) {
	if level == "" {
		level = defaultLogLevel
	}
	lvl, err := log.ToLevel(level)
	if err != nil {
		return lvl, fmt.Errorf("%w: %w", errInvalidLogLevel, err)
	}
	return lvl, nil
}

// Validate checks the relayer configuration.
func (c *RelayerConfig) Validate() error {
	if c.PollIntervalSeconds == 0 || c.RetryTimeoutSeconds == 0 || c.DBWriteIntervalSeconds == 0 {
		return errInvalidInterval
	}
	if c.StorageLocation != "" && c.RedisURL != "" {
		return fmt.Errorf("only one of %s or %s may be set", StorageLocationKey, RedisURLKey)
	}
	if len(c.Routes) > 0 && c.AccountPrivateKey == "" {
		return fmt.Errorf("%s is required to relay", AccountPrivateKeyKey)
	}
	seen := make(map[[2]uint64]struct{}, len(c.Routes))
	for i, r := range c.Routes {
		if r.SourceChainID == 0 || r.DestinationChainID == 0 || r.SourceChainID == r.DestinationChainID {
			return fmt.Errorf("%w: route %d has chains %d -> %d", errInvalidRoute, i, r.SourceChainID, r.DestinationChainID)
		}
		if r.SourceAPI == "" || r.DestinationAPI == "" {
			return fmt.Errorf("%w: route %d is missing an api url", errInvalidRoute, i)
		}
		key := [2]uint64{r.SourceChainID, r.DestinationChainID}
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %d -> %d", errDuplicateRoute, r.SourceChainID, r.DestinationChainID)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (c *RelayerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c *RelayerConfig) RetryTimeout() time.Duration {
	return time.Duration(c.RetryTimeoutSeconds) * time.Second
}

func (c *RelayerConfig) DBWriteInterval() time.Duration {
	return time.Duration(c.DBWriteIntervalSeconds) * time.Second
}

func (c *RelayerConfig) RequestTTL() time.Duration {
	return time.Duration(c.RequestTTLSeconds) * time.Second
}

// ToDeployment converts the deployment section into a chain deployment.
func (c *DeploymentConfig) ToDeployment() (chain.Deployment, error) {
	d := chain.Deployment{
		ChainID:       xcomm.ChainID(c.ChainID),
		Peers:         make(map[xcomm.ChainID][]common.Address, len(c.Peers)),
		InitialBlocks: make(map[xcomm.ChainID]uint64, len(c.Peers)),
	}
	if c.ChainID == 0 {
		return d, fmt.Errorf("%w: deployment chain id must be set", errInvalidChainID)
	}

	var err error
	if d.Admin, err = parseAddress(c.Admin); err != nil {
		return d, fmt.Errorf("admin: %w", err)
	}
	if c.OutboxAddress != "" {
		if d.OutboxAddress, err = parseAddress(c.OutboxAddress); err != nil {
			return d, fmt.Errorf("outbox address: %w", err)
		}
	}
	if d.Oracles, err = parseAddresses(c.Oracles); err != nil {
		return d, fmt.Errorf("oracles: %w", err)
	}
	if d.Relayers, err = parseAddresses(c.Relayers); err != nil {
		return d, fmt.Errorf("relayers: %w", err)
	}
	for _, p := range c.Peers {
		if p.ChainID == 0 || p.ChainID == c.ChainID {
			return d, fmt.Errorf("%w: peer chain %d", errInvalidChainID, p.ChainID)
		}
		addrs, err := parseAddresses(p.Addresses)
		if err != nil {
			return d, fmt.Errorf("peers of chain %d: %w", p.ChainID, err)
		}
		id := xcomm.ChainID(p.ChainID)
		d.Peers[id] = append(d.Peers[id], addrs...)
		if p.InitialBlock != 0 {
			d.InitialBlocks[id] = p.InitialBlock
		}
	}

	if d.Fee, err = c.Fee.ToPolicy(); err != nil {
		return d, err
	}
	return d, nil
}

// ToPolicy converts the fee section into a fee policy.
func (c *FeeConfig) ToPolicy() (outbox.FeePolicy, error) {
	baseFee := new(uint256.Int)
	if c.BaseFee != "" {
		var err error
		if baseFee, err = uint256.FromDecimal(c.BaseFee); err != nil {
			return outbox.FeePolicy{}, fmt.Errorf("%w %q: %w", errInvalidBaseFee, c.BaseFee, err)
		}
	}
	scaling, err := outbox.ScalingByName(c.Scaling, c.Horizon)
	if err != nil {
		return outbox.FeePolicy{}, err
	}
	if c.TaxiMultiplier > math.MaxUint32 {
		return outbox.FeePolicy{}, fmt.Errorf("taxi multiplier %d is too large", c.TaxiMultiplier)
	}
	return outbox.FeePolicy{
		BaseFee:        baseFee,
		TaxiMultiplier: c.TaxiMultiplier,
		Scaling:        scaling,
	}, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", errInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

func parseAddresses(ss []string) ([]common.Address, error) {
	addrs := make([]common.Address, 0, len(ss))
	for _, s := range ss {
		addr, err := parseAddress(s)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
