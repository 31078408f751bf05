// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/xcomm"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const testConfig = `{
  "log-level": "debug",
  "deployment": {
    "chain-id": 1,
    "admin": "0x00000000000000000000000000000000000000a1",
    "oracles": ["0x00000000000000000000000000000000000000c1"],
    "relayers": ["0x00000000000000000000000000000000000000d1"],
    "peers": [
      {"chain-id": 2, "addresses": ["0x00000000000000000000000000000000000000b2"], "initial-block": 7}
    ],
    "fee": {"base-fee": "100", "taxi-multiplier": 3}
  },
  "relayer": {
    "account-private-key": "0x01",
    "routes": [
      {"source-chain-id": 2, "source-api": "http://b", "destination-chain-id": 1, "destination-api": "http://a"}
    ]
  }
}`

func buildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("xcomm", pflag.ContinueOnError)
	AddFlags(fs)
	return fs
}

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestBuildConfig(t *testing.T) {
	require := require.New(t)

	fs := buildFlagSet()
	require.NoError(fs.Parse([]string{"--" + ConfigFileKey, writeConfig(t, testConfig), "--" + APIPortKey, "8181"}))
	t.Setenv("XCOMM_METRICS_PORT", "9191")

	v, err := BuildViper(fs)
	require.NoError(err)
	cfg, err := NewConfig(v)
	require.NoError(err)

	require.Equal("debug", cfg.LogLevel)
	require.Equal(uint16(8181), cfg.APIPort)
	require.Equal(uint16(9191), cfg.MetricsPort)
	require.Equal(defaultPollIntervalSeconds, cfg.Relayer.PollIntervalSeconds)
	require.Equal(defaultDeliveredCacheSize, cfg.Relayer.DeliveredCacheSize)
	require.Len(cfg.Relayer.Routes, 1)

	d, err := cfg.Deployment.ToDeployment()
	require.NoError(err)
	require.Equal(xcomm.ChainID(1), d.ChainID)
	require.Equal(common.HexToAddress("0xa1"), d.Admin)
	require.Equal([]common.Address{common.HexToAddress("0xc1")}, d.Oracles)
	require.Equal([]common.Address{common.HexToAddress("0xb2")}, d.Peers[2])
	require.Equal(uint64(7), d.InitialBlocks[2])

	fee, err := d.Fee.Fee(5, true)
	require.NoError(err)
	require.Equal(uint256.NewInt(100*3*5), fee)
}

func TestBuildViperRequiresConfigFile(t *testing.T) {
	fs := buildFlagSet()
	require.NoError(t, fs.Parse(nil))
	_, err := BuildViper(fs)
	require.Error(t, err)
}

func TestDeploymentValidation(t *testing.T) {
	valid := func() DeploymentConfig {
		return DeploymentConfig{
			ChainID: 1,
			Admin:   "0x00000000000000000000000000000000000000a1",
			Peers:   []PeerConfig{{ChainID: 2}},
			Fee:     FeeConfig{BaseFee: "1", TaxiMultiplier: 2},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*DeploymentConfig)
		wantErr error
	}{
		{name: "valid", mutate: func(*DeploymentConfig) {}},
		{name: "no chain id", mutate: func(d *DeploymentConfig) { d.ChainID = 0 }, wantErr: errInvalidChainID},
		{name: "bad admin", mutate: func(d *DeploymentConfig) { d.Admin = "admin" }, wantErr: errInvalidAddress},
		{name: "bad oracle", mutate: func(d *DeploymentConfig) { d.Oracles = []string{"0x12"} }, wantErr: errInvalidAddress},
		{name: "self peer", mutate: func(d *DeploymentConfig) { d.Peers[0].ChainID = 1 }, wantErr: errInvalidChainID},
		{name: "bad base fee", mutate: func(d *DeploymentConfig) { d.Fee.BaseFee = "-1" }, wantErr: errInvalidBaseFee},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(&d)
			_, err := d.ToDeployment()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	d := valid()
	d.Fee.Scaling = "quadratic"
	_, err := d.ToDeployment()
	require.Error(t, err)
}

func TestRelayerValidation(t *testing.T) {
	valid := func() RelayerConfig {
		return RelayerConfig{
			AccountPrivateKey:      "0x01",
			PollIntervalSeconds:    1,
			RetryTimeoutSeconds:    1,
			DBWriteIntervalSeconds: 1,
			Routes: []RouteConfig{
				{SourceChainID: 1, SourceAPI: "http://a", DestinationChainID: 2, DestinationAPI: "http://b"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*RelayerConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(*RelayerConfig) {}},
		{name: "zero interval", mutate: func(c *RelayerConfig) { c.PollIntervalSeconds = 0 }, wantErr: true},
		{name: "two stores", mutate: func(c *RelayerConfig) { c.StorageLocation, c.RedisURL = "/tmp/db", "redis://x" }, wantErr: true},
		{name: "no key", mutate: func(c *RelayerConfig) { c.AccountPrivateKey = "" }, wantErr: true},
		{name: "loop route", mutate: func(c *RelayerConfig) { c.Routes[0].DestinationChainID = 1 }, wantErr: true},
		{name: "missing api", mutate: func(c *RelayerConfig) { c.Routes[0].SourceAPI = "" }, wantErr: true},
		{name: "duplicate route", mutate: func(c *RelayerConfig) { c.Routes = append(c.Routes, c.Routes[0]) }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"trace", "debug", "info", "WARN", "error", "off"} {
		_, err := ParseLogLevel(level)
		require.NoError(t, err, level)
	}
	lvl, err := ParseLogLevel("")
	require.NoError(t, err)
	require.Equal(t, "INFO", lvl.String())

	_, err = ParseLogLevel("loud")
	require.ErrorIs(t, err, errInvalidLogLevel)
}
