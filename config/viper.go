// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const usageText = `Usage:
xcomm <command> --config-file path-to-config            Runs the command with the provided config file
xcomm <command> --help                                  Display usage text
xcomm --version                                         Display version`

// DisplayUsageText prints how the config file is provided.
func DisplayUsageText() {
	fmt.Println(usageText)
}

// AddFlags registers the configuration flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ConfigFileKey, "", "Specifies the config file path")
	fs.String(LogLevelKey, defaultLogLevel, "Log level: trace, debug, info, warn, error or off")
	fs.Uint16(APIPortKey, defaultAPIPort, "Port of the API server")
	fs.Uint16(MetricsPortKey, defaultMetricsPort, "Port of the metrics server")
}

func NewConfig(v *viper.Viper) (Config, error) {
	cfg, err := BuildConfig(v)
	if err != nil {
		return cfg, err
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to validate configuration: %w", err)
	}
	return cfg, nil
}

// BuildViper builds the viper instance. The config file must be provided via
// the command line flag or environment variable. All config keys may be
// provided via config file or environment variable.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// Map keys to env var names: hyphens and dots become underscores.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if !v.IsSet(ConfigFileKey) || v.GetString(ConfigFileKey) == "" {
		DisplayUsageText()
		return nil, fmt.Errorf("config file not set")
	}

	filename := v.GetString(ConfigFileKey)
	v.SetConfigFile(filename)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return v, nil
}

func SetDefaultConfigValues(v *viper.Viper) {
	v.SetDefault(LogLevelKey, defaultLogLevel)
	v.SetDefault(APIPortKey, defaultAPIPort)
	v.SetDefault(MetricsPortKey, defaultMetricsPort)
	v.SetDefault(PollIntervalSecondsKey, defaultPollIntervalSeconds)
	v.SetDefault(RetryTimeoutSecondsKey, defaultRetryTimeoutSeconds)
	v.SetDefault(DBWriteIntervalSecondsKey, defaultDBWriteIntervalSeconds)
	v.SetDefault(DeliveredCacheSizeKey, defaultDeliveredCacheSize)
	v.SetDefault(RequestTTLSecondsKey, defaultRequestTTLSeconds)
	v.SetDefault(TaxiMultiplierKey, defaultTaxiMultiplier)
	v.SetDefault(FeeScalingKey, defaultFeeScaling)
}

// BuildConfig constructs the config using Viper.
// The following precedence order is used. Each item takes precedence over the item below it:
//  1. Flags
//  2. Environment variables
//  3. Config file
//
// Returns the Config
func BuildConfig(v *viper.Viper) (Config, error) {
	SetDefaultConfigValues(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal viper config: %w", err)
	}
	return cfg, nil
}
