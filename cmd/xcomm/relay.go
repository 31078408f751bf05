// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/log"
	"github.com/luxfi/xcomm"
	"github.com/luxfi/xcomm/api"
	"github.com/luxfi/xcomm/config"
	"github.com/luxfi/xcomm/database"
	"github.com/luxfi/xcomm/metrics"
	"github.com/luxfi/xcomm/relayer"
	"github.com/luxfi/xcomm/signer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the relayer",
	Long: `Relay messages along every configured route. The relayer key must be an
oracle and a relayer on each destination chain.`,
	RunE: runRelay,
}

func init() {
	config.AddFlags(relayCmd.Flags())
}

func runRelay(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	if len(cfg.Relayer.Routes) == 0 {
		return fmt.Errorf("no relayer routes configured")
	}
	logger.Info("Initializing xcomm relayer", zap.String("version", version))

	key, err := signer.NewLocalSignerFromHex(cfg.Relayer.AccountPrivateKey)
	if err != nil {
		return err
	}
	logger.Info("Loaded relayer key", zap.Stringer("address", key.Address()))

	registries, err := metrics.StartMetricsServer(logger, cfg.MetricsPort, []string{relayerMetricsPrefix})
	if err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	relayerMetrics := relayer.NewApplicationRelayerMetrics(registries[relayerMetricsPrefix])

	db, err := database.NewDatabase(logger, cfg.Relayer.StorageLocation, cfg.Relayer.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		relayers     = make([]*relayer.Relayer, 0, len(cfg.Relayer.Routes))
		writeSignals = make([]chan struct{}, 0, len(cfg.Relayer.Routes))
	)
	for _, route := range cfg.Relayer.Routes {
		source := api.NewClient(logger, route.SourceAPI, xcomm.ChainID(route.SourceChainID), nil)
		dest := api.NewClient(logger, route.DestinationAPI, xcomm.ChainID(route.DestinationChainID), key,
			api.WithRequestTTL(cfg.Relayer.RequestTTL()),
		)
		writeSignal := make(chan struct{}, 1)
		r, err := relayer.NewRelayer(logger, source, dest, db, writeSignal, relayerMetrics, relayer.Config{
			PollInterval:       cfg.Relayer.PollInterval(),
			RetryTimeout:       cfg.Relayer.RetryTimeout(),
			DeliveredCacheSize: cfg.Relayer.DeliveredCacheSize,
			StartIndex:         route.StartIndex,
		})
		if err != nil {
			return fmt.Errorf("failed to create relayer %d -> %d: %w", route.SourceChainID, route.DestinationChainID, err)
		}
		relayers = append(relayers, r)
		writeSignals = append(writeSignals, writeSignal)
	}

	go signalWrites(ctx, logger, cfg.Relayer.DBWriteInterval(), writeSignals)
	return relayer.RunAll(ctx, relayers)
}

// signalWrites asks every checkpoint manager to flush once per interval.
func signalWrites(ctx context.Context, logger log.Logger, interval time.Duration, signals []chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Debug("Signaling checkpoint writes")
			for _, s := range signals {
				select {
				case s <- struct{}{}:
				default:
				}
			}
		}
	}
}
