// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/log"
	"github.com/luxfi/xcomm/api"
	"github.com/luxfi/xcomm/chain"
	"github.com/luxfi/xcomm/config"
	"github.com/luxfi/xcomm/consumer"
	"github.com/luxfi/xcomm/gate"
	"github.com/luxfi/xcomm/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	chainMetricsPrefix   = "chain"
	relayerMetricsPrefix = "relayer"

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second

	responderFinality  = 1
	responderQueueSize = 64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a chain node",
	Long:  `Host the messaging contracts of the configured deployment and serve them over HTTP.`,
	RunE:  runServe,
}

func init() {
	config.AddFlags(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.Info("Initializing xcomm node", zap.String("version", version))

	deployment, err := cfg.Deployment.ToDeployment()
	if err != nil {
		return fmt.Errorf("invalid deployment: %w", err)
	}

	registries, err := metrics.StartMetricsServer(logger, cfg.MetricsPort, []string{chainMetricsPrefix})
	if err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	recorder := consumer.NewRecorder(logger)
	c, err := chain.New(logger, deployment, recorder, chain.WithMetrics(chain.NewMetrics(registries[chainMetricsPrefix])))
	if err != nil {
		return fmt.Errorf("failed to create chain: %w", err)
	}

	// The responder replies from the outbox address and is selected with
	// updateConsumer.
	responder := consumer.NewResponder(logger, c, deployment.OutboxAddress, responderFinality, responderQueueSize)

	mux := http.NewServeMux()
	api.NewServer(logger, c, api.WithConsumers(map[string]gate.Consumer{
		"recorder":  recorder,
		"ping-pong": responder,
	})).RegisterHandlers(mux)
	api.HandleHealthCheckRequest(mux, "xcomm-node-health", func(context.Context) error {
		if len(c.Access().Oracles()) == 0 {
			return errors.New("no oracles configured")
		}
		if len(c.Access().Relayers()) == 0 {
			return errors.New("no relayers configured")
		}
		return nil
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errGroup, ctx := errgroup.WithContext(ctx)
	errGroup.Go(func() error {
		return responder.Run(ctx)
	})
	errGroup.Go(func() error {
		return serveHTTP(ctx, logger, cfg.APIPort, mux)
	})
	return errGroup.Wait()
}

// serveHTTP serves handler on port until ctx is done, then shuts down
// gracefully.
func serveHTTP(ctx context.Context, logger log.Logger, port uint16, handler http.Handler) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errGroup, ctx := errgroup.WithContext(ctx)
	errGroup.Go(func() error {
		logger.Info("Starting API server", zap.Uint16("port", port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	errGroup.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return errGroup.Wait()
}
