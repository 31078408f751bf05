// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics serves prometheus metrics of the node and relayer.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	Namespace         = "xcomm"
	readHeaderTimeout = 5 * time.Second
)

var errDuplicatePrefix = errors.New("duplicate metrics prefix")

// NewRegistries creates a registry that includes the process and go
// collectors, plus one registerer per prefix whose metrics are named
// xcomm_<prefix>_<name>.
func NewRegistries(prefixes []string) (*prometheus.Registry, map[string]prometheus.Registerer, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	registries := make(map[string]prometheus.Registerer, len(prefixes))
	for _, prefix := range prefixes {
		if _, ok := registries[prefix]; ok {
			return nil, nil, fmt.Errorf("%w: %s", errDuplicatePrefix, prefix)
		}
		name := Namespace + "_" + strings.ReplaceAll(prefix, "-", "_") + "_"
		registries[prefix] = prometheus.WrapRegistererWithPrefix(name, registry)
	}
	return registry, registries, nil
}

// StartMetricsServer serves /metrics on port in the background and returns
// the per-prefix registerers.
func StartMetricsServer(logger log.Logger, port uint16, prefixes []string) (map[string]prometheus.Registerer, error) {
	registry, registries, err := NewRegistries(prefixes)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		logger.Info("starting metrics server", zap.Uint16("port", port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server exited", zap.Error(err))
		}
	}()
	return registries, nil
}
