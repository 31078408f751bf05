// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Failure reasons reported by failed_relay_message_count.
const (
	failureCommit  = "commit"
	failureDeliver = "deliver"
	failureSource  = "source"
)

type ApplicationRelayerMetrics struct {
	successfulRelayMessageCount *prometheus.CounterVec
	failedRelayMessageCount     *prometheus.CounterVec
	oracleCommitCount           *prometheus.CounterVec
	relayMessageLatencyMS       *prometheus.GaugeVec
	processedIndex              *prometheus.GaugeVec
}

func NewApplicationRelayerMetrics(registerer prometheus.Registerer) *ApplicationRelayerMetrics {
	m := ApplicationRelayerMetrics{
		successfulRelayMessageCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "successful_relay_message_count",
				Help: "Number of messages that relayed successfully",
			},
			[]string{"destination_chain_id", "source_chain_id"},
		),
		failedRelayMessageCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "failed_relay_message_count",
				Help: "Number of messages that failed to relay",
			},
			[]string{"destination_chain_id", "source_chain_id", "failure_reason"},
		),
		oracleCommitCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracle_commit_count",
				Help: "Number of chain state commitments submitted to the destination",
			},
			[]string{"destination_chain_id", "source_chain_id", "method"},
		),
		relayMessageLatencyMS: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_message_latency_ms",
				Help: "Latency of relaying a final message in milliseconds",
			},
			[]string{"destination_chain_id", "source_chain_id"},
		),
		processedIndex: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "processed_index",
				Help: "Number of source outbound records covered by the checkpoint",
			},
			[]string{"destination_chain_id", "source_chain_id"},
		),
	}

	registerer.MustRegister(m.successfulRelayMessageCount)
	registerer.MustRegister(m.failedRelayMessageCount)
	registerer.MustRegister(m.oracleCommitCount)
	registerer.MustRegister(m.relayMessageLatencyMS)
	registerer.MustRegister(m.processedIndex)

	return &m
}
