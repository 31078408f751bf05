// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	transactionCount  *prometheus.CounterVec
	blockHeight       prometheus.Gauge
	sentMessageCount  *prometheus.CounterVec
	collectedFees     prometheus.Gauge
	deliveredMsgCount *prometheus.CounterVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := Metrics{
		transactionCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transaction_count",
				Help: "Number of transactions by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		blockHeight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "block_height",
				Help: "Height of the local ledger",
			},
		),
		sentMessageCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sent_message_count",
				Help: "Number of outbound messages by destination chain",
			},
			[]string{"destination_chain_id", "taxi"},
		),
		collectedFees: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "collected_fees",
				Help: "Value collected by the outbound log, as a float approximation",
			},
		),
		deliveredMsgCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "delivered_message_count",
				Help: "Number of inbound messages delivered by source chain",
			},
			[]string{"source_chain_id"},
		),
	}

	registerer.MustRegister(m.transactionCount)
	registerer.MustRegister(m.blockHeight)
	registerer.MustRegister(m.sentMessageCount)
	registerer.MustRegister(m.collectedFees)
	registerer.MustRegister(m.deliveredMsgCount)

	return &m
}
