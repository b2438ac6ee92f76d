/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrpilot_rpc_requests_total",
			Help: "Total JSON-RPC requests by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	rpcDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mrpilot_rpc_duration_seconds",
			Help:    "JSON-RPC request durations",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"method"},
	)

	activeSlaveGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mrpilot_active_slave",
			Help: "Whether an authenticated slave channel is active (0 or 1)",
		},
	)
)
