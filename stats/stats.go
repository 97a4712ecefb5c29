// Package stats surfaces runtime metrics in prometheus format
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	invocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wasmgate",
			Name:      "invocations_total",
			Help:      "Guest invocations by outcome (ok, route, fuel, trap, ...)",
		},
		[]string{"outcome"},
	)
	latency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wasmgate",
			Name:      "invocation_seconds",
			Help:      "End-to-end invocation latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)
	gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wasmgate",
			Name:      "gateway_requests_total",
			Help:      "CGI gateway requests by status class",
		},
		[]string{"class"},
	)
)

func init() {
	prometheus.MustRegister(invocations, latency, gatewayRequests)
}

func Invocation(outcome string, elapsed time.Duration) {
	invocations.WithLabelValues(outcome).Inc()
	latency.Observe(elapsed.Seconds())
}

func GatewayRequest(class string) { gatewayRequests.WithLabelValues(class).Inc() }

func Handler() http.Handler { return promhttp.Handler() }
