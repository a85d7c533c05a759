// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes Prometheus instrumentation for request
// execution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationAttempts counts every request attempt, retries included
	operationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_operation_attempts_total",
			Help: "Total request attempts by operation",
		},
		[]string{"operation"},
	)

	// operationRetries counts attempts beyond the first
	operationRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_operation_retries_total",
			Help: "Total retried attempts by operation",
		},
		[]string{"operation"},
	)

	// operationFailures counts operations that ended in an error
	operationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_operation_failures_total",
			Help: "Total failed operations by operation and error type",
		},
		[]string{"operation", "error_type"},
	)

	// operationDuration observes end-to-end operation latency
	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_operation_duration_seconds",
			Help:    "End-to-end operation duration by operation and outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	// operationsInFlight tracks operations currently executing
	operationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_operations_in_flight",
			Help: "Number of operations currently executing",
		},
	)

	// throttlingEvents counts attempts the service answered with a
	// throttling response
	throttlingEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_throttling_events_total",
			Help: "Total attempts classified as throttled by the service",
		},
	)
)

// RecordAttempt increments the attempt counter.
func RecordAttempt(operation string) {
	operationAttempts.WithLabelValues(operation).Inc()
}

// RecordRetry increments the retry counter.
func RecordRetry(operation string) {
	operationRetries.WithLabelValues(operation).Inc()
}

// RecordFailure increments the failure counter.
func RecordFailure(operation, errorType string) {
	operationFailures.WithLabelValues(operation, errorType).Inc()
}

// ObserveDuration records how long an operation took.
func ObserveDuration(operation, outcome string, d time.Duration) {
	operationDuration.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

// OperationStarted marks an operation in flight. The returned func
// marks it done.
func OperationStarted() func() {
	operationsInFlight.Inc()
	return operationsInFlight.Dec
}

// RecordThrottle increments the throttling counter.
func RecordThrottle() {
	throttlingEvents.Inc()
}
