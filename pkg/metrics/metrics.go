// Package metrics holds the ledger's prometheus collectors.
package metrics

import (
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the namespace all ledger metrics are defined under.
const Namespace = "aa_ledger"

// NewCounter creates a counter vector under the ledger namespace.
func NewCounter(name, subsystem, help string, labels []string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
}

// NewGauge creates a gauge vector under the ledger namespace.
func NewGauge(name, subsystem, help string, labels []string) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(prometheus.GaugeOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
}

// NewHistogramWithBuckets creates a histogram vector with custom buckets.
func NewHistogramWithBuckets(name, subsystem, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets}, labels)
}

var (
	transactions = NewCounter(
		"transactions_total",
		"ledger",
		"transactions processed, by outcome",
		[]string{"outcome"},
	)
	processingTime = NewHistogramWithBuckets(
		"processing_seconds",
		"ledger",
		"time spent admitting one transaction, lock wait included",
		[]string{"outcome"},
		prometheus.ExponentialBuckets(0.001, 2, 12),
	)
	limitEvents = NewCounter(
		"spending_limit_events_total",
		"ledger",
		"spending limit transitions, by event type",
		[]string{"type"},
	)
	sponsorships = NewCounter(
		"sponsorships_total",
		"paymaster",
		"sponsorship attempts, by paymaster and outcome",
		[]string{"paymaster", "outcome"},
	)
	paymasterBalance = NewGauge(
		"balance_wei",
		"paymaster",
		"native balance of each paymaster",
		[]string{"paymaster"},
	)
	paymasterLow = NewGauge(
		"low_balance",
		"paymaster",
		"1 when a paymaster balance is under the configured threshold",
		[]string{"paymaster"},
	)
	httpRequests = NewHistogramWithBuckets(
		"request_duration_seconds",
		"http",
		"HTTP request latency",
		[]string{"method", "route", "status"},
		prometheus.DefBuckets,
	)
)

// ObserveTransaction records one processed transaction. outcome is SUCCESS,
// REVERTED or the rejection kind.
func ObserveTransaction(outcome string, took time.Duration) {
	transactions.WithLabelValues(outcome).Inc()
	processingTime.WithLabelValues(outcome).Observe(took.Seconds())
}

// ObserveLimitEvent counts a spending limit event.
func ObserveLimitEvent(eventType string) {
	limitEvents.WithLabelValues(eventType).Inc()
}

// ObserveSponsorship counts a sponsorship attempt.
func ObserveSponsorship(paymaster, outcome string) {
	sponsorships.WithLabelValues(paymaster, outcome).Inc()
}

// SetPaymasterBalance publishes a paymaster balance and whether it is low.
func SetPaymasterBalance(paymaster string, balance *big.Int, low bool) {
	f, _ := new(big.Float).SetInt(balance).Float64()
	paymasterBalance.WithLabelValues(paymaster).Set(f)
	v := 0.0
	if low {
		v = 1
	}
	paymasterLow.WithLabelValues(paymaster).Set(v)
}

// ObserveHTTPRequest records one HTTP request.
func ObserveHTTPRequest(method, route, status string, took time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Observe(took.Seconds())
}
