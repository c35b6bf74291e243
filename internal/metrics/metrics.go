// Package metrics exposes authentication counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the services and middleware.
type Recorder interface {
	RecordLogin(method, outcome string)
	RecordRegistration(outcome string)
	RecordReconciliation(outcome string)
	RecordTokenVerification(outcome string)
}

// Collector records authentication metrics in a Prometheus registry.
type Collector struct {
	logins         *prometheus.CounterVec
	registrations  *prometheus.CounterVec
	reconciliation *prometheus.CounterVec
	verifications  *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskmanager_logins_total",
			Help: "Login attempts by method (local or provider tag) and outcome.",
		}, []string{"method", "outcome"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskmanager_registrations_total",
			Help: "Local registration attempts by outcome.",
		}, []string{"outcome"}),
		reconciliation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskmanager_account_reconciliations_total",
			Help: "Federated account reconciliations by outcome (created, linked, unchanged, retried, failed).",
		}, []string{"outcome"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskmanager_token_verifications_total",
			Help: "Bearer token verifications by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.logins,
		c.registrations,
		c.reconciliation,
		c.verifications,
	)

	return c
}

func (c *Collector) RecordLogin(method, outcome string) {
	c.logins.WithLabelValues(method, outcome).Inc()
}

func (c *Collector) RecordRegistration(outcome string) {
	c.registrations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordReconciliation(outcome string) {
	c.reconciliation.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordTokenVerification(outcome string) {
	c.verifications.WithLabelValues(outcome).Inc()
}

// Handler returns the scrape handler for the gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordLogin(string, string) {}
func (Nop) RecordRegistration(string) {}
func (Nop) RecordReconciliation(string) {}
func (Nop) RecordTokenVerification(string) {}
