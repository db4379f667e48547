// Package metrics exposes Prometheus counters for the activation workflow
// and catalog transactions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services report to.
type Recorder interface {
	ActivationSent()
	ActivationFailed()
	Activated()
	TxCommitted(op string)
	TxRolledBack(op string)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	activationSent   prometheus.Counter
	activationFailed prometheus.Counter
	activated        prometheus.Counter
	txCommitted      *prometheus.CounterVec
	txRolledBack     *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		activationSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tentech_activation_emails_sent_total",
			Help: "Activation messages handed to the notifier successfully.",
		}),
		activationFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tentech_activation_emails_failed_total",
			Help: "Activation messages the notifier failed to deliver.",
		}),
		activated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tentech_activations_total",
			Help: "Accounts activated.",
		}),
		txCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tentech_catalog_tx_committed_total",
			Help: "Catalog transactions committed, by operation.",
		}, []string{"op"}),
		txRolledBack: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tentech_catalog_tx_rolled_back_total",
			Help: "Catalog transactions rolled back, by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.activationSent,
		c.activationFailed,
		c.activated,
		c.txCommitted,
		c.txRolledBack,
	)

	return c
}

func (c *Collector) ActivationSent()   { c.activationSent.Inc() }
func (c *Collector) ActivationFailed() { c.activationFailed.Inc() }
func (c *Collector) Activated()        { c.activated.Inc() }

func (c *Collector) TxCommitted(op string) {
	c.txCommitted.WithLabelValues(op).Inc()
}

func (c *Collector) TxRolledBack(op string) {
	c.txRolledBack.WithLabelValues(op).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) ActivationSent()     {}
func (Nop) ActivationFailed()   {}
func (Nop) Activated()          {}
func (Nop) TxCommitted(string)  {}
func (Nop) TxRolledBack(string) {}
