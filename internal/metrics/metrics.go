// Package metrics exposes Prometheus collectors for the billing ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AdmissionChecks counts inlet-phase checks by outcome.
	AdmissionChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metergate",
		Name:      "admission_checks_total",
		Help:      "Admission (inlet) checks by outcome.",
	}, []string{"outcome"})

	// Settlements counts outlet-phase settlements by pool and outcome.
	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metergate",
		Name:      "settlements_total",
		Help:      "Settlements (outlet) by debited pool and outcome.",
	}, []string{"pool", "outcome"})

	// ChargedTotal accumulates the settled charges in currency units.
	ChargedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "metergate",
		Name:      "charged_total",
		Help:      "Total amount charged by successful settlements.",
	})

	// ReconcileDrift reports the absolute difference found by the last
	// global-usage reconciliation.
	ReconcileDrift = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "metergate",
		Name:      "reconcile_drift",
		Help:      "Absolute counter drift repaired by the last reconciliation.",
	})
)

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)
