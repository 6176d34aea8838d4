package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	SubmissionsTotal   prometheus.Counter
	TransitionsTotal   *prometheus.CounterVec
	ProfitUpdatesTotal prometheus.Counter
	RejectionsTotal    *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		SubmissionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "investments_submitted_total",
			Help: "Total accepted investment submissions.",
		}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "investment_status_transitions_total",
			Help: "Total investment status transitions by target status.",
		}, []string{"to"}),
		ProfitUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "investment_profit_updates_total",
			Help: "Total expected-profit updates.",
		}),
		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "investment_rejections_total",
			Help: "Total rejected lifecycle operations by reason.",
		}, []string{"reason"}),
	}

	if registry != nil {
		registry.MustRegister(m.SubmissionsTotal, m.TransitionsTotal, m.ProfitUpdatesTotal, m.RejectionsTotal)
	}
	return m
}
