package deploy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Action kinds used as metric labels.
const (
	kindDeploy     = "deploy"
	kindInitialize = "initialize"
	kindSetter     = "setter"
)

// Outcomes used as metric labels.
const (
	outcomeExecuted = "executed"
	outcomeSkipped  = "skipped"
)

// Metrics counts deployment actions. A nil *Metrics records nothing.
type Metrics struct {
	Actions *prometheus.CounterVec
	GasUsed *prometheus.CounterVec
}

// NewMetrics registers the deployer metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Actions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perpwizard_actions_total",
				Help: "Deployment actions by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		GasUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perpwizard_gas_used_total",
				Help: "Gas used by executed deployment actions",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) observe(kind, outcome string, gasUsed uint64) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(kind, outcome).Inc()
	if gasUsed > 0 {
		m.GasUsed.WithLabelValues(kind).Add(float64(gasUsed))
	}
}
