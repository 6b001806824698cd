package engine

import "github.com/prometheus/client_golang/prometheus"

const outcomeOK = "ok"

var operationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "timelock_operations_total",
		Help: "Engine calls by operation and outcome.",
	},
	[]string{"op", "outcome"},
)

func init() {
	prometheus.MustRegister(operationsTotal)

	for _, op := range []string{opInitialize, opQueue, opExecute, opCancel} {
		operationsTotal.WithLabelValues(op, outcomeOK)
	}
}

func observe(op string, err error) {
	outcome := outcomeOK
	if err != nil {
		outcome = string(KindOf(err))
	}
	operationsTotal.WithLabelValues(op, outcome).Inc()
}
