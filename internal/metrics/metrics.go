// Package metrics holds the Prometheus collectors exported by the SIMAS
// server on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	auditEntriesMetricName = "simas_audit_entries_total"
	executionsMetricName   = "simas_executions_total"
	restoresMetricName     = "simas_restores_total"
	transitionsMetricName  = "simas_atendimento_transitions_total"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	auditEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: auditEntriesMetricName,
		Help: "Audit log entries written, by action and affected table.",
	}, []string{"acao", "tabela"})
	executions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: executionsMetricName,
		Help: "Scheduled action executions, by action, target entity and result.",
	}, []string{"acao", "entidade", "result"})
	restores = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: restoresMetricName,
		Help: "Restore attempts, by restored action and result.",
	}, []string{"acao", "result"})
	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: transitionsMetricName,
		Help: "Atendimento status changes, by previous and new STATUS_PEDIDO.",
	}, []string{"de", "para"})
)

// AuditEntry counts one written audit entry.
func AuditEntry(acao, tabela string) {
	auditEntries.WithLabelValues(acao, tabela).Inc()
}

// Execution counts one execution attempt.
func Execution(acao, entidade string, err error) {
	executions.WithLabelValues(acao, entidade, result(err)).Inc()
}

// Restore counts one restore attempt.
func Restore(acao string, err error) {
	restores.WithLabelValues(acao, result(err)).Inc()
}

// Transition counts one STATUS_PEDIDO change.
func Transition(from, to string) {
	transitions.WithLabelValues(from, to).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
