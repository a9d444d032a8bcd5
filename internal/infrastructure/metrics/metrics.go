// Package metrics expone los contadores del ciclo de vida de la e-Invoice y la latencia de LHDN.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/myinvois-api/internal/domain/entity"
)

// Collector implementa einvoice.Metrics y myinvois.CallObserver sobre un registro propio.
type Collector struct {
	registry *prometheus.Registry

	transitions   *prometheus.CounterVec
	submissions   *prometheus.CounterVec
	authorityCall *prometheus.HistogramVec
}

// New crea el registro con los colectores del proceso y de Go.
func New(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "einvoice_transitions_total",
			Help:      "Transiciones registradas en la bitácora por acción y estado resultante.",
		}, []string{"action", "status"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "einvoice_submissions_total",
			Help:      "Resultados de envío a LHDN (submitted, rejected, transport_error).",
		}, []string{"outcome"}),
		authorityCall: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "authority_call_duration_seconds",
			Help:      "Duración de las llamadas a la API de MyInvois.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"op", "result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.transitions,
		c.submissions,
		c.authorityCall,
	)
	return c
}

func (c *Collector) Transition(action string, status entity.EInvoiceStatus) {
	c.transitions.WithLabelValues(action, string(status)).Inc()
}

func (c *Collector) SubmissionOutcome(outcome string) {
	c.submissions.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveAuthorityCall(op string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.authorityCall.WithLabelValues(op, result).Observe(elapsed.Seconds())
}

// Registry registro subyacente (pruebas y exportadores adicionales).
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler http.Handler para /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
