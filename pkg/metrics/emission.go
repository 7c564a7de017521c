package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EmissionMetrics métricas del flujo de emisión de notas fiscales.
// Todos los métodos son seguros sobre un receptor nil.
type EmissionMetrics struct {
	created         *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	ledgerFailures  prometheus.Counter
	ledgerBackfills prometheus.Counter
}

// NewEmissionMetrics registra las métricas en reg; nil devuelve una instancia inerte.
func NewEmissionMetrics(reg prometheus.Registerer) *EmissionMetrics {
	if reg == nil {
		return &EmissionMetrics{}
	}
	m := &EmissionMetrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nota_fiscal_invoices_created_total",
			Help: "Notas fiscales creadas en estado pending.",
		}, []string{"kind"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nota_fiscal_submissions_total",
			Help: "Envíos a la SEFAZ por resultado (issued|failed).",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nota_fiscal_submission_duration_seconds",
			Help:    "Duración del envío + conciliación.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		ledgerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nota_fiscal_ledger_write_failures_total",
			Help: "Notas emitidas cuyo asiento en el flujo de caja no se pudo escribir.",
		}),
		ledgerBackfills: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nota_fiscal_ledger_backfilled_total",
			Help: "Asientos creados por la conciliación posterior del flujo de caja.",
		}),
	}
	reg.MustRegister(m.created, m.submissions, m.duration, m.ledgerFailures, m.ledgerBackfills)
	return m
}

// InvoiceCreated cuenta una nota creada.
func (m *EmissionMetrics) InvoiceCreated(kind string) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(kind)).Inc()
}

// SubmissionCompleted cuenta un envío conciliado y su duración.
func (m *EmissionMetrics) SubmissionCompleted(outcome string, d time.Duration) {
	if m == nil || m.submissions == nil {
		return
	}
	label := normalizeLabel(outcome)
	m.submissions.WithLabelValues(label).Inc()
	m.duration.WithLabelValues(label).Observe(d.Seconds())
}

// LedgerWriteFailed cuenta un asiento perdido.
func (m *EmissionMetrics) LedgerWriteFailed() {
	if m == nil || m.ledgerFailures == nil {
		return
	}
	m.ledgerFailures.Inc()
}

// LedgerBackfilled cuenta asientos recuperados.
func (m *EmissionMetrics) LedgerBackfilled(n int) {
	if m == nil || m.ledgerBackfills == nil || n <= 0 {
		return
	}
	m.ledgerBackfills.Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
