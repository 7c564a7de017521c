package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmissionMetrics_NilSafe(t *testing.T) {
	var m *EmissionMetrics
	m.InvoiceCreated("service")
	m.SubmissionCompleted("issued", time.Second)
	m.LedgerWriteFailed()
	m.LedgerBackfilled(2)

	inert := NewEmissionMetrics(nil)
	inert.InvoiceCreated("service")
	inert.LedgerWriteFailed()
}

func TestEmissionMetrics_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEmissionMetrics(reg)

	m.InvoiceCreated("goods")
	m.SubmissionCompleted("issued", 10*time.Millisecond)
	m.SubmissionCompleted("failed", 20*time.Millisecond)
	m.SubmissionCompleted("issued", 30*time.Millisecond)
	m.LedgerWriteFailed()
	m.LedgerBackfilled(3)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}

	subs := byName["nota_fiscal_submissions_total"]
	require.NotNil(t, subs)
	counts := map[string]float64{}
	for _, metric := range subs.GetMetric() {
		counts[metric.GetLabel()[0].GetValue()] = metric.GetCounter().GetValue()
	}
	assert.Equal(t, 2.0, counts["issued"])
	assert.Equal(t, 1.0, counts["failed"])

	assert.Equal(t, 1.0, byName["nota_fiscal_ledger_write_failures_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 3.0, byName["nota_fiscal_ledger_backfilled_total"].GetMetric()[0].GetCounter().GetValue())
}
