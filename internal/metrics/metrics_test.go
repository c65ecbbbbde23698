package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.OutcomesTotal.WithLabelValues("DONE", "").Inc()
	m.OutcomesTotal.WithLabelValues("FAILED", "extraction_failed").Add(2)
	m.IngestedRowsTotal.WithLabelValues("created").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutcomesTotal.WithLabelValues("DONE", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutcomesTotal.WithLabelValues("FAILED", "extraction_failed")))

	count, err := testutil.GatherAndCount(reg, "insights_outcomes_total", "insights_ingested_rows_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop()
		Nop()
	})
}
