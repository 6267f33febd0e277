package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordPrediction(1, 0.002)
	m.RecordPrediction(1, 0.003)
	m.RecordPrediction(0, 0.001)
	m.RecordInputError()
	m.RecordPersistError()
	m.SetModel(0.91, 1000)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InputErrorsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistErrorsTotal))
	assert.Equal(t, 0.91, testutil.ToFloat64(m.ModelAccuracy))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.TrainingRows))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PredictSeconds))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordPrediction(1, 0.1)
		m.RecordInputError()
		m.RecordPersistError()
		m.SetModel(1, 1)
	})
}
