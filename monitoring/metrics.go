// Package monitoring exposes Prometheus metrics for the prediction service and a
// websocket feed of newly stored predictions.
//
// Metrics exposed:
//   - heartpredict_predictions_total: Counter of predictions by label
//   - heartpredict_input_errors_total: Counter of rejected form submissions
//   - heartpredict_persist_errors_total: Counter of failed record store writes
//   - heartpredict_predict_seconds: Histogram of scale + vote duration
//   - heartpredict_model_accuracy: Gauge of held-out accuracy from startup training
//   - heartpredict_training_rows: Gauge of rows after class balancing
package monitoring

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	PredictionsTotal   *prometheus.CounterVec
	InputErrorsTotal   prometheus.Counter
	PersistErrorsTotal prometheus.Counter
	PredictSeconds     prometheus.Histogram
	ModelAccuracy      prometheus.Gauge
	TrainingRows       prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PredictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "heartpredict_predictions_total",
			Help: "Total number of predictions served, by predicted label",
		}, []string{"label"}),

		InputErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "heartpredict_input_errors_total",
			Help: "Total number of submissions rejected because a field was not numeric",
		}),

		PersistErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "heartpredict_persist_errors_total",
			Help: "Total number of predictions that could not be written to the record store",
		}),

		PredictSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "heartpredict_predict_seconds",
			Help:    "Time spent scaling and classifying one vector",
			Buckets: prometheus.DefBuckets,
		}),

		ModelAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "heartpredict_model_accuracy",
			Help: "Accuracy of the startup model on the held-out split",
		}),

		TrainingRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "heartpredict_training_rows",
			Help: "Number of rows after class balancing",
		}),
	}
}

func (m *Metrics) RecordPrediction(label int, seconds float64) {
	if m == nil {
		return
	}
	m.PredictionsTotal.WithLabelValues(strconv.Itoa(label)).Inc()
	m.PredictSeconds.Observe(seconds)
}

func (m *Metrics) RecordInputError() {
	if m == nil {
		return
	}
	m.InputErrorsTotal.Inc()
}

func (m *Metrics) RecordPersistError() {
	if m == nil {
		return
	}
	m.PersistErrorsTotal.Inc()
}

// SetModel records the outcome of startup training.
func (m *Metrics) SetModel(accuracy float64, rows int) {
	if m == nil {
		return
	}
	m.ModelAccuracy.Set(accuracy)
	m.TrainingRows.Set(float64(rows))
}
