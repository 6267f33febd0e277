package service

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"heartpredict/config"
	"heartpredict/db"
	"heartpredict/ml"
	"heartpredict/monitoring"
)

// heartLikeDataset draws imbalanced rows whose ranges resemble heart.csv.
func heartLikeDataset(n int, seed int64) *ml.Dataset {
	rng := rand.New(rand.NewSource(seed))
	ds := &ml.Dataset{}
	for i := 0; i < n; i++ {
		label := ml.LabelNoDisease
		if i%3 != 0 {
			label = ml.LabelDisease
		}
		shift := float64(label)
		row := []float64{
			55 - 6*shift + rng.NormFloat64()*8,
			float64(rng.Intn(2)),
			float64(rng.Intn(4)),
			130 + rng.NormFloat64()*15,
			245 + rng.NormFloat64()*40,
			float64(rng.Intn(2)),
			float64(rng.Intn(3)),
			140 + 20*shift + rng.NormFloat64()*15,
			float64(rng.Intn(2)) * (1 - shift),
			1.6 - 1.0*shift + rng.Float64(),
			float64(rng.Intn(3)),
			float64(rng.Intn(4)) * (1 - shift),
			2 + float64(rng.Intn(2)),
		}
		ds.Features = append(ds.Features, row)
		ds.Labels = append(ds.Labels, label)
	}
	return ds
}

func testOptions() TrainingOptions {
	return TrainingOptions{
		TestRatio:      0.2,
		Seed:           2,
		SmoteNeighbors: 5,
		Forest:         ml.ForestOptions{Trees: 20, Seed: 2, MinSamplesSplit: 2},
	}
}

var (
	modelOnce   sync.Once
	sharedModel *Model
	modelErr    error
)

func trainedModel(t *testing.T) *Model {
	t.Helper()
	modelOnce.Do(func() {
		sharedModel, modelErr = TrainModel(heartLikeDataset(150, 42), testOptions(), zap.NewNop())
	})
	require.NoError(t, modelErr)
	return sharedModel
}

func scenarioFields() map[string]string {
	return map[string]string{
		"age": "63", "sex": "1", "cp": "3", "trestbps": "145", "chol": "233",
		"fbs": "1", "restecg": "0", "thalach": "150", "exang": "0",
		"oldpeak": "2.3", "slope": "0", "ca": "0", "thal": "1",
	}
}

type failingSink struct{}

func (failingSink) Append(context.Context, db.PredictionRecord) (int64, error) {
	return 0, errors.New("database is locked")
}

type recordingPublisher struct {
	records []db.PredictionRecord
}

func (p *recordingPublisher) Publish(rec db.PredictionRecord) {
	p.records = append(p.records, rec)
}

func newTestService(t *testing.T, sink Sink, opts Options) *PredictionService {
	t.Helper()
	svc, err := New(trainedModel(t), sink, opts)
	require.NoError(t, err)
	return svc
}

func TestTrainModelSummary(t *testing.T) {
	model := trainedModel(t)

	assert.Equal(t, 150, model.Summary.Rows)
	assert.Equal(t, map[int]int{ml.LabelNoDisease: 50, ml.LabelDisease: 100}, model.Summary.ClassCounts)
	assert.Equal(t, 200, model.Summary.BalancedRows)
	assert.Equal(t, 40, model.Summary.TestRows)
	assert.Equal(t, 160, model.Summary.TrainRows)
	assert.Equal(t, 20, model.Summary.Trees)
	assert.Equal(t, 40, model.Evaluation.TestSize)
	assert.GreaterOrEqual(t, model.Evaluation.Accuracy, 0.0)
	assert.LessOrEqual(t, model.Evaluation.Accuracy, 1.0)
}

func TestTrainModelDeterministic(t *testing.T) {
	ds := heartLikeDataset(90, 5)
	first, err := TrainModel(ds, testOptions(), zap.NewNop())
	require.NoError(t, err)
	second, err := TrainModel(ds, testOptions(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, first.Evaluation, second.Evaluation)
	samples := heartLikeDataset(30, 99)
	for _, row := range samples.Features {
		vector, err := ml.VectorFromSlice(row)
		require.NoError(t, err)
		p1, err := first.Predict(vector)
		require.NoError(t, err)
		p2, err := second.Predict(vector)
		require.NoError(t, err)
		assert.Equal(t, p1, p2)
	}
}

func TestTrainModelStartupErrors(t *testing.T) {
	single := heartLikeDataset(30, 1)
	for i := range single.Labels {
		single.Labels[i] = ml.LabelDisease
	}
	_, err := TrainModel(single, testOptions(), zap.NewNop())
	var fatal *StartupFatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, StageBalance, fatal.Stage)

	cfg := config.Default()
	cfg.Dataset.Path = filepath.Join(t.TempDir(), "heart.csv")
	_, err = LoadAndTrain(cfg, zap.NewNop())
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, StageLoad, fatal.Stage)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "dataset.path")
}

func TestLoadAndTrainFromFile(t *testing.T) {
	cfg := config.Default()
	cfg.Dataset.Path = filepath.Join("..", "ml", "testdata", "heart_sample.csv")
	cfg.Training.Trees = 10

	model, err := LoadAndTrain(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 24, model.Summary.Rows)
	assert.Equal(t, 32, model.Summary.BalancedRows)
}

func TestPredictWellFormedVectors(t *testing.T) {
	svc := newTestService(t, failingSink{}, Options{})
	samples := heartLikeDataset(50, 7)
	samples.Features = append(samples.Features,
		[]float64{1e6, 5, -3, 0, 1e9, 7, 9, -100, 4, 99, 8, 12, 0},
		make([]float64, ml.FeatureCount),
	)
	for _, row := range samples.Features {
		vector, err := ml.VectorFromSlice(row)
		require.NoError(t, err)
		prediction, err := svc.Predict(vector)
		require.NoError(t, err)
		assert.Contains(t, []int{ml.LabelNoDisease, ml.LabelDisease}, prediction.Label)
		assert.GreaterOrEqual(t, prediction.Confidence, 0.0)
		assert.LessOrEqual(t, prediction.Confidence, 1.0)
	}
}

func TestPredictUsesCache(t *testing.T) {
	svc := newTestService(t, failingSink{}, Options{CacheSize: 4})
	vector, err := ParseFields(scenarioFields())
	require.NoError(t, err)

	first, err := svc.Predict(vector)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.cache.Len())
	second, err := svc.Predict(vector)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, svc.cache.Len())
}

func TestParseFields(t *testing.T) {
	vector, err := ParseFields(scenarioFields())
	require.NoError(t, err)
	assert.Equal(t, ml.FeatureVector{63, 1, 3, 145, 233, 1, 0, 150, 0, 2.3, 0, 0, 1}, vector)

	raw := scenarioFields()
	raw["age"] = "abc"
	_, err = ParseFields(raw)
	var convErr *InputConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, "age", convErr.Field)
	assert.Equal(t, "abc", convErr.Value)

	raw = scenarioFields()
	delete(raw, "thal")
	_, err = ParseFields(raw)
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, "thal", convErr.Field)

	for _, text := range []string{"NaN", "nan", "Inf", "-Inf", "+Infinity"} {
		raw = scenarioFields()
		raw["chol"] = text
		_, err = ParseFields(raw)
		require.ErrorAs(t, err, &convErr, text)
		assert.Equal(t, "chol", convErr.Field)
		assert.ErrorIs(t, err, ErrNotFinite)
		assert.Contains(t, err.Error(), "not a finite number")
	}

	// Out-of-domain categorical values are accepted as is.
	raw = scenarioFields()
	raw["sex"] = "5"
	vector, err = ParseFields(raw)
	require.NoError(t, err)
	assert.Equal(t, 5.0, vector[1])
}

func TestScenarioPredictionAppendsOneRow(t *testing.T) {
	ctx := context.Background()
	store := db.NewPredictionStore(filepath.Join(t.TempDir(), "heart_predictions.db"))
	publisher := &recordingPublisher{}
	svc := newTestService(t, store, Options{Publisher: publisher})

	update := svc.OnPredictRequested(ctx, scenarioFields())
	require.NoError(t, update.Err)
	require.NotNil(t, update.Outcome)
	assert.Contains(t, []Tone{ToneNegative, TonePositive}, update.Tone)
	assert.Regexp(t, `^(No Heart Disease|HAS Heart Disease)\nConfidence: [01]\.\d\d$`, update.Text)

	prediction := update.Outcome.Prediction
	assert.Contains(t, []int{ml.LabelNoDisease, ml.LabelDisease}, prediction.Label)
	assert.GreaterOrEqual(t, prediction.Confidence, 0.0)
	assert.LessOrEqual(t, prediction.Confidence, 1.0)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Len(t, publisher.records, 1)
	assert.Equal(t, update.Outcome.Record.ID, publisher.records[0].ID)
}

func TestScenarioNonNumericAppendsNothing(t *testing.T) {
	ctx := context.Background()
	store := db.NewPredictionStore(filepath.Join(t.TempDir(), "heart_predictions.db"))
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	svc := newTestService(t, store, Options{Metrics: metrics})

	raw := scenarioFields()
	raw["age"] = "abc"
	update := svc.OnPredictRequested(ctx, raw)

	assert.Equal(t, ToneError, update.Tone)
	assert.True(t, IsInputError(update.Err))
	assert.Contains(t, update.Text, "Error: ")
	assert.Nil(t, update.Outcome)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.InputErrorsTotal))
}

func TestScenarioNonFiniteAppendsNothing(t *testing.T) {
	ctx := context.Background()
	store := db.NewPredictionStore(filepath.Join(t.TempDir(), "heart_predictions.db"))
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	svc := newTestService(t, store, Options{Metrics: metrics})

	for _, text := range []string{"NaN", "Inf", "-Inf"} {
		raw := scenarioFields()
		raw["chol"] = text
		update := svc.OnPredictRequested(ctx, raw)

		assert.Equal(t, ToneError, update.Tone, text)
		assert.True(t, IsInputError(update.Err), text)
		assert.Contains(t, update.Text, "Error: ")
		assert.Nil(t, update.Outcome)
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, svc.cache.Len())
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.InputErrorsTotal))

	records, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNPredictionsNRows(t *testing.T) {
	ctx := context.Background()
	store := db.NewPredictionStore(filepath.Join(t.TempDir(), "heart_predictions.db"))

	clock := time.Date(2026, 10, 19, 8, 0, 0, 0, time.Local)
	svc := newTestService(t, store, Options{Now: func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}})

	samples := heartLikeDataset(12, 3)
	names := ml.FeatureNames()
	for _, row := range samples.Features {
		raw := make(map[string]string, len(names))
		for i, name := range names {
			raw[name] = formatFloat(row[i])
		}
		outcome, err := svc.Submit(ctx, raw)
		require.NoError(t, err)
		require.True(t, outcome.Persisted())
	}

	records, err := store.List(ctx, 100)
	require.NoError(t, err)
	require.Len(t, records, len(samples.Features))
	// List is newest first; walk it oldest first.
	for i := len(records) - 2; i >= 0; i-- {
		older, newer := records[i+1], records[i]
		assert.Greater(t, newer.ID, older.ID)
		assert.False(t, newer.Timestamp.Before(older.Timestamp))
	}
}

func TestPersistenceFailureKeepsPrediction(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	publisher := &recordingPublisher{}
	svc := newTestService(t, failingSink{}, Options{Metrics: metrics, Publisher: publisher})

	outcome, err := svc.Submit(context.Background(), scenarioFields())
	require.NoError(t, err)
	require.NotNil(t, outcome.PersistErr)
	assert.False(t, outcome.Persisted())
	assert.Contains(t, []int{ml.LabelNoDisease, ml.LabelDisease}, outcome.Prediction.Label)
	assert.Empty(t, publisher.records)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PersistErrorsTotal))

	update := svc.OnPredictRequested(context.Background(), scenarioFields())
	assert.NotEqual(t, ToneError, update.Tone)
	assert.Contains(t, update.Warning, "prediction not saved")
	var persistErr *PersistenceError
	assert.ErrorAs(t, update.Err, &persistErr)
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, failingSink{}, Options{})
	assert.Error(t, err)
	_, err = New(trainedModel(t), nil, Options{})
	assert.Error(t, err)
}

func TestToneColour(t *testing.T) {
	assert.Equal(t, "green", ToneNegative.Colour())
	assert.Equal(t, "red", TonePositive.Colour())
	assert.Equal(t, "orange", ToneError.Colour())
}
