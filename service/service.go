package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"heartpredict/db"
	"heartpredict/ml"
	"heartpredict/monitoring"
)

// Sink stores predictions. *db.PredictionStore implements it.
type Sink interface {
	Append(ctx context.Context, rec db.PredictionRecord) (int64, error)
}

// Publisher receives every stored prediction. *monitoring.Hub implements it.
type Publisher interface {
	Publish(rec db.PredictionRecord)
}

// Options are the optional collaborators of a PredictionService.
type Options struct {
	CacheSize int
	Logger    *zap.Logger
	Metrics   *monitoring.Metrics
	Publisher Publisher
	Now       func() time.Time
}

// PredictionService owns the trained model for the life of the process.
type PredictionService struct {
	model     *Model
	sink      Sink
	cache     *lru.Cache[ml.FeatureVector, ml.Prediction]
	log       *zap.Logger
	metrics   *monitoring.Metrics
	publisher Publisher
	now       func() time.Time

	mu sync.Mutex
}

func New(model *Model, sink Sink, opts Options) (*PredictionService, error) {
	if model == nil || model.Scaler == nil || model.Forest == nil {
		return nil, errors.New("model is required")
	}
	if sink == nil {
		return nil, errors.New("sink is required")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	cache, err := lru.New[ml.FeatureVector, ml.Prediction](opts.CacheSize)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &PredictionService{
		model:     model,
		sink:      sink,
		cache:     cache,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		publisher: opts.Publisher,
		now:       opts.Now,
	}, nil
}

func (s *PredictionService) Model() *Model {
	return s.model
}

// Predict classifies one raw (unscaled) vector. Results for a vector already
// seen are served from the cache; the model is immutable so they cannot go stale.
func (s *PredictionService) Predict(vector ml.FeatureVector) (ml.Prediction, error) {
	if cached, ok := s.cache.Get(vector); ok {
		return cached, nil
	}
	prediction, err := s.model.Predict(vector)
	if err != nil {
		return ml.Prediction{}, err
	}
	s.cache.Add(vector, prediction)
	return prediction, nil
}

// ParseFields converts the named form fields into a FeatureVector. Values are
// not range checked: any finite number is accepted for any field. NaN and
// infinities are rejected.
func ParseFields(raw map[string]string) (ml.FeatureVector, error) {
	var vector ml.FeatureVector
	for i, name := range ml.FeatureNames() {
		text, ok := raw[name]
		text = strings.TrimSpace(text)
		if !ok || text == "" {
			return vector, &InputConversionError{Field: name, Value: text}
		}
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return vector, &InputConversionError{Field: name, Value: text, Err: err}
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return vector, &InputConversionError{Field: name, Value: text, Err: ErrNotFinite}
		}
		vector[i] = value
	}
	return vector, nil
}

// Outcome is the result of one submission. PersistErr is set when the
// prediction was made but could not be stored.
type Outcome struct {
	Record     db.PredictionRecord
	Prediction ml.Prediction
	PersistErr *PersistenceError
}

func (o *Outcome) Persisted() bool {
	return o.PersistErr == nil
}

// Submit parses raw, predicts and appends the result to the sink. An input
// error returns before anything is stored. Submissions are serialized.
func (s *PredictionService) Submit(ctx context.Context, raw map[string]string) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vector, err := ParseFields(raw)
	if err != nil {
		s.metrics.RecordInputError()
		s.log.Info("rejected prediction input", zap.Error(err))
		return nil, err
	}

	start := time.Now()
	prediction, err := s.Predict(vector)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordPrediction(prediction.Label, time.Since(start).Seconds())

	outcome := &Outcome{
		Prediction: prediction,
		Record: db.PredictionRecord{
			Features:   vector,
			Label:      prediction.Label,
			Confidence: prediction.Confidence,
			Timestamp:  s.now(),
		},
	}

	id, err := s.sink.Append(ctx, outcome.Record)
	if err != nil {
		s.metrics.RecordPersistError()
		s.log.Warn("failed to persist prediction", zap.Error(err))
		outcome.PersistErr = &PersistenceError{Err: err}
		return outcome, nil
	}
	outcome.Record.ID = id

	s.log.Info("prediction stored",
		zap.Int64("record_id", id),
		zap.Int("label", prediction.Label),
		zap.Float64("confidence", prediction.Confidence))
	if s.publisher != nil {
		s.publisher.Publish(outcome.Record)
	}
	return outcome, nil
}
