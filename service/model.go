package service

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"heartpredict/config"
	"heartpredict/ml"
)

// Model is the trained state built once at startup.
type Model struct {
	Scaler     *ml.StandardScaler
	Forest     *ml.RandomForest
	Evaluation ml.Evaluation
	Summary    TrainingSummary
}

type TrainingSummary struct {
	Rows           int         `json:"rows"`
	ClassCounts    map[int]int `json:"class_counts"`
	BalancedRows   int         `json:"balanced_rows"`
	TrainRows      int         `json:"train_rows"`
	TestRows       int         `json:"test_rows"`
	Trees          int         `json:"trees"`
	Seed           int64       `json:"seed"`
	SmoteNeighbors int         `json:"smote_neighbors"`
}

// TrainingOptions are the hyperparameters of the startup pipeline.
type TrainingOptions struct {
	TestRatio      float64
	Seed           int64
	SmoteNeighbors int
	Forest         ml.ForestOptions
}

func TrainingOptionsFromConfig(c *config.Config) TrainingOptions {
	return TrainingOptions{
		TestRatio:      c.Training.TestRatio,
		Seed:           c.Training.Seed,
		SmoteNeighbors: c.Training.SmoteNeighbors,
		Forest: ml.ForestOptions{
			Trees:           c.Training.Trees,
			Seed:            c.Training.Seed,
			MaxDepth:        c.Training.MaxDepth,
			MinSamplesSplit: c.Training.MinSamplesSplit,
			MaxFeatures:     c.Training.MaxFeatures,
		},
	}
}

// LoadAndTrain reads the dataset named in c and trains on it.
func LoadAndTrain(c *config.Config, log *zap.Logger) (*Model, error) {
	ds, err := ml.LoadDataset(c.Dataset.Path, c.Dataset.TargetColumn)
	if errors.Is(err, os.ErrNotExist) {
		err = fmt.Errorf("dataset not found, download heart.csv or set dataset.path (see README.md): %w", err)
	}
	if err != nil {
		return nil, &StartupFatalError{Stage: StageLoad, Err: err}
	}
	log.Info("dataset loaded",
		zap.String("path", c.Dataset.Path),
		zap.Int("rows", ds.Len()),
		zap.Any("class_counts", ds.ClassCounts()))
	return TrainModel(ds, TrainingOptionsFromConfig(c), log)
}

// TrainModel balances the classes, holds out a test split, fits the scaler on
// the training split only, fits the forest and scores it on the held-out rows.
func TrainModel(ds *ml.Dataset, opts TrainingOptions, log *zap.Logger) (*Model, error) {
	features, labels, err := ml.NewSMOTE(opts.SmoteNeighbors, opts.Seed).Resample(ds.Features, ds.Labels)
	if err != nil {
		return nil, &StartupFatalError{Stage: StageBalance, Err: err}
	}

	trainX, trainY, testX, testY, err := ml.TrainTestSplit(features, labels, opts.TestRatio, opts.Seed)
	if err != nil {
		return nil, &StartupFatalError{Stage: StageSplit, Err: err}
	}

	scaler := &ml.StandardScaler{}
	trainScaled, err := scaler.FitTransform(trainX)
	if err != nil {
		return nil, &StartupFatalError{Stage: StageScale, Err: err}
	}
	testScaled, err := scaler.Transform(testX)
	if err != nil {
		return nil, &StartupFatalError{Stage: StageScale, Err: err}
	}

	forest := ml.NewRandomForest(opts.Forest)
	if err := forest.Train(trainScaled, trainY); err != nil {
		return nil, &StartupFatalError{Stage: StageTrain, Err: err}
	}

	eval, err := ml.Evaluate(forest, testScaled, testY)
	if err != nil {
		return nil, &StartupFatalError{Stage: StageTrain, Err: fmt.Errorf("evaluate: %w", err)}
	}

	model := &Model{
		Scaler:     scaler,
		Forest:     forest,
		Evaluation: eval,
		Summary: TrainingSummary{
			Rows:           ds.Len(),
			ClassCounts:    ds.ClassCounts(),
			BalancedRows:   len(labels),
			TrainRows:      len(trainY),
			TestRows:       len(testY),
			Trees:          forest.Size(),
			Seed:           opts.Seed,
			SmoteNeighbors: opts.SmoteNeighbors,
		},
	}
	log.Info("model trained",
		zap.Int("balanced_rows", len(labels)),
		zap.Int("train_rows", len(trainY)),
		zap.Int("test_rows", len(testY)),
		zap.Int("trees", forest.Size()),
		zap.Float64("accuracy", eval.Accuracy),
		zap.Float64("precision", eval.Precision),
		zap.Float64("recall", eval.Recall))
	return model, nil
}

// Predict scales vector with the fitted scaler and asks the forest.
func (m *Model) Predict(vector ml.FeatureVector) (ml.Prediction, error) {
	scaled, err := m.Scaler.TransformVector(vector.Slice())
	if err != nil {
		return ml.Prediction{}, err
	}
	label, confidence, err := m.Forest.Predict(scaled)
	if err != nil {
		return ml.Prediction{}, err
	}
	return ml.Prediction{Label: label, Confidence: confidence}, nil
}
