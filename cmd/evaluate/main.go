package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"heartpredict/config"
	"heartpredict/logger"
	"heartpredict/ml"
	"heartpredict/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	datasetPath := flag.String("dataset", "", "dataset CSV (overrides config)")
	trees := flag.Int("trees", 0, "number of trees (overrides config)")
	seed := flag.Int64("seed", -1, "random seed (overrides config)")
	asJSON := flag.Bool("json", false, "print the report as JSON")
	checkDeterminism := flag.Bool("check_determinism", false, "train twice and compare held-out predictions")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *datasetPath != "" {
		cfg.Dataset.Path = *datasetPath
	}
	if *trees > 0 {
		cfg.Training.Trees = *trees
	}
	if *seed >= 0 {
		cfg.Training.Seed = *seed
	}

	cfg.Log.File = ""
	zl, _, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ds, err := ml.LoadDataset(cfg.Dataset.Path, cfg.Dataset.TargetColumn)
	if err != nil {
		zl.Fatal("failed to load dataset", zap.Error(err))
	}
	opts := service.TrainingOptionsFromConfig(cfg)

	model, err := service.TrainModel(ds, opts, zl)
	if err != nil {
		zl.Fatal("training failed", zap.Error(err))
	}

	if *checkDeterminism {
		again, err := service.TrainModel(ds, opts, zap.NewNop())
		if err != nil {
			zl.Fatal("second training failed", zap.Error(err))
		}
		if err := compareModels(model, again, ds); err != nil {
			zl.Fatal("training is not reproducible", zap.Error(err))
		}
		zl.Info("training is reproducible", zap.Int("rows_compared", ds.Len()))
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]interface{}{
			"evaluation": model.Evaluation,
			"training":   model.Summary,
		}); err != nil {
			log.Fatalf("failed to write report: %v", err)
		}
		return
	}
	printReport(model)
}

// compareModels checks that both models give identical votes for every row.
func compareModels(a, b *service.Model, ds *ml.Dataset) error {
	if a.Evaluation != b.Evaluation {
		return fmt.Errorf("evaluation differs: %+v vs %+v", a.Evaluation, b.Evaluation)
	}
	for i, row := range ds.Features {
		vector, err := ml.VectorFromSlice(row)
		if err != nil {
			return err
		}
		pa, err := a.Predict(vector)
		if err != nil {
			return err
		}
		pb, err := b.Predict(vector)
		if err != nil {
			return err
		}
		if pa != pb {
			return fmt.Errorf("row %d: %+v vs %+v", i, pa, pb)
		}
	}
	return nil
}

func printReport(model *service.Model) {
	s := model.Summary
	e := model.Evaluation
	fmt.Printf("rows=%d class_counts=%v balanced=%d train=%d test=%d\n",
		s.Rows, s.ClassCounts, s.BalancedRows, s.TrainRows, s.TestRows)
	fmt.Printf("trees=%d seed=%d smote_neighbors=%d\n", s.Trees, s.Seed, s.SmoteNeighbors)
	fmt.Printf("accuracy=%.4f precision=%.4f recall=%.4f f1=%.4f\n", e.Accuracy, e.Precision, e.Recall, e.F1)
}
