package ml

import (
	"errors"
	"fmt"
)

// FeatureCount is the width of every vector the scaler and forest are fit on.
const FeatureCount = 13

// FeatureVector holds the clinical measurements in FeatureNames order.
// Several fields are categorical in meaning but all are floats at the model boundary.
type FeatureVector [FeatureCount]float64

// Label values of the outcome column.
const (
	LabelNoDisease = 0
	LabelDisease   = 1
)

// FeatureNames returns the dataset column names in the order the model expects.
func FeatureNames() []string {
	return []string{
		"age",
		"sex",
		"cp",
		"trestbps",
		"chol",
		"fbs",
		"restecg",
		"thalach",
		"exang",
		"oldpeak",
		"slope",
		"ca",
		"thal",
	}
}

func (v FeatureVector) Slice() []float64 {
	out := make([]float64, FeatureCount)
	copy(out, v[:])
	return out
}

// VectorFromSlice copies values into a FeatureVector.
func VectorFromSlice(values []float64) (FeatureVector, error) {
	var v FeatureVector
	if len(values) != FeatureCount {
		return v, fmt.Errorf("expected %d features, got %d", FeatureCount, len(values))
	}
	copy(v[:], values)
	return v, nil
}

// Named returns the vector as a column-name keyed map.
func (v FeatureVector) Named() map[string]float64 {
	names := FeatureNames()
	out := make(map[string]float64, len(names))
	for i, name := range names {
		out[name] = v[i]
	}
	return out
}

func validateMatrix(features [][]float64, labels []int) (int, error) {
	if len(features) == 0 || len(labels) == 0 {
		return 0, errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return 0, errors.New("features and labels size mismatch")
	}
	width := len(features[0])
	if width == 0 {
		return 0, errors.New("feature rows are empty")
	}
	for i, row := range features {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
	}
	for i, label := range labels {
		if label < 0 {
			return 0, fmt.Errorf("row %d has negative label %d", i, label)
		}
	}
	return width, nil
}

func classCounts(labels []int) map[int]int {
	counts := make(map[int]int)
	for _, label := range labels {
		counts[label]++
	}
	return counts
}
