package ml

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centres each feature on its training mean and divides by its
// population standard deviation.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// Fit computes per-feature statistics. It must only ever see training rows.
func (s *StandardScaler) Fit(features [][]float64) error {
	if len(features) == 0 {
		return errors.New("features is empty")
	}
	width := len(features[0])
	if width == 0 {
		return errors.New("feature rows are empty")
	}

	mean := make([]float64, width)
	scale := make([]float64, width)
	column := make([]float64, len(features))
	for f := 0; f < width; f++ {
		for i, row := range features {
			if len(row) != width {
				return fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
			}
			column[i] = row[f]
		}
		m, sd := stat.PopMeanStdDev(column, nil)
		if sd == 0 {
			sd = 1
		}
		mean[f] = m
		scale[f] = sd
	}

	s.mean = mean
	s.scale = scale
	return nil
}

func (s *StandardScaler) Fitted() bool {
	return s.mean != nil
}

// TransformVector standardizes one row into a new slice.
func (s *StandardScaler) TransformVector(vector []float64) ([]float64, error) {
	if !s.Fitted() {
		return nil, errors.New("scaler not fitted")
	}
	if len(vector) != len(s.mean) {
		return nil, fmt.Errorf("expected %d features, got %d", len(s.mean), len(vector))
	}
	out := make([]float64, len(vector))
	for i, value := range vector {
		out[i] = (value - s.mean[i]) / s.scale[i]
	}
	return out, nil
}

func (s *StandardScaler) Transform(features [][]float64) ([][]float64, error) {
	out := make([][]float64, len(features))
	for i, row := range features {
		scaled, err := s.TransformVector(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

func (s *StandardScaler) FitTransform(features [][]float64) ([][]float64, error) {
	if err := s.Fit(features); err != nil {
		return nil, err
	}
	return s.Transform(features)
}

// Params returns copies of the fitted means and standard deviations.
func (s *StandardScaler) Params() (mean, scale []float64) {
	if !s.Fitted() {
		return nil, nil
	}
	return append([]float64(nil), s.mean...), append([]float64(nil), s.scale...)
}
