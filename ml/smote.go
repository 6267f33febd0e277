package ml

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// SMOTE oversamples the minority class by interpolating between a minority sample
// and one of its nearest minority neighbours.
type SMOTE struct {
	Neighbors int
	Seed      int64
}

func NewSMOTE(neighbors int, seed int64) *SMOTE {
	if neighbors <= 0 {
		neighbors = 5
	}
	return &SMOTE{Neighbors: neighbors, Seed: seed}
}

// Resample returns the original rows followed by synthetic minority rows so that
// both classes end up with the same count. Input slices are not modified.
func (s *SMOTE) Resample(features [][]float64, labels []int) ([][]float64, []int, error) {
	if _, err := validateMatrix(features, labels); err != nil {
		return nil, nil, err
	}

	counts := classCounts(labels)
	if len(counts) != 2 {
		return nil, nil, fmt.Errorf("resampling needs exactly 2 classes, got %d", len(counts))
	}
	classes := make([]int, 0, 2)
	for label := range counts {
		classes = append(classes, label)
	}
	sort.Ints(classes)
	minority, majority := classes[0], classes[1]
	if counts[minority] > counts[majority] {
		minority, majority = majority, minority
	}

	outX := make([][]float64, len(features), len(features)+counts[majority]-counts[minority])
	for i, row := range features {
		outX[i] = append([]float64(nil), row...)
	}
	outY := append(make([]int, 0, cap(outX)), labels...)

	need := counts[majority] - counts[minority]
	if need == 0 {
		return outX, outY, nil
	}

	samples := make([][]float64, 0, counts[minority])
	for i, label := range labels {
		if label == minority {
			samples = append(samples, features[i])
		}
	}
	if len(samples) < 2 {
		return nil, nil, errors.New("minority class needs at least 2 samples")
	}

	k := s.Neighbors
	if k > len(samples)-1 {
		k = len(samples) - 1
	}
	neighbors := nearestNeighbors(samples, k)

	rng := rand.New(rand.NewSource(s.Seed))
	for n := 0; n < need; n++ {
		i := rng.Intn(len(samples))
		base := samples[i]
		other := samples[neighbors[i][rng.Intn(k)]]
		gap := rng.Float64()

		synthetic := make([]float64, len(base))
		for f := range base {
			synthetic[f] = base[f] + gap*(other[f]-base[f])
		}
		outX = append(outX, synthetic)
		outY = append(outY, minority)
	}
	return outX, outY, nil
}

// nearestNeighbors lists, for every sample, the indices of its k closest other samples.
// Ties are broken by index so the result does not depend on sort internals.
func nearestNeighbors(samples [][]float64, k int) [][]int {
	result := make([][]int, len(samples))
	distances := make([]float64, len(samples))
	for i, a := range samples {
		candidates := make([]int, 0, len(samples)-1)
		for j, b := range samples {
			if i == j {
				continue
			}
			distances[j] = floats.Distance(a, b, 2)
			candidates = append(candidates, j)
		}
		sort.Slice(candidates, func(x, y int) bool {
			dx, dy := distances[candidates[x]], distances[candidates[y]]
			if dx != dy {
				return dx < dy
			}
			return candidates[x] < candidates[y]
		})
		result[i] = candidates[:k]
	}
	return result
}
