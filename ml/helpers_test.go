package ml

import "math/rand"

// syntheticDataset draws rows around two well separated centres. Roughly
// positiveShare of the rows are labelled LabelDisease.
func syntheticDataset(n int, positiveShare float64, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	features := make([][]float64, n)
	labels := make([]int, n)
	positives := int(float64(n) * positiveShare)
	for i := 0; i < n; i++ {
		centre := 0.0
		label := LabelNoDisease
		if i < positives {
			centre = 5
			label = LabelDisease
		}
		row := make([]float64, FeatureCount)
		for f := range row {
			row[f] = centre + rng.NormFloat64()
		}
		features[i] = row
		labels[i] = label
	}
	return features, labels
}

func constantRow(value float64) []float64 {
	row := make([]float64, FeatureCount)
	for i := range row {
		row[i] = value
	}
	return row
}
