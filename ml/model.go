package ml

// Classifier is implemented by DecisionTree and RandomForest.
type Classifier interface {
	Train(features [][]float64, labels []int) error
	Predict(features []float64) (int, float64, error)
}

var (
	_ Classifier = (*DecisionTree)(nil)
	_ Classifier = (*RandomForest)(nil)
)

// Prediction is a forest vote: the majority label and the share of trees
// voting LabelDisease.
type Prediction struct {
	Label      int     `json:"label"`
	Confidence float64 `json:"confidence"`
}
