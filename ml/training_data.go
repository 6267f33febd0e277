package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// TrainTestSplit shuffles rows with a seeded source and holds out ceil(n*testRatio)
// of them. The same seed always produces the same partition.
func TrainTestSplit(features [][]float64, labels []int, testRatio float64, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int, err error) {
	if _, err := validateMatrix(features, labels); err != nil {
		return nil, nil, nil, nil, err
	}
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, nil, nil, fmt.Errorf("test ratio must be in (0,1), got %v", testRatio)
	}

	testSize := int(math.Ceil(float64(len(features)) * testRatio))
	trainSize := len(features) - testSize
	if testSize == 0 || trainSize == 0 {
		return nil, nil, nil, nil, errors.New("not enough rows to split")
	}

	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(len(features))

	for i, idx := range indices {
		if i < testSize {
			testX = append(testX, features[idx])
			testY = append(testY, labels[idx])
		} else {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, labels[idx])
		}
	}
	return trainX, trainY, testX, testY, nil
}

// Evaluation summarises a classifier on a held-out split, LabelDisease being positive.
type Evaluation struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	TestSize  int     `json:"test_size"`
}

func Evaluate(model Classifier, testX [][]float64, testY []int) (Evaluation, error) {
	if len(testX) != len(testY) {
		return Evaluation{}, errors.New("features and labels size mismatch")
	}
	if len(testX) == 0 {
		return Evaluation{}, nil
	}

	var correct, truePositive, predictedPositive, actualPositive int
	for i, feature := range testX {
		label, _, err := model.Predict(feature)
		if err != nil {
			return Evaluation{}, fmt.Errorf("row %d: %w", i, err)
		}
		if label == testY[i] {
			correct++
		}
		if label == LabelDisease {
			predictedPositive++
		}
		if testY[i] == LabelDisease {
			actualPositive++
			if label == LabelDisease {
				truePositive++
			}
		}
	}

	eval := Evaluation{
		Accuracy: float64(correct) / float64(len(testX)),
		TestSize: len(testX),
	}
	if predictedPositive > 0 {
		eval.Precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		eval.Recall = float64(truePositive) / float64(actualPositive)
	}
	if eval.Precision+eval.Recall > 0 {
		eval.F1 = 2 * eval.Precision * eval.Recall / (eval.Precision + eval.Recall)
	}
	return eval, nil
}
