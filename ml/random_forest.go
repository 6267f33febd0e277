package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ForestOptions configures a RandomForest. MaxFeatures 0 means sqrt(width).
type ForestOptions struct {
	Trees           int
	Seed            int64
	MaxDepth        int
	MinSamplesSplit int
	MaxFeatures     int
}

func DefaultForestOptions() ForestOptions {
	return ForestOptions{
		Trees:           100,
		Seed:            2,
		MinSamplesSplit: 2,
	}
}

// RandomForest is a bagging ensemble of decision trees voting on a binary label.
type RandomForest struct {
	opts  ForestOptions
	trees []*DecisionTree
}

func NewRandomForest(opts ForestOptions) *RandomForest {
	if opts.Trees <= 0 {
		opts.Trees = DefaultForestOptions().Trees
	}
	return &RandomForest{opts: opts}
}

// Train fits every tree on its own bootstrap sample. Seeds for the sample and
// the tree are drawn in sequence from the forest seed, so a given seed and
// dataset always yield the same forest.
func (rf *RandomForest) Train(features [][]float64, labels []int) error {
	width, err := validateMatrix(features, labels)
	if err != nil {
		return err
	}
	counts := classCounts(labels)
	for label := range counts {
		if label != LabelNoDisease && label != LabelDisease {
			return fmt.Errorf("unexpected label %d", label)
		}
	}
	if len(counts) < 2 {
		return errors.New("training labels contain a single class")
	}

	maxFeatures := rf.opts.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(width)))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}

	master := rand.New(rand.NewSource(rf.opts.Seed))
	trees := make([]*DecisionTree, 0, rf.opts.Trees)
	n := len(features)
	sampleX := make([][]float64, n)
	sampleY := make([]int, n)

	for t := 0; t < rf.opts.Trees; t++ {
		bootstrap := rand.New(rand.NewSource(master.Int63()))
		treeSeed := master.Int63()
		for i := 0; i < n; i++ {
			pick := bootstrap.Intn(n)
			sampleX[i] = features[pick]
			sampleY[i] = labels[pick]
		}

		tree := NewDecisionTree(TreeOptions{
			MaxDepth:        rf.opts.MaxDepth,
			MinSamplesSplit: rf.opts.MinSamplesSplit,
			MaxFeatures:     maxFeatures,
			Seed:            treeSeed,
		})
		if err := tree.Train(sampleX, sampleY); err != nil {
			return fmt.Errorf("tree %d: %w", t, err)
		}
		trees = append(trees, tree)
	}

	rf.trees = trees
	return nil
}

// Predict returns the majority-vote label and the fraction of trees voting for
// LabelDisease. The label is LabelDisease only when strictly more than half vote for it.
func (rf *RandomForest) Predict(features []float64) (int, float64, error) {
	if len(rf.trees) == 0 {
		return 0, 0, errors.New("model not trained")
	}
	positive := 0
	for i, tree := range rf.trees {
		label, _, err := tree.Predict(features)
		if err != nil {
			return 0, 0, fmt.Errorf("tree %d: %w", i, err)
		}
		if label == LabelDisease {
			positive++
		}
	}
	confidence := float64(positive) / float64(len(rf.trees))
	if confidence > 0.5 {
		return LabelDisease, confidence, nil
	}
	return LabelNoDisease, confidence, nil
}

func (rf *RandomForest) Size() int {
	return len(rf.trees)
}

func (rf *RandomForest) Options() ForestOptions {
	return rf.opts
}
