package ml

import (
	"errors"
	"math/rand"
	"sort"
)

type DecisionTree struct {
	nodes []TreeNode
	opts  TreeOptions
	rng   *rand.Rand

	classes int
}

// TreeOptions controls growth. MaxDepth 0 grows until leaves are pure and
// MaxFeatures 0 considers every feature at every split.
type TreeOptions struct {
	MaxDepth        int
	MinSamplesSplit int
	MaxFeatures     int
	Seed            int64
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	Confidence float64 `json:"confidence"`
	Samples    int     `json:"samples"`
	IsLeaf     bool    `json:"is_leaf"`
}

func NewDecisionTree(opts TreeOptions) *DecisionTree {
	if opts.MinSamplesSplit < 2 {
		opts.MinSamplesSplit = 2
	}
	return &DecisionTree{opts: opts}
}

func (dt *DecisionTree) Train(features [][]float64, labels []int) error {
	width, err := validateMatrix(features, labels)
	if err != nil {
		return err
	}

	dt.classes = 0
	for _, label := range labels {
		if label+1 > dt.classes {
			dt.classes = label + 1
		}
	}
	dt.rng = rand.New(rand.NewSource(dt.opts.Seed))
	dt.nodes = nil

	idx := make([]int, len(features))
	for i := range idx {
		idx[i] = i
	}
	dt.grow(features, labels, idx, width, 0)
	return nil
}

// Predict walks to a leaf and returns its label and the share of training
// samples in that leaf carrying the label.
func (dt *DecisionTree) Predict(features []float64) (int, float64, error) {
	if len(dt.nodes) == 0 {
		return 0, 0, errors.New("model not trained")
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.ClassLabel, node.Confidence, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return 0, 0, errors.New("invalid tree state")
		}
	}
}

// Nodes returns a copy of the flattened tree; the root is at index 0.
func (dt *DecisionTree) Nodes() []TreeNode {
	return append([]TreeNode(nil), dt.nodes...)
}

func (dt *DecisionTree) Depth() int {
	if len(dt.nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		node := dt.nodes[i]
		if node.IsLeaf {
			return 0
		}
		left, right := walk(node.LeftChild), walk(node.RightChild)
		if left > right {
			return left + 1
		}
		return right + 1
	}
	return walk(0)
}

// grow appends the subtree for idx and returns the index of its root node.
func (dt *DecisionTree) grow(features [][]float64, labels []int, idx []int, width, depth int) int {
	counts := dt.countLabels(labels, idx)
	label, purity := majority(counts, len(idx))

	nodeIdx := len(dt.nodes)
	dt.nodes = append(dt.nodes, TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		ClassLabel: label,
		Confidence: purity,
		Samples:    len(idx),
		IsLeaf:     true,
	})

	if purity == 1 || len(idx) < dt.opts.MinSamplesSplit {
		return nodeIdx
	}
	if dt.opts.MaxDepth > 0 && depth >= dt.opts.MaxDepth {
		return nodeIdx
	}

	feature, threshold, ok := dt.findBestSplit(features, labels, idx, width, counts)
	if !ok {
		return nodeIdx
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if features[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	leftIdx := dt.grow(features, labels, left, width, depth+1)
	rightIdx := dt.grow(features, labels, right, width, depth+1)

	dt.nodes[nodeIdx] = TreeNode{
		FeatureIdx: feature,
		Threshold:  threshold,
		LeftChild:  leftIdx,
		RightChild: rightIdx,
		ClassLabel: label,
		Confidence: purity,
		Samples:    len(idx),
		IsLeaf:     false,
	}
	return nodeIdx
}

// findBestSplit scans candidate features in random order. Once MaxFeatures
// candidates have been examined it stops, unless none of them could split the
// node, in which case it keeps drawing from the remaining features.
func (dt *DecisionTree) findBestSplit(features [][]float64, labels []int, idx []int, width int, parent []int) (int, float64, bool) {
	order := dt.rng.Perm(width)
	limit := dt.opts.MaxFeatures
	if limit <= 0 || limit > width {
		limit = width
	}

	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := 0.0

	sorted := make([]int, len(idx))
	left := make([]int, dt.classes)
	right := make([]int, dt.classes)

	for visited, feature := range order {
		if visited >= limit && bestFeature != -1 {
			break
		}

		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool {
			va, vb := features[sorted[a]][feature], features[sorted[b]][feature]
			if va != vb {
				return va < vb
			}
			return sorted[a] < sorted[b]
		})

		for c := range left {
			left[c] = 0
		}
		copy(right, parent)

		for pos := 0; pos < len(sorted)-1; pos++ {
			label := labels[sorted[pos]]
			left[label]++
			right[label]--

			current := features[sorted[pos]][feature]
			next := features[sorted[pos+1]][feature]
			if current == next {
				continue
			}

			nLeft := pos + 1
			nRight := len(sorted) - nLeft
			impurity := (float64(nLeft)*gini(left, nLeft) + float64(nRight)*gini(right, nRight)) / float64(len(sorted))
			if bestFeature == -1 || impurity < bestImpurity {
				threshold := current + (next-current)/2
				if threshold == next {
					threshold = current
				}
				bestFeature = feature
				bestThreshold = threshold
				bestImpurity = impurity
			}
		}
	}

	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func (dt *DecisionTree) countLabels(labels []int, idx []int) []int {
	counts := make([]int, dt.classes)
	for _, i := range idx {
		counts[labels[i]]++
	}
	return counts
}

func gini(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, count := range counts {
		prob := float64(count) / float64(total)
		impurity -= prob * prob
	}
	return impurity
}

// majority picks the most frequent label, lowest label on ties.
func majority(counts []int, total int) (int, float64) {
	bestLabel := 0
	bestCount := -1
	for label, count := range counts {
		if count > bestCount {
			bestCount = count
			bestLabel = label
		}
	}
	if total == 0 {
		return bestLabel, 0
	}
	return bestLabel, float64(bestCount) / float64(total)
}
