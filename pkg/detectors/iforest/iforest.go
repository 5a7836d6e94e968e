// Package iforest implements the Isolation Forest algorithm for anomaly detection.
package iforest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/hed1ad/vitalguard/pkg/detectors"
)

// Compile-time interface guard.
var _ detectors.StreamDetector = (*Forest)(nil)

// Trainer holds the hyperparameters used to fit a Forest.
type Trainer struct {
	nTrees        int
	sampleSize    int
	contamination float64
	seed          int64
}

// Forest is a fitted isolation forest. It is never modified after Fit or
// Load, so a single value can serve any number of concurrent callers.
type Forest struct {
	trees         []iTree
	nFeatures     int
	sampleSize    int
	contamination float64
	threshold     float64

	// c(sampleSize), the normalization term of the anomaly score.
	avgPathLength float64
}

// iTree stores its nodes in a flat slice; children are referenced by index.
type iTree struct {
	Nodes []node
}

// node is a node in the isolation tree. Left and Right are -1 for leaves.
type node struct {
	// Split parameters (for internal nodes)
	Feature int
	Split   float64

	// Children
	Left  int32
	Right int32

	// Leaf information
	Size int // number of samples that reached this leaf
}

func (n node) leaf() bool {
	return n.Left < 0
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option {
	return func(t *Trainer) {
		t.nTrees = n
	}
}

// WithSampleSize sets the subsample size for each tree.
func WithSampleSize(n int) Option {
	return func(t *Trainer) {
		t.sampleSize = n
	}
}

// WithContamination sets the expected proportion of anomalies.
func WithContamination(c float64) Option {
	return func(t *Trainer) {
		t.contamination = c
	}
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(t *Trainer) {
		t.seed = seed
	}
}

// New creates a Trainer with the given options.
func New(opts ...Option) *Trainer {
	defaults := detectors.DefaultConfig()
	t := &Trainer{
		nTrees:        100,
		sampleSize:    256,
		contamination: defaults.Contamination,
		seed:          defaults.RandomSeed,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Fit builds a new Forest on the provided data. Fitting the same data
// with the same Trainer always yields an identical Forest.
func (t *Trainer) Fit(data [][]float64) (*Forest, error) {
	if len(data) == 0 {
		return nil, errors.New("empty training data")
	}
	if t.nTrees <= 0 {
		return nil, fmt.Errorf("tree count must be positive, got %d", t.nTrees)
	}
	if t.sampleSize <= 0 {
		return nil, fmt.Errorf("sample size must be positive, got %d", t.sampleSize)
	}
	if t.contamination < 0 || t.contamination > 0.5 {
		return nil, fmt.Errorf("contamination must be in [0, 0.5], got %v", t.contamination)
	}

	nSamples := len(data)
	nFeatures := len(data[0])
	if nFeatures == 0 {
		return nil, errors.New("training samples have no features")
	}
	for i, row := range data {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("sample %d has %d features, want %d", i, len(row), nFeatures)
		}
	}

	// Adjust sample size if needed
	sampleSize := t.sampleSize
	if sampleSize > nSamples {
		sampleSize = nSamples
	}

	b := &builder{
		rng:       rand.New(rand.NewSource(t.seed)),
		nFeatures: nFeatures,
		maxDepth:  maxDepth(sampleSize),
	}

	f := &Forest{
		trees:         make([]iTree, t.nTrees),
		nFeatures:     nFeatures,
		sampleSize:    sampleSize,
		contamination: t.contamination,
		avgPathLength: averagePathLength(float64(sampleSize)),
	}

	for i := range f.trees {
		// Sample without replacement
		indices := b.rng.Perm(nSamples)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = data[idx]
		}
		f.trees[i] = b.buildTree(sample)
	}

	scores, err := f.Predict(data)
	if err != nil {
		return nil, err
	}
	f.threshold = contaminationThreshold(scores, t.contamination)

	return f, nil
}

// builder carries the per-fit random state so the Trainer itself stays reusable.
type builder struct {
	rng       *rand.Rand
	nFeatures int
	maxDepth  int
	nodes     []node
}

func (b *builder) buildTree(data [][]float64) iTree {
	b.nodes = make([]node, 0, 2*len(data))
	b.buildNode(data, 0)
	return iTree{Nodes: b.nodes}
}

// buildNode appends the subtree for data and returns the index of its root.
func (b *builder) buildNode(data [][]float64, depth int) int32 {
	idx := int32(len(b.nodes))
	b.nodes = append(b.nodes, node{Left: -1, Right: -1, Size: len(data)})

	// Terminal conditions
	if depth >= b.maxDepth || len(data) <= 1 {
		return idx
	}

	// Random feature and split value
	feature := b.rng.Intn(b.nFeatures)

	// Find min/max for this feature
	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		if row[feature] < minVal {
			minVal = row[feature]
		}
		if row[feature] > maxVal {
			maxVal = row[feature]
		}
	}

	// If all values are the same, return leaf
	if minVal == maxVal {
		return idx
	}

	splitValue := minVal + b.rng.Float64()*(maxVal-minVal)

	// Partition data
	var leftData, rightData [][]float64
	for _, row := range data {
		if row[feature] < splitValue {
			leftData = append(leftData, row)
		} else {
			rightData = append(rightData, row)
		}
	}

	left := b.buildNode(leftData, depth+1)
	right := b.buildNode(rightData, depth+1)
	b.nodes[idx] = node{
		Feature: feature,
		Split:   splitValue,
		Left:    left,
		Right:   right,
	}
	return idx
}

// Predict returns anomaly scores for the given samples.
func (f *Forest) Predict(data [][]float64) ([]float64, error) {
	scores := make([]float64, len(data))

	for i, sample := range data {
		score, err := f.PredictOne(sample)
		if err != nil {
			return nil, err
		}
		scores[i] = score
	}

	return scores, nil
}

// PredictOne returns the anomaly score for a single sample.
func (f *Forest) PredictOne(sample []float64) (float64, error) {
	if f == nil || len(f.trees) == 0 {
		return 0, detectors.ErrNotTrained
	}
	if len(sample) != f.nFeatures {
		return 0, fmt.Errorf("sample has %d features, want %d", len(sample), f.nFeatures)
	}

	// Average path length across all trees
	var totalPath float64
	for i := range f.trees {
		totalPath += f.trees[i].pathLength(sample)
	}
	avgPath := totalPath / float64(len(f.trees))

	if f.avgPathLength == 0 {
		return 0.5, nil
	}

	// Anomaly score: 2^(-avgPath / c(n))
	// Higher score = more anomalous
	return math.Pow(2, -avgPath/f.avgPathLength), nil
}

// Classify reports whether the sample scores at or above the fitted threshold.
func (f *Forest) Classify(sample []float64) (bool, error) {
	score, err := f.PredictOne(sample)
	if err != nil {
		return false, err
	}
	return score >= f.threshold, nil
}

// pathLength walks the tree for a sample.
func (t *iTree) pathLength(sample []float64) float64 {
	depth := 0
	n := t.Nodes[0]
	for !n.leaf() {
		if sample[n.Feature] < n.Split {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
		depth++
	}
	// Leaf node: add expected path length for remaining isolation
	return float64(depth) + averagePathLength(float64(n.Size))
}

// averagePathLength returns the average path length of unsuccessful search in BST.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	// c(n) = 2*H(n-1) - 2*(n-1)/n, where H is harmonic number
	// Approximation: H(n) ~ ln(n) + 0.5772156649 (Euler-Mascheroni constant)
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}

func maxDepth(sampleSize int) int {
	return int(math.Ceil(math.Log2(float64(sampleSize))))
}

// PredictStream processes samples from a channel until it is closed or ctx is done.
// Samples that cannot be scored are forwarded with Err set.
func (f *Forest) PredictStream(ctx context.Context, input <-chan []float64, output chan<- detectors.Score) error {
	if f == nil || len(f.trees) == 0 {
		return detectors.ErrNotTrained
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample, ok := <-input:
			if !ok {
				return nil
			}

			score, err := f.PredictOne(sample)
			result := detectors.Score{
				Value:     score,
				IsAnomaly: err == nil && score >= f.threshold,
				Features:  sample,
				Err:       err,
			}

			select {
			case output <- result:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Threshold returns the anomaly threshold fixed at fit time.
func (f *Forest) Threshold() float64 {
	return f.threshold
}

// Contamination returns the contamination rate the forest was fitted with.
func (f *Forest) Contamination() float64 {
	return f.contamination
}

// Trees returns the number of trees in the ensemble.
func (f *Forest) Trees() int {
	return len(f.trees)
}

// contaminationThreshold picks the score such that the round(c*n) most
// anomalous training scores reach it. With c == 0 nothing is anomalous.
func contaminationThreshold(scores []float64, c float64) float64 {
	k := int(math.Round(c * float64(len(scores))))
	if k <= 0 {
		return math.Inf(1)
	}

	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	return sorted[k-1]
}
