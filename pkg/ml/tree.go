package ml

import (
	"fmt"
	"math/rand"
	"sort"
)

// RegressionTree is a CART regressor splitting on squared-error reduction.
// Nodes are stored flat so the fitted tree encodes cleanly with gob.
type RegressionTree struct {
	MaxDepth        int // 0 => unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 => all features
	RandomState     int64

	Nodes     []TreeNode
	NFeatures int
}

// TreeNode is either a split (Feature >= 0) or a leaf carrying Value.
type TreeNode struct {
	Feature   int
	Threshold float64 // x[Feature] <= Threshold => Left
	Left      int
	Right     int
	Value     float64
	Samples   int
}

// TreeOption functional config for RegressionTree
type TreeOption func(*RegressionTree)

func WithMaxDepth(d int) TreeOption        { return func(t *RegressionTree) { t.MaxDepth = d } }
func WithMinSamplesSplit(n int) TreeOption { return func(t *RegressionTree) { t.MinSamplesSplit = n } }
func WithMinSamplesLeaf(n int) TreeOption  { return func(t *RegressionTree) { t.MinSamplesLeaf = n } }
func WithMaxFeatures(k int) TreeOption     { return func(t *RegressionTree) { t.MaxFeatures = k } }
func WithRandomState(seed int64) TreeOption {
	return func(t *RegressionTree) { t.RandomState = seed }
}

func NewRegressionTree(opts ...TreeOption) *RegressionTree {
	t := &RegressionTree{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Fit trains on every row of X.
func (t *RegressionTree) Fit(X [][]float64, y []float64) error {
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	return t.FitIndices(X, y, idx)
}

// FitIndices trains on the rows named by idx; duplicates are allowed,
// which is how bootstrap samples are passed without copying X.
func (t *RegressionTree) FitIndices(X [][]float64, y []float64, idx []int) error {
	if len(X) == 0 || len(idx) == 0 {
		return ErrEmptyInput
	}
	if len(X) != len(y) {
		return fmt.Errorf("%w: X has %d rows, y has %d", ErrShapeMismatch, len(X), len(y))
	}
	p := len(X[0])
	for i := range X {
		if len(X[i]) != p {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, i, len(X[i]), p)
		}
	}
	t.NFeatures = p
	t.Nodes = t.Nodes[:0]

	b := &treeBuilder{
		tree:    t,
		X:       X,
		y:       y,
		rnd:     rand.New(rand.NewSource(t.RandomState)),
		feature: make([]int, p),
	}
	for f := range b.feature {
		b.feature[f] = f
	}
	work := append([]int(nil), idx...)
	b.build(work, 0)
	return nil
}

// Predict returns one value per row of X.
func (t *RegressionTree) Predict(X [][]float64) ([]float64, error) {
	if len(t.Nodes) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, x := range X {
		if len(x) != t.NFeatures {
			return nil, fmt.Errorf("%w: got %d columns, fitted on %d", ErrShapeMismatch, len(x), t.NFeatures)
		}
		out[i] = t.predictOne(x)
	}
	return out, nil
}

func (t *RegressionTree) predictOne(x []float64) float64 {
	n := 0
	for {
		node := &t.Nodes[n]
		if node.Feature < 0 {
			return node.Value
		}
		if x[node.Feature] <= node.Threshold {
			n = node.Left
		} else {
			n = node.Right
		}
	}
}

type treeBuilder struct {
	tree    *RegressionTree
	X       [][]float64
	y       []float64
	rnd     *rand.Rand
	feature []int
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	pos       int // rows [0,pos) of the sorted slice go left
}

// build appends the subtree for idx and returns its node index.
func (b *treeBuilder) build(idx []int, depth int) int {
	t := b.tree
	sum, sumSq := 0.0, 0.0
	for _, i := range idx {
		v := b.y[i]
		sum += v
		sumSq += v * v
	}
	n := float64(len(idx))
	mean := sum / n
	sse := sumSq - sum*sum/n

	self := len(t.Nodes)
	t.Nodes = append(t.Nodes, TreeNode{Feature: -1, Value: mean, Samples: len(idx)})

	if (t.MaxDepth > 0 && depth >= t.MaxDepth) || len(idx) < t.MinSamplesSplit || len(idx) < 2*t.MinSamplesLeaf || sse <= 1e-12 {
		return self
	}

	best, ok := b.bestSplit(idx, sse)
	if !ok {
		return self
	}

	sort.Slice(idx, func(a, c int) bool { return b.X[idx[a]][best.feature] < b.X[idx[c]][best.feature] })
	left := append([]int(nil), idx[:best.pos]...)
	right := append([]int(nil), idx[best.pos:]...)

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	t.Nodes[self].Feature = best.feature
	t.Nodes[self].Threshold = best.threshold
	t.Nodes[self].Left = l
	t.Nodes[self].Right = r
	return self
}

func (b *treeBuilder) bestSplit(idx []int, parentSSE float64) (split, bool) {
	t := b.tree
	features := b.feature
	if t.MaxFeatures > 0 && t.MaxFeatures < len(features) {
		b.rnd.Shuffle(len(features), func(i, j int) { features[i], features[j] = features[j], features[i] })
		features = features[:t.MaxFeatures]
	}

	minLeaf := t.MinSamplesLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}
	order := make([]int, len(idx))
	best := split{feature: -1}
	for _, f := range features {
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool { return b.X[order[a]][f] < b.X[order[c]][f] })

		var totalSum, totalSq float64
		for _, i := range order {
			totalSum += b.y[i]
			totalSq += b.y[i] * b.y[i]
		}
		var leftSum, leftSq float64
		n := len(order)
		for k := 0; k < n-1; k++ {
			v := b.y[order[k]]
			leftSum += v
			leftSq += v * v
			xk, xn := b.X[order[k]][f], b.X[order[k+1]][f]
			if xk == xn {
				continue
			}
			nl, nr := k+1, n-k-1
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
			childSSE := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			gain := parentSSE - childSSE
			if gain > best.gain+1e-12 {
				best = split{feature: f, threshold: (xk + xn) / 2, gain: gain, pos: nl}
			}
		}
	}
	return best, best.feature >= 0
}
