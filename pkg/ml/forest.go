package ml

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RandomForestRegressor averages bootstrap-trained regression trees.
type RandomForestRegressor struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Bootstrap       bool
	RandomState     int64

	Trees []*RegressionTree
}

// ForestOption functional config for RandomForestRegressor
type ForestOption func(*RandomForestRegressor)

func WithNEstimators(n int) ForestOption { return func(rf *RandomForestRegressor) { rf.NEstimators = n } }
func WithForestMaxDepth(d int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MaxDepth = d }
}
func WithForestMinSamplesSplit(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MinSamplesSplit = n }
}
func WithSeed(seed int64) ForestOption { return func(rf *RandomForestRegressor) { rf.RandomState = seed } }

// NewRandomForestRegressor defaults: 100 trees, unlimited depth, bootstrap, seed 42.
func NewRandomForestRegressor(opts ...ForestOption) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		RandomState:     42,
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// Fit trains the trees in parallel. Each tree draws from its own source
// seeded with RandomState+index, so the result does not depend on scheduling.
func (rf *RandomForestRegressor) Fit(ctx context.Context, X [][]float64, y []float64) error {
	if len(X) == 0 {
		return ErrEmptyInput
	}
	n := len(X)
	if len(y) != n {
		return fmt.Errorf("%w: X has %d rows, y has %d", ErrShapeMismatch, n, len(y))
	}
	if rf.NEstimators < 1 {
		return fmt.Errorf("randomforest: n_estimators must be positive, got %d", rf.NEstimators)
	}

	trees := make([]*RegressionTree, rf.NEstimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := 0; i < rf.NEstimators; i++ {
		idx := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			seed := rf.RandomState + int64(idx)
			treeRand := rand.New(rand.NewSource(seed))

			sample := make([]int, n)
			for j := range sample {
				if rf.Bootstrap {
					sample[j] = treeRand.Intn(n)
				} else {
					sample[j] = j
				}
			}

			tree := NewRegressionTree(
				WithMaxDepth(rf.MaxDepth),
				WithMinSamplesSplit(rf.MinSamplesSplit),
				WithMinSamplesLeaf(rf.MinSamplesLeaf),
				WithMaxFeatures(rf.MaxFeatures),
				WithRandomState(seed),
			)
			if err := tree.FitIndices(X, y, sample); err != nil {
				return fmt.Errorf("tree %d: %w", idx, err)
			}
			trees[idx] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	rf.Trees = trees
	return nil
}

// Predict returns the mean of all tree predictions per row.
func (rf *RandomForestRegressor) Predict(X [][]float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for _, tree := range rf.Trees {
		preds, err := tree.Predict(X)
		if err != nil {
			return nil, err
		}
		for i, v := range preds {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(rf.Trees))
	}
	return out, nil
}
