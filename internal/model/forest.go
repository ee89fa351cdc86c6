package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Skufu/symptom2disease/internal/features"
)

// ForestConfig holds random forest hyperparameters.
type ForestConfig struct {
	Trees          int
	MaxDepth       int // 0 means unlimited
	MinSamplesLeaf int
	MaxFeatures    int // 0 means sqrt(features)
	Seed           int64
	Workers        int // 0 means GOMAXPROCS
}

// DefaultForestConfig is 300 trees with seed 42.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:          300,
		MinSamplesLeaf: 1,
		Seed:           42,
	}
}

func (c ForestConfig) withDefaults(numFeatures int) ForestConfig {
	d := DefaultForestConfig()
	if c.Trees <= 0 {
		c.Trees = d.Trees
	}
	if c.MinSamplesLeaf <= 0 {
		c.MinSamplesLeaf = d.MinSamplesLeaf
	}
	if c.MaxFeatures <= 0 || c.MaxFeatures > numFeatures {
		c.MaxFeatures = int(math.Max(1, math.Sqrt(float64(numFeatures))))
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return c
}

// ForestTrainer fits bagged CART trees on binary features.
type ForestTrainer struct {
	Config ForestConfig
}

// Fit builds every tree concurrently. Each tree draws from its own seeded
// source, so the result does not depend on scheduling.
func (t *ForestTrainer) Fit(ctx context.Context, X []features.Vector, y []int, numClasses int) (Classifier, error) {
	width, err := checkTrainingSet(X, y, numClasses)
	if err != nil {
		return nil, err
	}
	cfg := t.Config.withDefaults(width)

	trees := make([]tree, cfg.Trees)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := range trees {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b := &treeBuilder{
				X:          X,
				y:          y,
				numClasses: numClasses,
				cfg:        cfg,
				rng:        rand.New(rand.NewSource(cfg.Seed + int64(i)*1000003)),
			}
			trees[i] = b.fit(width)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}
	return &Forest{Features: width, Classes: numClasses, Trees: trees}, nil
}

// Forest averages the leaf distributions of its trees.
type Forest struct {
	Features int    `json:"features"`
	Classes  int    `json:"classes"`
	Trees    []tree `json:"trees"`
}

func (f *Forest) Kind() string     { return KindForest }
func (f *Forest) NumFeatures() int { return f.Features }
func (f *Forest) NumClasses() int  { return f.Classes }

func (f *Forest) PredictProba(x features.Vector) []float64 {
	out := make([]float64, f.Classes)
	for i := range f.Trees {
		leaf := f.Trees[i].leaf(x)
		for j, c := range leaf.Classes {
			out[c] += leaf.Probs[j]
		}
	}
	normalizeInPlace(out)
	return out
}

func (f *Forest) validate() error {
	if f.Classes < 1 || len(f.Trees) == 0 {
		return fmt.Errorf("forest has %d classes and %d trees", f.Classes, len(f.Trees))
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature < 0 {
				if len(n.Classes) != len(n.Probs) {
					return fmt.Errorf("tree %d node %d: leaf shape mismatch", ti, ni)
				}
				for _, c := range n.Classes {
					if c < 0 || c >= f.Classes {
						return fmt.Errorf("tree %d node %d: class %d out of range", ti, ni, c)
					}
				}
				continue
			}
			if n.Feature >= f.Features || n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: bad split", ti, ni)
			}
		}
	}
	return nil
}

// node is a split when Feature >= 0, otherwise a leaf with a sparse class
// distribution.
type node struct {
	Feature int       `json:"f"`
	Left    int       `json:"l,omitempty"` // feature absent
	Right   int       `json:"r,omitempty"` // feature present
	Classes []int     `json:"c,omitempty"`
	Probs   []float64 `json:"p,omitempty"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

func (t *tree) leaf(x features.Vector) *node {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n
		}
		if n.Feature < len(x) && x[n.Feature] != 0 {
			i = n.Right
		} else {
			i = n.Left
		}
	}
}

type treeBuilder struct {
	X          []features.Vector
	y          []int
	numClasses int
	cfg        ForestConfig
	rng        *rand.Rand
	perm       []int
	nodes      []node
}

func (b *treeBuilder) fit(width int) tree {
	n := len(b.X)
	sample := make([]int, n)
	for i := range sample {
		sample[i] = b.rng.Intn(n)
	}
	b.perm = make([]int, width)
	for i := range b.perm {
		b.perm[i] = i
	}
	b.grow(sample, 0)
	return tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(sample []int, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, node{Feature: -1})

	counts := make([]int, b.numClasses)
	for _, s := range sample {
		counts[b.y[s]]++
	}
	if b.stop(sample, counts, depth) {
		b.nodes[idx] = leafNode(counts, len(sample))
		return idx
	}
	feature, ok := b.bestSplit(sample, counts)
	if !ok {
		b.nodes[idx] = leafNode(counts, len(sample))
		return idx
	}

	var absent, present []int
	for _, s := range sample {
		if b.X[s][feature] != 0 {
			present = append(present, s)
		} else {
			absent = append(absent, s)
		}
	}
	left := b.grow(absent, depth+1)
	right := b.grow(present, depth+1)
	b.nodes[idx] = node{Feature: feature, Left: left, Right: right}
	return idx
}

func (b *treeBuilder) stop(sample []int, counts []int, depth int) bool {
	if b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth {
		return true
	}
	if len(sample) < 2*b.cfg.MinSamplesLeaf {
		return true
	}
	for _, c := range counts {
		if c == len(sample) {
			return true
		}
	}
	return false
}

// bestSplit draws features in random order and scores up to MaxFeatures of
// the ones that are not constant within the node.
func (b *treeBuilder) bestSplit(sample []int, counts []int) (int, bool) {
	n := len(sample)
	best, bestScore := -1, weightedGini(counts, n)-1e-12
	presentCounts := make([]int, b.numClasses)
	absentCounts := make([]int, b.numClasses)
	visited := 0
	for j := 0; j < len(b.perm) && visited < b.cfg.MaxFeatures; j++ {
		k := j + b.rng.Intn(len(b.perm)-j)
		b.perm[j], b.perm[k] = b.perm[k], b.perm[j]
		f := b.perm[j]

		for c := range presentCounts {
			presentCounts[c] = 0
		}
		nPresent := 0
		for _, s := range sample {
			if b.X[s][f] != 0 {
				presentCounts[b.y[s]]++
				nPresent++
			}
		}
		if nPresent == 0 || nPresent == n {
			continue
		}
		visited++
		nAbsent := n - nPresent
		if nPresent < b.cfg.MinSamplesLeaf || nAbsent < b.cfg.MinSamplesLeaf {
			continue
		}
		for c := range absentCounts {
			absentCounts[c] = counts[c] - presentCounts[c]
		}
		score := weightedGini(presentCounts, nPresent) + weightedGini(absentCounts, nAbsent)
		if score < bestScore {
			best, bestScore = f, score
		}
	}
	return best, best >= 0
}

// weightedGini is n times the Gini impurity of counts.
func weightedGini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	var sq float64
	for _, c := range counts {
		sq += float64(c) * float64(c)
	}
	return float64(n) - sq/float64(n)
}

func leafNode(counts []int, total int) node {
	leaf := node{Feature: -1}
	for c, k := range counts {
		if k == 0 {
			continue
		}
		leaf.Classes = append(leaf.Classes, c)
		leaf.Probs = append(leaf.Probs, float64(k)/float64(total))
	}
	return leaf
}
