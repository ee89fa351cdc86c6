package model

import (
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions sample indices so every class keeps roughly
// testFraction of its samples in the test side. A class with a single
// sample stays entirely in training, and every class keeps at least one
// training sample. The split is reproducible for a given seed.
func StratifiedSplit(y []int, testFraction float64, seed int64) (train, test []int) {
	byClass := make(map[int][]int)
	var classes []int
	for i, c := range y {
		if _, ok := byClass[c]; !ok {
			classes = append(classes, c)
		}
		byClass[c] = append(byClass[c], i)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		nTest := int(math.Round(float64(len(idx)) * testFraction))
		if nTest >= len(idx) {
			nTest = len(idx) - 1
		}
		if nTest < 0 {
			nTest = 0
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}
