// Package cluster builds an agglomerative hierarchical clustering (a
// dendrogram) over a pairwise distance matrix and cuts it into disjoint
// clusters at a chosen threshold.
package cluster

import (
	"math"

	"github.com/stealthrocket/crashreport/internal/cerrors"
	"github.com/stealthrocket/crashreport/internal/distance"
)

// Linkage selects how a merged cluster's distance to a third cluster is
// derived from its two parents' distances to that cluster.
type Linkage int

const (
	LinkageAverage Linkage = iota
	LinkageMax
	LinkageMin
)

// Dendrogram is a linear arrangement of n leaves together with n-1 merge
// levels. MergeLevels[i] is the level at which the gap between Order[i]
// and Order[i+1] was closed.
type Dendrogram struct {
	Order       []int
	MergeLevels []float64
}

// Size returns the number of leaves.
func (d *Dendrogram) Size() int {
	return len(d.Order)
}

// Leaf returns the i-th element of the leaf order, or an OutOfRangeError
// if i is outside [0, Size).
func (d *Dendrogram) Leaf(i int) (int, error) {
	if i < 0 || i >= len(d.Order) {
		return 0, &cerrors.OutOfRangeError{Index: i, Limit: len(d.Order)}
	}
	return d.Order[i], nil
}

// MergeLevel returns the i-th merge level, or an OutOfRangeError if i is
// outside [0, Size-1).
func (d *Dendrogram) MergeLevel(i int) (float64, error) {
	if i < 0 || i >= len(d.MergeLevels) {
		return 0, &cerrors.OutOfRangeError{Index: i, Limit: len(d.MergeLevels)}
	}
	return d.MergeLevels[i], nil
}

type clusterNode struct {
	leaves []int
	gaps   []float64
	size   int
}

// Build constructs the dendrogram of d by repeated nearest-cluster merge
// under average linkage (or an explicitly passed Linkage). Ties among
// candidate pairs are broken by earliest (i, j).
func Build(d *distance.Matrix, linkage ...Linkage) *Dendrogram {
	lk := LinkageAverage
	if len(linkage) > 0 {
		lk = linkage[0]
	}

	n := d.N
	if n == 0 {
		return &Dendrogram{}
	}
	if n == 1 {
		return &Dendrogram{Order: []int{0}}
	}

	nodes := make([]*clusterNode, n)
	dm := make([][]float64, n)
	for i := 0; i < n; i++ {
		nodes[i] = &clusterNode{leaves: []int{i}, size: 1}
		dm[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				dm[i][j] = d.Get(i, j)
			}
		}
	}

	for len(nodes) > 1 {
		bi, bj, level := findMinPair(dm)
		a, b := nodes[bi], nodes[bj]
		leaves, gaps := combine(a, b, level, d)
		merged := &clusterNode{leaves: leaves, gaps: gaps, size: a.size + b.size}

		remaining := make([]*clusterNode, 0, len(nodes)-1)
		remainingIdx := make([]int, 0, len(nodes)-1)
		for k := range nodes {
			if k == bi || k == bj {
				continue
			}
			remaining = append(remaining, nodes[k])
			remainingIdx = append(remainingIdx, k)
		}
		remaining = append(remaining, merged)

		newDM := make([][]float64, len(remaining))
		for i := range newDM {
			newDM[i] = make([]float64, len(remaining))
		}
		for i, ki := range remainingIdx {
			for j, kj := range remainingIdx {
				if i != j {
					newDM[i][j] = dm[ki][kj]
				}
			}
		}
		mergedIdx := len(remaining) - 1
		for i, ki := range remainingIdx {
			nd := linkageDistance(lk, dm[bi][ki], dm[bj][ki], a.size, b.size)
			newDM[i][mergedIdx] = nd
			newDM[mergedIdx][i] = nd
		}

		nodes = remaining
		dm = newDM
	}

	final := nodes[0]
	return &Dendrogram{Order: final.leaves, MergeLevels: final.gaps}
}

// findMinPair scans every (i, j), i<j pair of the current cluster distance
// matrix and returns the earliest pair achieving the minimum value.
func findMinPair(dm [][]float64) (int, int, float64) {
	bi, bj := 0, 1
	best := math.Inf(1)
	for i := 0; i < len(dm); i++ {
		for j := i + 1; j < len(dm); j++ {
			if dm[i][j] < best {
				best = dm[i][j]
				bi, bj = i, j
			}
		}
	}
	return bi, bj, best
}

func linkageDistance(lk Linkage, distA, distB float64, sizeA, sizeB int) float64 {
	switch lk {
	case LinkageMax:
		return math.Max(distA, distB)
	case LinkageMin:
		return math.Min(distA, distB)
	default:
		return (distA*float64(sizeA) + distB*float64(sizeB)) / float64(sizeA+sizeB)
	}
}

// combine concatenates a and b's leaf sequences, choosing the orientation
// (possibly reversing one or both sides) that minimizes the original
// leaf-to-leaf distance between the newly-adjacent outer elements.
func combine(a, b *clusterNode, level float64, d *distance.Matrix) ([]int, []float64) {
	aFront, aBack := a.leaves[0], a.leaves[len(a.leaves)-1]
	bFront, bBack := b.leaves[0], b.leaves[len(b.leaves)-1]

	type orientation struct {
		reverseA, reverseB bool
		touchDist          float64
	}
	candidates := []orientation{
		{false, false, d.Get(aBack, bFront)},
		{false, true, d.Get(aBack, bBack)},
		{true, false, d.Get(aFront, bFront)},
		{true, true, d.Get(aFront, bBack)},
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.touchDist < best.touchDist {
			best = c
		}
	}

	aLeaves, aGaps := a.leaves, a.gaps
	if best.reverseA {
		aLeaves, aGaps = reverseLeaves(aLeaves), reverseGaps(aGaps)
	}
	bLeaves, bGaps := b.leaves, b.gaps
	if best.reverseB {
		bLeaves, bGaps = reverseLeaves(bLeaves), reverseGaps(bGaps)
	}

	leaves := make([]int, 0, len(aLeaves)+len(bLeaves))
	leaves = append(leaves, aLeaves...)
	leaves = append(leaves, bLeaves...)

	gaps := make([]float64, 0, len(aGaps)+1+len(bGaps))
	gaps = append(gaps, aGaps...)
	gaps = append(gaps, level)
	gaps = append(gaps, bGaps...)

	return leaves, gaps
}

func reverseLeaves(in []int) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

func reverseGaps(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

// Cut walks the dendrogram's leaf order, closing off a run whenever the
// next merge level exceeds level, and emits every run whose length is at
// least minSize.
func (d *Dendrogram) Cut(level float64, minSize int) [][]int {
	var result [][]int
	start := 0
	for i := 0; i <= len(d.MergeLevels); i++ {
		if i == len(d.MergeLevels) || d.MergeLevels[i] > level {
			run := d.Order[start : i+1]
			if len(run) >= minSize {
				cluster := make([]int, len(run))
				copy(cluster, run)
				result = append(result, cluster)
			}
			start = i + 1
		}
	}
	return result
}
