// Package distance implements the pairwise thread-similarity metrics used
// to build the distance matrix that feeds the hierarchical clusterer.
package distance

import (
	"github.com/stealthrocket/crashreport/internal/cerrors"
	"github.com/stealthrocket/crashreport/internal/frame"
)

// Undefined is returned by every metric below when both operand threads are
// empty.
const Undefined = cerrors.MetricUndefined

// Jaccard returns the Jaccard distance `1 - |A∩B| / |A∪B|` over the
// multiset of function names of a and b, in [0, 1].
func Jaccard(a, b *frame.Thread) float64 {
	fa, fb := a.FunctionNames(), b.FunctionNames()
	if len(fa) == 0 && len(fb) == 0 {
		return Undefined
	}
	ca, cb := countNames(fa), countNames(fb)

	var inter, union int
	seen := map[string]bool{}
	for name, na := range ca {
		nb := cb[name]
		inter += min(na, nb)
		union += max(na, nb)
		seen[name] = true
	}
	for name, nb := range cb {
		if !seen[name] {
			union += nb
		}
	}
	if union == 0 {
		return 0
	}
	return 1 - float64(inter)/float64(union)
}

func countNames(names []string) map[string]int {
	m := make(map[string]int, len(names))
	for _, n := range names {
		m[n]++
	}
	return m
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// JaroWinkler returns the Jaro-Winkler similarity of a and b's function
// name sequences, in [0, 1] with 1 meaning identical. Unlike the other
// three metrics this is a similarity, not a distance.
func JaroWinkler(a, b *frame.Thread) float64 {
	fa, fb := a.FunctionNames(), b.FunctionNames()
	if len(fa) == 0 && len(fb) == 0 {
		return Undefined
	}
	if len(fa) == 0 || len(fb) == 0 {
		return 0
	}

	window := max(len(fa), len(fb))/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, len(fa))
	bMatched := make([]bool, len(fb))
	matches := 0
	for i, name := range fa {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > len(fb) {
			hi = len(fb)
		}
		for j := lo; j < hi; j++ {
			if bMatched[j] || fb[j] != name {
				continue
			}
			aMatched[i] = true
			bMatched[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	var aSeq, bSeq []string
	for i, m := range aMatched {
		if m {
			aSeq = append(aSeq, fa[i])
		}
	}
	for j, m := range bMatched {
		if m {
			bSeq = append(bSeq, fb[j])
		}
	}
	transpositions := 0
	for i := range aSeq {
		if aSeq[i] != bSeq[i] {
			transpositions++
		}
	}
	t := float64(transpositions) / 2

	m := float64(matches)
	j := (m/float64(len(fa)) + m/float64(len(fb)) + (m-t)/m) / 3

	prefix := 0
	maxPrefix := 4
	for i := 0; i < len(fa) && i < len(fb) && i < maxPrefix; i++ {
		if fa[i] != fb[i] {
			break
		}
		prefix++
	}

	const scaling = 0.2
	return j + float64(prefix)*scaling*(1-j)
}

// Levenshtein returns the classical edit distance between a and b's
// function name sequences, normalized to [0, 1] by dividing by the longer
// sequence's length (0 = identical).
func Levenshtein(a, b *frame.Thread) float64 {
	fa, fb := a.FunctionNames(), b.FunctionNames()
	if len(fa) == 0 && len(fb) == 0 {
		return Undefined
	}
	d := editDistance(fa, fb, false)
	return float64(d) / float64(max(len(fa), len(fb)))
}

// DamerauLevenshtein is Levenshtein with adjacent transpositions costing 1,
// normalized the same way. It does not satisfy the triangle inequality.
func DamerauLevenshtein(a, b *frame.Thread) float64 {
	fa, fb := a.FunctionNames(), b.FunctionNames()
	if len(fa) == 0 && len(fb) == 0 {
		return Undefined
	}
	d := editDistance(fa, fb, true)
	return float64(d) / float64(max(len(fa), len(fb)))
}

// editDistance computes edit distance by classical DP, optionally allowing
// an adjacent-transposition move at cost 1 (Damerau variant).
func editDistance(a, b []string, transpositions bool) int {
	n, m := len(a), len(b)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}

	d := make([][]int, n+1)
	for i := range d {
		d[i] = make([]int, m+1)
		d[i][0] = i
	}
	for j := 0; j <= m; j++ {
		d[0][j] = j
	}

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			d[i][j] = min3(
				d[i-1][j]+1,
				d[i][j-1]+1,
				d[i-1][j-1]+cost,
			)
			if transpositions && i > 1 && j > 1 &&
				a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				d[i][j] = min(d[i][j], d[i-2][j-2]+1)
			}
		}
	}
	return d[n][m]
}

func min3(a, b, c int) int {
	return min(a, min(b, c))
}
