package grade

import (
	"sort"
)

const minGain = 1e-12

type treeNode struct {
	leaf      bool
	class     int
	feature   int
	threshold float64
	left      int
	right     int
}

// Tree is a CART classification tree grown with the Gini criterion.
type Tree struct {
	nodes    []treeNode
	classes  []string
	maxDepth int
}

type sample struct {
	x Vector
	y int
}

// fitTree grows a tree until every leaf is pure or no split improves
// impurity. maxDepth <= 0 means unbounded.
func fitTree(xs []Vector, ys []int, classes []string, maxDepth int) *Tree {
	t := &Tree{classes: classes, maxDepth: maxDepth}
	samples := make([]sample, len(xs))
	for i := range xs {
		samples[i] = sample{x: xs[i], y: ys[i]}
	}
	t.grow(samples, 0)
	return t
}

func (t *Tree) grow(samples []sample, depth int) int {
	counts := classCounts(samples, len(t.classes))
	idx := len(t.nodes)
	t.nodes = append(t.nodes, treeNode{leaf: true, class: majority(counts)})

	if len(samples) < 2 || isPure(counts) {
		return idx
	}
	if t.maxDepth > 0 && depth >= t.maxDepth {
		return idx
	}
	feature, threshold, ok := bestSplit(samples, counts)
	if !ok {
		return idx
	}

	var left, right []sample
	for _, s := range samples {
		if s.x[feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	l := t.grow(left, depth+1)
	r := t.grow(right, depth+1)
	t.nodes[idx] = treeNode{feature: feature, threshold: threshold, left: l, right: r}
	return idx
}

// Predict returns the class label for x.
func (t *Tree) Predict(x Vector) string {
	if len(t.nodes) == 0 {
		return ""
	}
	i := 0
	for !t.nodes[i].leaf {
		n := t.nodes[i]
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
	return t.classes[t.nodes[i].class]
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	if len(t.nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		n := t.nodes[i]
		if n.leaf {
			return 0
		}
		return 1 + max(walk(n.left), walk(n.right))
	}
	return walk(0)
}

type valueClass struct {
	v float64
	y int
}

// bestSplit scans every feature present in samples. Samples without the
// feature hold an implicit zero. Ties keep the lower feature index and the
// lower threshold.
func bestSplit(samples []sample, total []int) (int, float64, bool) {
	n := float64(len(samples))
	parent := gini(total, len(samples))

	byFeature := make(map[int][]valueClass)
	for _, s := range samples {
		for f, v := range s.x {
			if v == 0 {
				continue
			}
			byFeature[f] = append(byFeature[f], valueClass{v: v, y: s.y})
		}
	}
	features := make([]int, 0, len(byFeature))
	for f := range byFeature {
		features = append(features, f)
	}
	sort.Ints(features)

	bestGain := minGain
	bestFeature, bestThreshold, found := 0, 0.0, false
	left := make([]int, len(total))
	right := make([]int, len(total))

	for _, f := range features {
		nonzero := byFeature[f]
		sort.Slice(nonzero, func(i, j int) bool {
			if nonzero[i].v != nonzero[j].v {
				return nonzero[i].v < nonzero[j].v
			}
			return nonzero[i].y < nonzero[j].y
		})

		copy(left, total)
		for _, vc := range nonzero {
			left[vc.y]--
		}
		for c := range right {
			right[c] = total[c] - left[c]
		}
		nLeft := len(samples) - len(nonzero)
		prev := 0.0

		consider := func(next float64) {
			if nLeft == 0 || nLeft == len(samples) {
				return
			}
			nRight := len(samples) - nLeft
			impurity := float64(nLeft)/n*gini(left, nLeft) + float64(nRight)/n*gini(right, nRight)
			if gain := parent - impurity; gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (prev + next) / 2
				found = true
			}
		}

		for i := 0; i < len(nonzero); {
			v := nonzero[i].v
			consider(v)
			for i < len(nonzero) && nonzero[i].v == v {
				left[nonzero[i].y]++
				right[nonzero[i].y]--
				nLeft++
				i++
			}
			prev = v
		}
	}
	return bestFeature, bestThreshold, found
}

func classCounts(samples []sample, k int) []int {
	counts := make([]int, k)
	for _, s := range samples {
		counts[s.y]++
	}
	return counts
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		sum += p * p
	}
	return 1 - sum
}

func isPure(counts []int) bool {
	nonEmpty := 0
	for _, c := range counts {
		if c > 0 {
			nonEmpty++
		}
	}
	return nonEmpty <= 1
}

// majority returns the most frequent class, preferring the lower index.
func majority(counts []int) int {
	best := 0
	for c := 1; c < len(counts); c++ {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}
