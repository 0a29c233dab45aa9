package modeling

import (
	"math"
	"math/rand/v2"
	"sort"
)

// node is one entry of a flattened regression tree. Leaves have left == -1.
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
	samples   int
}

// tree is a CART regression tree stored as a flat node slice; node 0 is the root.
type tree struct {
	nodes []node
}

// treeParams are the growth limits shared by every tree of a forest.
type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
}

// treeBuilder grows one tree over a bootstrap sample.
type treeBuilder struct {
	x      [][]float64
	y      []float64
	params treeParams
	rng    *rand.Rand
	tree   *tree

	// scratch buffers reused across nodes
	order    []int
	features []int
}

func growTree(x [][]float64, y []float64, sample []int, params treeParams, rng *rand.Rand) *tree {
	b := &treeBuilder{
		x:      x,
		y:      y,
		params: params,
		rng:    rng,
		tree:   &tree{},
	}
	b.features = make([]int, len(x[0]))
	for i := range b.features {
		b.features[i] = i
	}
	b.build(sample, 0)
	return b.tree
}

// build appends the subtree over idx and returns its node index.
func (b *treeBuilder) build(idx []int, depth int) int {
	id := len(b.tree.nodes)
	b.tree.nodes = append(b.tree.nodes, node{
		left:    -1,
		right:   -1,
		value:   b.mean(idx),
		samples: len(idx),
	})

	if depth >= b.params.maxDepth || len(idx) < b.params.minSamplesSplit || b.pure(idx) {
		return id
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	n := &b.tree.nodes[id]
	n.feature = feature
	n.threshold = threshold
	n.left = l
	n.right = r
	return id
}

// bestSplit searches maxFeatures randomly chosen features for the split with
// the largest reduction in squared error that leaves minSamplesLeaf rows on
// each side.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	minLeaf := b.params.minSamplesLeaf

	var total, totalSq float64
	for _, i := range idx {
		total += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}
	parentSSE := totalSq - total*total/float64(n)

	b.rng.Shuffle(len(b.features), func(i, j int) {
		b.features[i], b.features[j] = b.features[j], b.features[i]
	})

	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	if cap(b.order) < n {
		b.order = make([]int, n)
	}
	order := b.order[:n]

	for _, f := range b.features[:b.params.maxFeatures] {
		copy(order, idx)
		sort.Slice(order, func(i, j int) bool { return b.x[order[i]][f] < b.x[order[j]][f] })

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			yi := b.y[order[k]]
			leftSum += yi
			leftSq += yi * yi

			nl := k + 1
			nr := n - nl
			if nl < minLeaf {
				continue
			}
			if nr < minLeaf {
				break
			}
			cur := b.x[order[k]][f]
			next := b.x[order[k+1]][f]
			if cur == next {
				continue
			}

			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if gain := parentSSE - sse; gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func (b *treeBuilder) mean(idx []int) float64 {
	var s float64
	for _, i := range idx {
		s += b.y[i]
	}
	return s / float64(len(idx))
}

func (b *treeBuilder) pure(idx []int) bool {
	first := b.y[idx[0]]
	for _, i := range idx[1:] {
		if b.y[i] != first {
			return false
		}
	}
	return true
}

// predict walks the tree. A NaN feature follows the child that saw more
// training rows.
func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.nodes[i]
		if n.left < 0 {
			return n.value
		}
		v := x[n.feature]
		switch {
		case math.IsNaN(v):
			if t.nodes[n.left].samples >= t.nodes[n.right].samples {
				i = n.left
			} else {
				i = n.right
			}
		case v <= n.threshold:
			i = n.left
		default:
			i = n.right
		}
	}
}

func (t *tree) depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := &t.nodes[i]
		if n.left < 0 {
			return 0
		}
		return 1 + max(walk(n.left), walk(n.right))
	}
	return walk(0)
}
