package confidence

import (
	"math"
	"math/rand"
	"sort"
)

// treeNode is one node of a classification tree. Leaves carry the weighted
// probability of the positive class.
type treeNode struct {
	feature  int
	split    float64
	left     *treeNode
	right    *treeNode
	leaf     bool
	probOne  float64
	nSamples float64
}

// forest is a bagged ensemble of depth-limited trees with per-tree Gini
// feature importances.
type forest struct {
	trees       []*treeNode
	importances []float64
}

// growForest trains nTrees bootstrapped trees over X/y with the given
// sample weights. Each split considers a random sqrt-sized feature subset.
func growForest(X [][]float64, y []int, weights []float64, nTrees, maxDepth int, rng *rand.Rand) *forest {
	nFeatures := len(X[0])
	maxFeatures := int(math.Ceil(math.Sqrt(float64(nFeatures))))

	f := &forest{
		trees:       make([]*treeNode, nTrees),
		importances: make([]float64, nFeatures),
	}

	for t := 0; t < nTrees; t++ {
		idx := make([]int, len(X))
		for i := range idx {
			idx[i] = rng.Intn(len(X))
		}
		imp := make([]float64, nFeatures)
		f.trees[t] = growTree(X, y, weights, idx, 0, maxDepth, maxFeatures, imp, rng)

		// Normalize per-tree importance before averaging, so every tree
		// contributes equally regardless of its total impurity decrease.
		var sum float64
		for _, v := range imp {
			sum += v
		}
		if sum > 0 {
			for i, v := range imp {
				f.importances[i] += v / sum
			}
		}
	}

	var sum float64
	for i := range f.importances {
		f.importances[i] /= float64(nTrees)
		sum += f.importances[i]
	}
	if sum > 0 {
		for i := range f.importances {
			f.importances[i] /= sum
		}
	}
	return f
}

// predictProba returns the ensemble-averaged probability of class 1.
func (f *forest) predictProba(x []float64) float64 {
	var total float64
	for _, t := range f.trees {
		total += t.probFor(x)
	}
	return total / float64(len(f.trees))
}

func (n *treeNode) probFor(x []float64) float64 {
	for !n.leaf {
		if x[n.feature] <= n.split {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.probOne
}

// weightedGini computes the Gini impurity of a weighted two-class set.
func weightedGini(wOne, wTotal float64) float64 {
	if wTotal == 0 {
		return 0
	}
	p := wOne / wTotal
	return 2 * p * (1 - p)
}

func growTree(X [][]float64, y []int, weights []float64, idx []int, depth, maxDepth, maxFeatures int, imp []float64, rng *rand.Rand) *treeNode {
	var wTotal, wOne float64
	for _, i := range idx {
		wTotal += weights[i]
		if y[i] == 1 {
			wOne += weights[i]
		}
	}

	node := &treeNode{nSamples: wTotal}
	if wTotal == 0 {
		node.leaf = true
		node.probOne = 0.5
		return node
	}
	parentGini := weightedGini(wOne, wTotal)
	if depth >= maxDepth || len(idx) < 2 || parentGini == 0 {
		node.leaf = true
		node.probOne = wOne / wTotal
		return node
	}

	feature, split, gain := bestSplit(X, y, weights, idx, maxFeatures, parentGini, rng)
	if feature < 0 {
		node.leaf = true
		node.probOne = wOne / wTotal
		return node
	}

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if X[i][feature] <= split {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}

	imp[feature] += gain * wTotal
	node.feature = feature
	node.split = split
	node.left = growTree(X, y, weights, leftIdx, depth+1, maxDepth, maxFeatures, imp, rng)
	node.right = growTree(X, y, weights, rightIdx, depth+1, maxDepth, maxFeatures, imp, rng)
	return node
}

// bestSplit searches a random feature subset for the split maximizing the
// weighted Gini gain. Returns feature -1 when no split improves purity.
func bestSplit(X [][]float64, y []int, weights []float64, idx []int, maxFeatures int, parentGini float64, rng *rand.Rand) (int, float64, float64) {
	nFeatures := len(X[0])
	features := rng.Perm(nFeatures)
	if len(features) > maxFeatures {
		features = features[:maxFeatures]
	}

	bestFeature, bestSplit, bestGain := -1, 0.0, 0.0

	type pair struct {
		v float64
		w float64
		y int
	}

	for _, feat := range features {
		pairs := make([]pair, len(idx))
		var wTotal, wOne float64
		for i, id := range idx {
			pairs[i] = pair{v: X[id][feat], w: weights[id], y: y[id]}
			wTotal += weights[id]
			if y[id] == 1 {
				wOne += weights[id]
			}
		}
		sort.Slice(pairs, func(a, b int) bool { return pairs[a].v < pairs[b].v })

		var wLeft, wLeftOne float64
		for i := 0; i < len(pairs)-1; i++ {
			wLeft += pairs[i].w
			if pairs[i].y == 1 {
				wLeftOne += pairs[i].w
			}
			if pairs[i].v == pairs[i+1].v {
				continue
			}
			wRight := wTotal - wLeft
			gini := (wLeft*weightedGini(wLeftOne, wLeft) + wRight*weightedGini(wOne-wLeftOne, wRight)) / wTotal
			gain := parentGini - gini
			if gain > bestGain {
				bestGain = gain
				bestFeature = feat
				bestSplit = (pairs[i].v + pairs[i+1].v) / 2
			}
		}
	}

	return bestFeature, bestSplit, bestGain
}
