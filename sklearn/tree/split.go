package tree

import (
	"math"
	"sort"
)

// gainTolerance 未満の差は同点として扱い、先に見つかった分割を残す
const gainTolerance = 1e-12

type impurityFn func(counts []float64, n float64) float64

func impurityFunc(criterion string) impurityFn {
	if criterion == "entropy" {
		return entropy
	}
	return gini
}

// gini は 1 - Σ p_c^2
func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / n
		sum += p * p
	}
	return 1 - sum
}

// entropy は -Σ p_c log2 p_c
func entropy(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c > 0 {
			p := c / n
			h -= p * math.Log2(p)
		}
	}
	return h
}

type split struct {
	feature   int
	kind      FeatureKind
	threshold float64
	leftSet   uint64
	gain      float64
}

// builder は1回のFitの間だけ使う作業領域
type builder struct {
	columns  [][]float64
	target   []int
	kinds    []FeatureKind
	nClasses int
	impurity impurityFn

	maxDepth            int
	minSamplesSplit     int
	minSamplesLeaf      int
	minImpurityDecrease float64
}

type buildTask struct {
	node    int
	samples []int
	depth   int
}

func (b *builder) newNode(samples []int, depth int) Node {
	counts := make([]float64, b.nClasses)
	for _, s := range samples {
		counts[b.target[s]]++
	}
	n := float64(len(samples))
	value := make([]float64, b.nClasses)
	for c := range counts {
		value[c] = counts[c] / n
	}
	node := Node{
		Depth:    depth,
		NSamples: len(samples),
		Counts:   counts,
		Value:    value,
		Impurity: b.impurity(counts, n),
	}
	node.makeLeaf()
	return node
}

// build は根から幅優先に近い順でノードを追加する。
// 子は分割が決まった時点で追加されるので、子のインデックスは親より大きい
func (b *builder) build() []Node {
	all := make([]int, len(b.target))
	for i := range all {
		all[i] = i
	}

	nodes := []Node{b.newNode(all, 0)}
	stack := []buildTask{{node: 0, samples: all, depth: 0}}

	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if b.isLeaf(nodes[t.node], t.depth) {
			continue
		}
		best, ok := b.bestSplit(t.samples, nodes[t.node].Impurity)
		if !ok || best.gain <= b.minImpurityDecrease {
			continue
		}

		left, right := b.partition(t.samples, best)
		li := len(nodes)
		nodes = append(nodes, b.newNode(left, t.depth+1))
		ri := len(nodes)
		nodes = append(nodes, b.newNode(right, t.depth+1))

		parent := &nodes[t.node]
		parent.Feature = best.feature
		parent.Kind = best.kind
		parent.Threshold = best.threshold
		parent.LeftSet = best.leftSet
		parent.Left = li
		parent.Right = ri

		stack = append(stack,
			buildTask{node: ri, samples: right, depth: t.depth + 1},
			buildTask{node: li, samples: left, depth: t.depth + 1},
		)
	}
	return nodes
}

func (b *builder) isLeaf(node Node, depth int) bool {
	return node.NSamples < b.minSamplesSplit ||
		node.NSamples < 2*b.minSamplesLeaf ||
		(b.maxDepth >= 0 && depth >= b.maxDepth) ||
		node.Impurity <= 0
}

// partition はサンプルの並び順を保ったまま左右に振り分ける
func (b *builder) partition(samples []int, s split) (left, right []int) {
	probe := Node{Kind: s.kind, Threshold: s.threshold, LeftSet: s.leftSet}
	col := b.columns[s.feature]
	for _, i := range samples {
		if probe.GoesLeft(col[i]) {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// bestSplit は全特徴量の全候補から不純度減少が最大の分割を選ぶ
func (b *builder) bestSplit(samples []int, parentImpurity float64) (split, bool) {
	best := split{gain: math.Inf(-1)}
	found := false
	consider := func(s split) {
		if s.gain > best.gain+gainTolerance {
			best = s
			found = true
		}
	}

	for f := range b.columns {
		if b.kinds[f] == Nominal {
			b.nominalSplits(f, samples, parentImpurity, consider)
		} else {
			b.thresholdSplits(f, samples, parentImpurity, consider)
		}
	}
	return best, found
}

func (b *builder) gain(parent float64, left, right []float64, nl, nr int) float64 {
	n := float64(nl + nr)
	return parent -
		float64(nl)/n*b.impurity(left, float64(nl)) -
		float64(nr)/n*b.impurity(right, float64(nr))
}

// thresholdSplits は値でソートし、隣接する異なる値の中点を昇順に評価する
func (b *builder) thresholdSplits(f int, samples []int, parent float64, consider func(split)) {
	col := b.columns[f]
	order := append([]int(nil), samples...)
	sort.SliceStable(order, func(i, j int) bool { return col[order[i]] < col[order[j]] })

	n := len(order)
	left := make([]float64, b.nClasses)
	right := make([]float64, b.nClasses)
	for _, s := range order {
		right[b.target[s]]++
	}

	for i := 0; i < n-1; i++ {
		c := b.target[order[i]]
		left[c]++
		right[c]--

		lo, hi := col[order[i]], col[order[i+1]]
		if hi <= lo {
			continue
		}
		nl, nr := i+1, n-i-1
		if nl < b.minSamplesLeaf || nr < b.minSamplesLeaf {
			continue
		}

		threshold := lo + (hi-lo)/2
		if threshold >= hi {
			threshold = lo
		}
		consider(split{
			feature:   f,
			kind:      b.kinds[f],
			threshold: threshold,
			gain:      b.gain(parent, left, right, nl, nr),
		})
	}
}

// nominalSplits はノードに現れる水準の非自明な二分割をそれぞれ一度だけ評価する。
// 最大の水準は常に右側に固定し、左側の部分集合をビットマスクの昇順に列挙する
func (b *builder) nominalSplits(f int, samples []int, parent float64, consider func(split)) {
	col := b.columns[f]

	perLevel := make(map[int][]float64)
	sizes := make(map[int]int)
	for _, s := range samples {
		l := int(col[s])
		if perLevel[l] == nil {
			perLevel[l] = make([]float64, b.nClasses)
		}
		perLevel[l][b.target[s]]++
		sizes[l]++
	}
	levels := make([]int, 0, len(perLevel))
	for l := range perLevel {
		levels = append(levels, l)
	}
	sort.Ints(levels)

	k := len(levels)
	if k < 2 {
		return
	}

	n := len(samples)
	left := make([]float64, b.nClasses)
	right := make([]float64, b.nClasses)
	for mask := uint64(1); mask < uint64(1)<<uint(k-1); mask++ {
		for c := range left {
			left[c] = 0
			right[c] = 0
		}
		var leftSet uint64
		nl := 0
		for i, l := range levels {
			dst := right
			if mask&(1<<uint(i)) != 0 {
				dst = left
				leftSet |= 1 << uint(l)
				nl += sizes[l]
			}
			for c, v := range perLevel[l] {
				dst[c] += v
			}
		}
		nr := n - nl
		if nl < b.minSamplesLeaf || nr < b.minSamplesLeaf {
			continue
		}
		consider(split{
			feature: f,
			kind:    Nominal,
			leftSet: leftSet,
			gain:    b.gain(parent, left, right, nl, nr),
		})
	}
}
