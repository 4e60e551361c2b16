package tree

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// prune はコスト複雑度枝刈り (weakest link) を行う。
//
// 内部ノード t の実効α g(t) = (R(t) - R(T_t)) / (|leaves(T_t)| - 1) が最小の
// ノードを葉に畳み込む操作を、最小の g が alpha を超えるまで繰り返す。
// R は学習データ全体 nTotal に対する誤分類率。同じ g のノードはインデックスの
// 小さいものから畳み込む。最後に到達不能になったノードを取り除いて詰め直す
func prune(nodes []Node, alpha float64, nTotal int) []Node {
	nodes = append([]Node(nil), nodes...)
	n := len(nodes)
	reachable := make([]bool, n)
	leaves := make([]int, n)
	subtreeRisk := make([]float64, n)

	for {
		markReachable(nodes, reachable)

		// 子のインデックスは親より大きいので、逆順に走査すれば子の集計が先に終わる
		for i := n - 1; i >= 0; i-- {
			if !reachable[i] {
				continue
			}
			node := nodes[i]
			if node.IsLeaf() {
				leaves[i] = 1
				subtreeRisk[i] = nodeRisk(node, nTotal)
				continue
			}
			leaves[i] = leaves[node.Left] + leaves[node.Right]
			subtreeRisk[i] = subtreeRisk[node.Left] + subtreeRisk[node.Right]
		}

		weakest := -1
		minG := math.Inf(1)
		for i := 0; i < n; i++ {
			if !reachable[i] || nodes[i].IsLeaf() {
				continue
			}
			g := (nodeRisk(nodes[i], nTotal) - subtreeRisk[i]) / float64(leaves[i]-1)
			if g < minG {
				minG = g
				weakest = i
			}
		}
		if weakest < 0 || minG > alpha {
			break
		}
		nodes[weakest].makeLeaf()
	}

	markReachable(nodes, reachable)
	return compact(nodes, reachable)
}

// nodeRisk はノードを葉としたときの誤分類数を nTotal で割った値
func nodeRisk(node Node, nTotal int) float64 {
	if len(node.Counts) == 0 {
		return 0
	}
	majority := node.Counts[floats.MaxIdx(node.Counts)]
	return (float64(node.NSamples) - majority) / float64(nTotal)
}

func markReachable(nodes []Node, reachable []bool) {
	for i := range reachable {
		reachable[i] = false
	}
	reachable[0] = true
	for i, node := range nodes {
		if reachable[i] && !node.IsLeaf() {
			reachable[node.Left] = true
			reachable[node.Right] = true
		}
	}
}

// compact は到達可能なノードだけを元の順序で詰め、子のインデックスを付け替える
func compact(nodes []Node, reachable []bool) []Node {
	remap := make([]int, len(nodes))
	out := make([]Node, 0, len(nodes))
	for i, node := range nodes {
		if !reachable[i] {
			remap[i] = -1
			continue
		}
		remap[i] = len(out)
		out = append(out, node)
	}
	for i := range out {
		if !out[i].IsLeaf() {
			out[i].Left = remap[out[i].Left]
			out[i].Right = remap[out[i].Right]
		}
	}
	return out
}
