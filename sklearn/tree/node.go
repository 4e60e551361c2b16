package tree

import "math"

// FeatureKind はツリーが特徴量をどのように分割するかを決める
type FeatureKind int

const (
	// Continuous は連続値。隣接する異なる値の中点を閾値候補とする
	Continuous FeatureKind = iota
	// Ordinal は順序付きカテゴリの水準インデックス。順序を保つ閾値分割のみ
	Ordinal
	// Nominal は順序の無いカテゴリの水準インデックス。水準の部分集合で分割する
	Nominal
)

// maxNominalLevels は部分集合の全列挙を許す水準数の上限
const maxNominalLevels = 16

func (k FeatureKind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Ordinal:
		return "ordinal"
	case Nominal:
		return "nominal"
	default:
		return "unknown"
	}
}

// Node はアリーナ上の1ノード。子のインデックスは常に親より大きい
type Node struct {
	// Feature は分割に使う特徴量の列番号。葉では -1
	Feature int `json:"feature"`
	// Kind は分割特徴量の種類
	Kind FeatureKind `json:"kind"`
	// Threshold 以下の値は左へ進む (Continuous / Ordinal)
	Threshold float64 `json:"threshold"`
	// LeftSet のビット l が立っている水準 l は左へ進む (Nominal)
	LeftSet uint64 `json:"left_set,omitempty"`

	Left  int `json:"left"`
	Right int `json:"right"`
	Depth int `json:"depth"`

	NSamples int       `json:"n_samples"`
	Counts   []float64 `json:"counts"`
	// Value はノード内のクラス頻度 (平滑化なし)
	Value    []float64 `json:"value"`
	Impurity float64   `json:"impurity"`
}

// IsLeaf は葉ノードかどうかを返す
func (n Node) IsLeaf() bool {
	return n.Left < 0
}

// GoesLeft は特徴量の値 x が左の子へ進むかどうかを返す
func (n Node) GoesLeft(x float64) bool {
	if n.Kind != Nominal {
		return x <= n.Threshold
	}
	if x < 0 || x >= 64 || x != math.Trunc(x) {
		return false
	}
	return n.LeftSet&(1<<uint(x)) != 0
}

func (n Node) clone() Node {
	n.Counts = append([]float64(nil), n.Counts...)
	n.Value = append([]float64(nil), n.Value...)
	return n
}

func (n *Node) makeLeaf() {
	n.Feature = -1
	n.Kind = Continuous
	n.Threshold = 0
	n.LeftSet = 0
	n.Left = -1
	n.Right = -1
}
