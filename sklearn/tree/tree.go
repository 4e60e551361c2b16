// Package tree は分類木 (CART) を提供する。
//
// ノードはインデックスで参照されるアリーナに格納され、子は常に親より大きい
// インデックスを持つ。学習は明示的なスタックで行うため再帰の深さに依存しない。
// 分割の選択は特徴量の昇順、閾値の昇順で走査し、厳密に大きい改善のみを採用する
// ため、同じ入力からは常に同じ木が得られる。
package tree

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diabetes-risk/core/model"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// DecisionTreeClassifier は不純度の減少で二分割を繰り返す分類木
type DecisionTreeClassifier struct {
	state *model.StateManager

	// ハイパーパラメータ
	criterion           string  // "gini" or "entropy"
	maxDepth            int     // -1 で無制限
	minSamplesSplit     int     // 分割を試みる最小サンプル数
	minSamplesLeaf      int     // 葉の最小サンプル数
	minImpurityDecrease float64 // 分割に必要な不純度減少量
	ccpAlpha            float64 // コスト複雑度枝刈りの閾値
	featureKinds        []FeatureKind
	featureNames        []string

	// 学習結果
	nodes                []Node
	classes_             []float64
	nClasses_            int
	nFeatures_           int
	nSamples_            int
	featureImportances_  []float64
	nLeavesBeforePruning int
}

var (
	_ model.Classifier      = (*DecisionTreeClassifier)(nil)
	_ model.ParameterGetter = (*DecisionTreeClassifier)(nil)
	_ model.ParameterSetter = (*DecisionTreeClassifier)(nil)
)

// NewDecisionTreeClassifier は新しいDecisionTreeClassifierを作成
func NewDecisionTreeClassifier(options ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range options {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeClassifier) validate() error {
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be 'gini' or 'entropy'", dt.criterion)
	}
	if dt.maxDepth < -1 || dt.maxDepth == 0 {
		return errors.NewValidationError("max_depth", "must be positive or -1", dt.maxDepth)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	}
	if dt.minImpurityDecrease < 0 || math.IsNaN(dt.minImpurityDecrease) {
		return errors.NewValidationError("min_impurity_decrease", "must be non-negative", dt.minImpurityDecrease)
	}
	if dt.ccpAlpha < 0 || math.IsNaN(dt.ccpAlpha) {
		return errors.NewValidationError("ccp_alpha", "must be non-negative", dt.ccpAlpha)
	}
	return nil
}

// Fit は学習データから木を構築し、ccpAlpha > 0 なら枝刈りする
//
// X の欠損値 (NaN) は受け付けない。Nominal 列の値は 0 から始まる水準インデックスで
// なければならない。
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	if err := dt.validate(); err != nil {
		return err
	}

	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != rows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", 1, yCols, 1)
	}

	kinds, err := dt.resolveKinds(cols)
	if err != nil {
		return err
	}

	// 列ごとに保持しておくと分割探索で連続アクセスになる
	columns := make([][]float64, cols)
	for j := 0; j < cols; j++ {
		col := make([]float64, rows)
		for i := 0; i < rows; i++ {
			v := X.At(i, j)
			if math.IsNaN(v) {
				return errors.NewFeatureMissingError(dt.featureName(j), "training")
			}
			col[i] = v
		}
		if kinds[j] == Nominal {
			if err := checkNominal(dt.featureName(j), col); err != nil {
				return err
			}
		}
		columns[j] = col
	}

	classes, target := encodeTarget(y, rows)

	b := &builder{
		columns:             columns,
		target:              target,
		kinds:               kinds,
		nClasses:            len(classes),
		impurity:            impurityFunc(dt.criterion),
		maxDepth:            dt.maxDepth,
		minSamplesSplit:     dt.minSamplesSplit,
		minSamplesLeaf:      dt.minSamplesLeaf,
		minImpurityDecrease: dt.minImpurityDecrease,
	}
	nodes := b.build()
	nLeaves := countLeaves(nodes)
	if dt.ccpAlpha > 0 {
		nodes = prune(nodes, dt.ccpAlpha, rows)
	}

	dt.nodes = nodes
	dt.classes_ = classes
	dt.nClasses_ = len(classes)
	dt.nFeatures_ = cols
	dt.nSamples_ = rows
	dt.nLeavesBeforePruning = nLeaves
	dt.featureImportances_ = featureImportances(nodes, cols)
	dt.state.SetDimensions(cols, rows)
	dt.state.SetFitted()
	return nil
}

func (dt *DecisionTreeClassifier) resolveKinds(cols int) ([]FeatureKind, error) {
	if len(dt.featureKinds) == 0 {
		return make([]FeatureKind, cols), nil
	}
	if len(dt.featureKinds) != cols {
		return nil, errors.NewDimensionError("DecisionTreeClassifier.Fit", len(dt.featureKinds), cols, 1)
	}
	return append([]FeatureKind(nil), dt.featureKinds...), nil
}

func checkNominal(name string, col []float64) error {
	for _, v := range col {
		if v < 0 || v != math.Trunc(v) {
			return errors.NewValidationError(name, "nominal values must be non-negative level indices", v)
		}
		if v >= maxNominalLevels {
			return errors.NewValidationError(name,
				fmt.Sprintf("nominal features support at most %d levels", maxNominalLevels), v)
		}
	}
	return nil
}

// encodeTarget はクラスラベルを昇順に並べ、各サンプルのクラス番号を返す
func encodeTarget(y mat.Matrix, rows int) ([]float64, []int) {
	seen := make(map[float64]struct{})
	for i := 0; i < rows; i++ {
		seen[y.At(i, 0)] = struct{}{}
	}
	classes := make([]float64, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Float64s(classes)

	index := make(map[float64]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	target := make([]int, rows)
	for i := 0; i < rows; i++ {
		target[i] = index[y.At(i, 0)]
	}
	return classes, target
}

func countLeaves(nodes []Node) int {
	n := 0
	for _, node := range nodes {
		if node.IsLeaf() {
			n++
		}
	}
	return n
}

// featureImportances は各特徴量による不純度減少量の合計を正規化して返す
func featureImportances(nodes []Node, nFeatures int) []float64 {
	imp := make([]float64, nFeatures)
	for _, node := range nodes {
		if node.IsLeaf() {
			continue
		}
		l, r := nodes[node.Left], nodes[node.Right]
		imp[node.Feature] += float64(node.NSamples)*node.Impurity -
			float64(l.NSamples)*l.Impurity - float64(r.NSamples)*r.Impurity
	}
	total := 0.0
	for _, v := range imp {
		total += v
	}
	if total > 0 {
		for i := range imp {
			imp[i] /= total
		}
	}
	return imp
}

func (dt *DecisionTreeClassifier) featureName(j int) string {
	if j < len(dt.featureNames) {
		return dt.featureNames[j]
	}
	return fmt.Sprintf("x%d", j)
}

// IsFitted は学習済みかどうかを返す
func (dt *DecisionTreeClassifier) IsFitted() bool {
	return dt.state.IsFitted()
}

// Classes は学習時に観測したクラスラベルを昇順で返す
func (dt *DecisionTreeClassifier) Classes() []float64 {
	return append([]float64(nil), dt.classes_...)
}

// NFeatures は学習時の特徴量数を返す
func (dt *DecisionTreeClassifier) NFeatures() int {
	return dt.nFeatures_
}

// Nodes はノード配列のコピーを返す。インデックス0が根
func (dt *DecisionTreeClassifier) Nodes() []Node {
	out := make([]Node, len(dt.nodes))
	for i, n := range dt.nodes {
		out[i] = n.clone()
	}
	return out
}

// GetDepth は根を深さ0としたときの最大の深さを返す
func (dt *DecisionTreeClassifier) GetDepth() int {
	depth := 0
	for _, n := range dt.nodes {
		if n.Depth > depth {
			depth = n.Depth
		}
	}
	return depth
}

// GetNLeaves は葉の数を返す
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	return countLeaves(dt.nodes)
}

// NLeavesBeforePruning は枝刈り前の葉の数を返す
func (dt *DecisionTreeClassifier) NLeavesBeforePruning() int {
	return dt.nLeavesBeforePruning
}

// GetFeatureImportances は正規化された特徴量重要度を返す
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetParams はハイパーパラメータを返す
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":             dt.criterion,
		"max_depth":             dt.maxDepth,
		"min_samples_split":     dt.minSamplesSplit,
		"min_samples_leaf":      dt.minSamplesLeaf,
		"min_impurity_decrease": dt.minImpurityDecrease,
		"ccp_alpha":             dt.ccpAlpha,
	}
}

// SetParams はハイパーパラメータを設定する。未知のキーや型違いは ValidationError
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			dt.criterion = v
		case "max_depth", "min_samples_split", "min_samples_leaf":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be an int", value)
			}
			switch key {
			case "max_depth":
				dt.maxDepth = v
			case "min_samples_split":
				dt.minSamplesSplit = v
			default:
				dt.minSamplesLeaf = v
			}
		case "min_impurity_decrease", "ccp_alpha":
			var v float64
			switch x := value.(type) {
			case float64:
				v = x
			case int:
				v = float64(x)
			default:
				return errors.NewValidationError(key, "must be a number", value)
			}
			if key == "ccp_alpha" {
				dt.ccpAlpha = v
			} else {
				dt.minImpurityDecrease = v
			}
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return dt.validate()
}
