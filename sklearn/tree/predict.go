package tree

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diabetes-risk/core/parallel"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// parallelThreshold 以下の行数では逐次に予測する
const parallelThreshold = 512

// Apply は1サンプルを根から辿り、到達した葉のインデックスを返す
//
// 辿った経路上の分割特徴量が NaN の場合は FeatureMissingError を返す。
// 経路に現れない特徴量の欠損は問題にならない。
func (dt *DecisionTreeClassifier) Apply(x []float64) (int, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "Apply"); err != nil {
		return 0, err
	}
	if len(x) < dt.nFeatures_ {
		return 0, errors.NewDimensionError("DecisionTreeClassifier.Apply", dt.nFeatures_, len(x), 1)
	}

	i := 0
	for !dt.nodes[i].IsLeaf() {
		node := dt.nodes[i]
		v := x[node.Feature]
		if math.IsNaN(v) {
			return 0, errors.NewFeatureMissingError(dt.featureName(node.Feature), "inference")
		}
		if node.GoesLeft(v) {
			i = node.Left
		} else {
			i = node.Right
		}
	}
	return i, nil
}

// Leaf は葉のインデックスからクラス分布と予測クラス (Classes の値) を返す
func (dt *DecisionTreeClassifier) Leaf(i int) (proba []float64, class float64) {
	node := dt.nodes[i]
	return append([]float64(nil), node.Value...), dt.classes_[floats.MaxIdx(node.Value)]
}

// PredictOne は1サンプルのクラスと各クラスの確率を返す
func (dt *DecisionTreeClassifier) PredictOne(x []float64) (float64, []float64, error) {
	leaf, err := dt.Apply(x)
	if err != nil {
		return 0, nil, err
	}
	proba, class := dt.Leaf(leaf)
	return class, proba, nil
}

// applyAll は全行の到達葉を求める。行数が多い場合は並列に処理する
func (dt *DecisionTreeClassifier) applyAll(X mat.Matrix, method string) ([]int, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if cols != dt.nFeatures_ {
		return nil, errors.NewDimensionError("DecisionTreeClassifier."+method, dt.nFeatures_, cols, 1)
	}

	leaves := make([]int, rows)
	err := parallel.ParallelizeErr(rows, parallelThreshold, func(start, end int) error {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			leaf, err := dt.Apply(row)
			if err != nil {
				return errors.Wrapf(err, "row %d", i)
			}
			leaves[i] = leaf
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return leaves, nil
}

// Predict は各行の予測クラスを (rows, 1) の行列で返す
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	leaves, err := dt.applyAll(X, "Predict")
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(leaves), 1, nil)
	for i, leaf := range leaves {
		_, class := dt.Leaf(leaf)
		out.Set(i, 0, class)
	}
	return out, nil
}

// PredictProba は各行のクラス確率を (rows, nClasses) の行列で返す。列は Classes の順
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	leaves, err := dt.applyAll(X, "PredictProba")
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(leaves), dt.nClasses_, nil)
	for i, leaf := range leaves {
		out.SetRow(i, dt.nodes[leaf].Value)
	}
	return out, nil
}

// Score は正解率を返す。予測に失敗した場合は 0
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := pred.Dims()
	if rows == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}
