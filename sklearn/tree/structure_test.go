package tree

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// noisyData は完全には分離できない2特徴量のデータ
func noisyData() (*mat.Dense, *mat.Dense) {
	n := 40
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i%10))
		X.Set(i, 1, float64((i*7)%5))
		label := 0.0
		if i%10 >= 5 {
			label = 1
		}
		// 一部のラベルを反転させてノイズを入れる
		if i%7 == 0 {
			label = 1 - label
		}
		y.Set(i, 0, label)
	}
	return X, y
}

func TestDecisionTreeClassifier_Deterministic(t *testing.T) {
	X, y := noisyData()

	fit := func() []byte {
		dt := NewDecisionTreeClassifier(WithCCPAlpha(0.001))
		if err := dt.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		b, err := json.Marshal(dt.Nodes())
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		return b
	}

	first := fit()
	for i := 0; i < 5; i++ {
		if !bytes.Equal(first, fit()) {
			t.Fatal("repeated fits produced different trees")
		}
	}
}

func TestDecisionTreeClassifier_PartitionCompleteness(t *testing.T) {
	X, y := noisyData()
	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	nodes := dt.Nodes()
	if nodes[0].NSamples != 40 {
		t.Errorf("root holds %d samples, want 40", nodes[0].NSamples)
	}

	referenced := make([]int, len(nodes))
	for i, node := range nodes {
		if math.Abs(floats.Sum(node.Counts)-float64(node.NSamples)) > 1e-9 {
			t.Errorf("node %d: counts %v do not sum to %d", i, node.Counts, node.NSamples)
		}
		if math.Abs(floats.Sum(node.Value)-1) > 1e-9 {
			t.Errorf("node %d: distribution %v does not sum to 1", i, node.Value)
		}
		if node.IsLeaf() {
			continue
		}
		if node.Left <= i || node.Right <= i {
			t.Errorf("node %d: children (%d, %d) must follow their parent", i, node.Left, node.Right)
		}
		l, r := nodes[node.Left], nodes[node.Right]
		if l.NSamples+r.NSamples != node.NSamples {
			t.Errorf("node %d: %d + %d != %d", i, l.NSamples, r.NSamples, node.NSamples)
		}
		for c := range node.Counts {
			if l.Counts[c]+r.Counts[c] != node.Counts[c] {
				t.Errorf("node %d class %d: children counts do not add up", i, c)
			}
		}
		referenced[node.Left]++
		referenced[node.Right]++
	}
	for i := 1; i < len(nodes); i++ {
		if referenced[i] != 1 {
			t.Errorf("node %d referenced %d times", i, referenced[i])
		}
	}

	// 各サンプルはちょうど1つの葉に到達する
	perLeaf := make(map[int]int)
	row := make([]float64, 2)
	for i := 0; i < 40; i++ {
		mat.Row(row, i, X)
		leaf, err := dt.Apply(row)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if !nodes[leaf].IsLeaf() {
			t.Fatalf("Apply returned internal node %d", leaf)
		}
		perLeaf[leaf]++
	}
	for leaf, n := range perLeaf {
		if n != nodes[leaf].NSamples {
			t.Errorf("leaf %d: %d samples routed, %d recorded", leaf, n, nodes[leaf].NSamples)
		}
	}
}

func categoricalData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 1, []float64{0, 0, 1, 1, 2, 2})
	y := mat.NewDense(6, 1, []float64{1, 1, 0, 0, 1, 1})
	return X, y
}

func TestDecisionTreeClassifier_NominalSplit(t *testing.T) {
	X, y := categoricalData()
	dt := NewDecisionTreeClassifier(WithFeatureKinds(Nominal), WithMaxDepth(1))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	root := dt.Nodes()[0]
	if root.Kind != Nominal || root.LeftSet != 1<<1 {
		t.Errorf("root split = kind %v set %b, want nominal {1}", root.Kind, root.LeftSet)
	}
	if score := dt.Score(X, y); score != 1.0 {
		t.Errorf("nominal split should separate levels {0,2} from {1}, score %v", score)
	}
}

func TestDecisionTreeClassifier_OrdinalSplit(t *testing.T) {
	X, y := categoricalData()
	dt := NewDecisionTreeClassifier(WithFeatureKinds(Ordinal), WithMaxDepth(1))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	root := dt.Nodes()[0]
	// 0.5 と 1.5 は同点なので小さい閾値が選ばれる
	if root.Kind != Ordinal || root.Threshold != 0.5 {
		t.Errorf("root split = kind %v threshold %v, want ordinal 0.5", root.Kind, root.Threshold)
	}
	// 右の葉は2対2の同数で、クラス0が選ばれる
	if score := dt.Score(X, y); math.Abs(score-4.0/6.0) > 1e-12 {
		t.Errorf("score = %v, want 4/6", score)
	}

	deeper := NewDecisionTreeClassifier(WithFeatureKinds(Ordinal), WithMaxDepth(2))
	if err := deeper.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if score := deeper.Score(X, y); score != 1.0 {
		t.Errorf("depth 2 ordinal tree score = %v, want 1", score)
	}
}

// 同じ利得の分割が複数の特徴量にある場合は添字の小さい特徴量が選ばれる
func TestDecisionTreeClassifier_FeatureTieBreak(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0, 0,
		1, 1,
		2, 2,
		3, 3,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	tests := []struct {
		name      string
		kinds     []FeatureKind
		x         *mat.Dense
		threshold float64
		leftSet   uint64
	}{
		{"continuous", []FeatureKind{Continuous, Continuous}, X, 1.5, 0},
		{"ordinal", []FeatureKind{Ordinal, Ordinal}, X, 1.5, 0},
		{
			"nominal",
			[]FeatureKind{Nominal, Nominal},
			mat.NewDense(4, 2, []float64{0, 0, 0, 0, 1, 1, 1, 1}),
			0,
			1 << 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(WithFeatureKinds(tt.kinds...))
			if err := dt.Fit(tt.x, y); err != nil {
				t.Fatalf("Fit failed: %v", err)
			}
			root := dt.Nodes()[0]
			if root.Feature != 0 {
				t.Errorf("root feature = %d, want 0", root.Feature)
			}
			if root.Threshold != tt.threshold || root.LeftSet != tt.leftSet {
				t.Errorf("root split = threshold %v left set %b, want %v / %b",
					root.Threshold, root.LeftSet, tt.threshold, tt.leftSet)
			}
			if imp := dt.GetFeatureImportances(); imp[0] != 1 || imp[1] != 0 {
				t.Errorf("importances = %v, want [1 0]", imp)
			}
		})
	}
}

func TestDecisionTreeClassifier_NominalValidation(t *testing.T) {
	y := mat.NewDense(2, 1, []float64{0, 1})
	for _, bad := range []float64{1.5, -1, 16} {
		X := mat.NewDense(2, 1, []float64{0, bad})
		dt := NewDecisionTreeClassifier(WithFeatureKinds(Nominal))
		err := dt.Fit(X, y)
		var ve *errors.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("value %v: expected ValidationError, got %v", bad, err)
		}
	}
}

func TestDecisionTreeClassifier_Pruning(t *testing.T) {
	X, y := noisyData()

	full := NewDecisionTreeClassifier()
	if err := full.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	prevLeaves := full.GetNLeaves()
	for _, alpha := range []float64{0.001, 0.01, 0.03, 0.1} {
		dt := NewDecisionTreeClassifier(WithCCPAlpha(alpha))
		if err := dt.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		if dt.NLeavesBeforePruning() != full.GetNLeaves() {
			t.Errorf("alpha=%v: unpruned tree has %d leaves, want %d",
				alpha, dt.NLeavesBeforePruning(), full.GetNLeaves())
		}
		if dt.GetNLeaves() > prevLeaves {
			t.Errorf("alpha=%v: %d leaves, more than with a smaller alpha (%d)",
				alpha, dt.GetNLeaves(), prevLeaves)
		}
		prevLeaves = dt.GetNLeaves()

		// 残った内部ノードはすべて実効αが alpha より大きい
		nodes := dt.Nodes()
		leaves, risk := subtreeStats(nodes, 40)
		for i, node := range nodes {
			if node.IsLeaf() {
				continue
			}
			g := (nodeRisk(node, 40) - risk[i]) / float64(leaves[i]-1)
			if g <= alpha {
				t.Errorf("alpha=%v: node %d has effective alpha %v", alpha, i, g)
			}
		}
	}

	root := NewDecisionTreeClassifier(WithCCPAlpha(1))
	if err := root.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if root.GetNLeaves() != 1 || len(root.Nodes()) != 1 {
		t.Errorf("alpha=1 should collapse to the root, got %d nodes", len(root.Nodes()))
	}
	for _, imp := range root.GetFeatureImportances() {
		if imp != 0 {
			t.Errorf("single-leaf tree should have zero importances, got %v", root.GetFeatureImportances())
		}
	}
}

func subtreeStats(nodes []Node, nTotal int) ([]int, []float64) {
	leaves := make([]int, len(nodes))
	risk := make([]float64, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i].IsLeaf() {
			leaves[i] = 1
			risk[i] = nodeRisk(nodes[i], nTotal)
			continue
		}
		leaves[i] = leaves[nodes[i].Left] + leaves[nodes[i].Right]
		risk[i] = risk[nodes[i].Left] + risk[nodes[i].Right]
	}
	return leaves, risk
}

func TestDecisionTreeClassifier_Apply(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0, 5,
		1, 5,
		10, 5,
		11, 5,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	dt := NewDecisionTreeClassifier(WithFeatureNames("bmi", "age"))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	t.Run("unused feature may be missing", func(t *testing.T) {
		class, proba, err := dt.PredictOne([]float64{10.5, math.NaN()})
		if err != nil {
			t.Fatalf("PredictOne failed: %v", err)
		}
		if class != 1 || proba[1] != 1 {
			t.Errorf("got class %v proba %v", class, proba)
		}
	})

	t.Run("split feature missing", func(t *testing.T) {
		_, err := dt.Apply([]float64{math.NaN(), 5})
		var fm *errors.FeatureMissingError
		if !errors.As(err, &fm) {
			t.Fatalf("expected FeatureMissingError, got %v", err)
		}
		if fm.Feature != "bmi" || fm.Phase != "inference" {
			t.Errorf("unexpected error fields: %+v", fm)
		}
	})

	t.Run("short row", func(t *testing.T) {
		_, err := dt.Apply([]float64{1})
		var de *errors.DimensionError
		if !errors.As(err, &de) {
			t.Fatalf("expected DimensionError, got %v", err)
		}
	})

	t.Run("matrix with missing split feature", func(t *testing.T) {
		_, err := dt.Predict(mat.NewDense(1, 2, []float64{math.NaN(), 5}))
		var fm *errors.FeatureMissingError
		if !errors.As(err, &fm) {
			t.Fatalf("expected FeatureMissingError, got %v", err)
		}
	})
}

func TestDecisionTreeClassifier_FitErrors(t *testing.T) {
	y := mat.NewDense(2, 1, []float64{0, 1})

	t.Run("missing value", func(t *testing.T) {
		dt := NewDecisionTreeClassifier(WithFeatureNames("bmi"))
		err := dt.Fit(mat.NewDense(2, 1, []float64{1, math.NaN()}), y)
		var fm *errors.FeatureMissingError
		if !errors.As(err, &fm) || fm.Phase != "training" {
			t.Fatalf("expected training FeatureMissingError, got %v", err)
		}
	})

	t.Run("row mismatch", func(t *testing.T) {
		err := NewDecisionTreeClassifier().Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), y)
		var de *errors.DimensionError
		if !errors.As(err, &de) {
			t.Fatalf("expected DimensionError, got %v", err)
		}
	})

	t.Run("bad criterion", func(t *testing.T) {
		err := NewDecisionTreeClassifier(WithCriterion("mse")).Fit(mat.NewDense(2, 1, []float64{1, 2}), y)
		var ve *errors.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("unknown parameter", func(t *testing.T) {
		err := NewDecisionTreeClassifier().SetParams(map[string]interface{}{"n_estimators": 10})
		var ve *errors.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("mistyped parameter", func(t *testing.T) {
		err := NewDecisionTreeClassifier().SetParams(map[string]interface{}{"max_depth": "5"})
		var ve *errors.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestDecisionTreeClassifier_MinImpurityDecrease(t *testing.T) {
	X, y := noisyData()
	dt := NewDecisionTreeClassifier(WithMinImpurityDecrease(0.9))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if dt.GetNLeaves() != 1 {
		t.Errorf("no split reduces gini by 0.9, got %d leaves", dt.GetNLeaves())
	}
}
