package risk

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/YuminosukeSato/diabetes-risk/dataset"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
	"github.com/YuminosukeSato/diabetes-risk/pkg/log"
	"github.com/YuminosukeSato/diabetes-risk/sklearn/tree"
)

// fixtureRecords は全水準を含む決定的な学習データ
func fixtureRecords() []dataset.HealthRecord {
	records := make([]dataset.HealthRecord, 0, 60)
	for i := 0; i < 60; i++ {
		r := dataset.HealthRecord{
			BMI:          18 + float64((i*7)%25),
			HighBP:       i % 2,
			HighChol:     (i / 2) % 2,
			PhysActivity: (i / 3) % 2,
			GenHlth:      1 + i%5,
			Label:        dataset.NoDiabetes,
		}
		if (r.BMI > 30 && r.HighBP == 1) || (r.GenHlth >= 4 && i%3 != 0) {
			r.Label = dataset.Diabetes
		}
		records = append(records, r)
	}
	return records
}

func testHyperparameters() Hyperparameters {
	hp := DefaultHyperparameters()
	hp.MaxDepth = 3
	return hp
}

func trainFixture(t *testing.T) *Artifact {
	t.Helper()
	logger, _ := log.NewTestLogger(log.LevelDebug)
	a, err := Train(fixtureRecords(), testHyperparameters(), logger)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	return a
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestTrain(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	a, err := Train(fixtureRecords(), testHyperparameters(), logger)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	if a.TrainingSize() != 60 || a.Dropped() != 0 {
		t.Errorf("training size %d dropped %d", a.TrainingSize(), a.Dropped())
	}
	if depth := a.Depth(); depth > 3 {
		t.Errorf("depth %d exceeds max_depth 3", depth)
	}
	if got := a.Levels(dataset.FieldGenHlth); len(got) != 5 || got[0] != 1 || got[4] != 5 {
		t.Errorf("gen_hlth levels = %v", got)
	}
	if got := a.Levels(dataset.FieldHighBP); len(got) != 2 {
		t.Errorf("high_bp levels = %v", got)
	}
	if !logger.ContainsMessage("Training completed") {
		t.Error("expected a training completion log entry")
	}

	summary := a.Summary()
	if summary.TrainingRows != 60 || len(summary.Features) != 5 {
		t.Errorf("unexpected summary %+v", summary)
	}
	sum := 0.0
	for _, v := range summary.FeatureImportances {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("feature importances sum to %v", sum)
	}
}

func TestTrain_Deterministic(t *testing.T) {
	first, err := json.Marshal(trainFixture(t).Nodes())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, _ := json.Marshal(trainFixture(t).Nodes())
		if !bytes.Equal(first, again) {
			t.Fatal("training is not deterministic")
		}
	}
}

func TestTrain_DropsIncompleteRecords(t *testing.T) {
	records := fixtureRecords()
	records[0].SetMissing(dataset.FieldBMI)
	records[1].SetMissing(dataset.FieldGenHlth)
	records[2].Label = dataset.LabelUnknown

	logger, _ := log.NewTestLogger(log.LevelDebug)
	a, err := Train(records, testHyperparameters(), logger)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if a.TrainingSize() != 57 || a.Dropped() != 3 {
		t.Errorf("training size %d dropped %d, want 57 and 3", a.TrainingSize(), a.Dropped())
	}
	if !logger.ContainsField(log.DroppedKey, float64(3)) {
		t.Errorf("expected a warning with %s=3, got %s", log.DroppedKey, logger.String())
	}

	cm, err := NewEvaluationService(a).ConfusionMatrix()
	if err != nil {
		t.Fatalf("ConfusionMatrix failed: %v", err)
	}
	if cm.Total() != 57 {
		t.Errorf("confusion matrix total %d, want 57", cm.Total())
	}
}

func TestTrain_Errors(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)

	t.Run("all bmi missing", func(t *testing.T) {
		records := fixtureRecords()
		for i := range records {
			records[i].SetMissing(dataset.FieldBMI)
		}
		_, err := Train(records, testHyperparameters(), logger)
		var ie *errors.InsufficientDataError
		if !errors.As(err, &ie) || ie.Field != dataset.FieldBMI {
			t.Fatalf("expected InsufficientDataError for bmi, got %v", err)
		}
	})

	t.Run("no complete record", func(t *testing.T) {
		records := fixtureRecords()
		for i := range records {
			records[i].Label = dataset.LabelUnknown
		}
		_, err := Train(records, testHyperparameters(), logger)
		var ie *errors.InsufficientDataError
		if !errors.As(err, &ie) {
			t.Fatalf("expected InsufficientDataError, got %v", err)
		}
	})

	t.Run("invalid hyperparameters", func(t *testing.T) {
		hp := testHyperparameters()
		hp.MinN = 1
		_, err := Train(fixtureRecords(), hp, logger)
		var ve *errors.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestResolveDefaults(t *testing.T) {
	records := []dataset.HealthRecord{
		{BMI: 20, HighBP: 1, HighChol: 0, PhysActivity: 1, GenHlth: 3},
		{BMI: 30, HighBP: 1, HighChol: 1, PhysActivity: 0, GenHlth: 2},
		{BMI: 0, HighBP: 0, HighChol: 1, PhysActivity: 1, GenHlth: 2},
		{BMI: 40, HighBP: 0, HighChol: 0, PhysActivity: 0, GenHlth: 3},
	}
	records[2].SetMissing(dataset.FieldBMI)

	d, err := ResolveDefaults(records)
	if err != nil {
		t.Fatalf("ResolveDefaults failed: %v", err)
	}
	if d.Numeric[dataset.FieldBMI] != 30 {
		t.Errorf("bmi default = %v, want 30", d.Numeric[dataset.FieldBMI])
	}
	// すべて2対2の同数なので小さい水準が選ばれる
	want := map[string]int{
		dataset.FieldHighBP:       0,
		dataset.FieldHighChol:     0,
		dataset.FieldPhysActivity: 0,
		dataset.FieldGenHlth:      2,
	}
	for field, v := range want {
		if d.Categorical[field] != v {
			t.Errorf("%s default = %d, want %d", field, d.Categorical[field], v)
		}
	}

	filled := d.Fill(dataset.PartialRecord{HighBP: intPtr(1)})
	if *filled.HighBP != 1 || *filled.BMI != 30 || *filled.GenHlth != 2 {
		t.Errorf("Fill must keep supplied values and default the rest: %+v", resolvedInput(filled))
	}
}

// referenceTraversal は学習済みのノード配列を独立に辿り、生の入力から葉を求める
func referenceTraversal(t *testing.T, a *Artifact, in ResolvedInput) tree.Node {
	t.Helper()
	mean, sd, ok := a.NumericStats(dataset.FieldBMI)
	if !ok {
		t.Fatal("bmi is not fitted")
	}
	levelIndex := func(field string, v int) float64 {
		for i, l := range a.Levels(field) {
			if l == v {
				return float64(i)
			}
		}
		t.Fatalf("%s=%d is not a fitted level", field, v)
		return 0
	}
	values := map[string]float64{
		dataset.FieldBMI:          (in.BMI - mean) / sd,
		dataset.FieldHighBP:       levelIndex(dataset.FieldHighBP, in.HighBP),
		dataset.FieldHighChol:     levelIndex(dataset.FieldHighChol, in.HighChol),
		dataset.FieldPhysActivity: levelIndex(dataset.FieldPhysActivity, in.PhysActivity),
		dataset.FieldGenHlth:      levelIndex(dataset.FieldGenHlth, in.GenHlth),
	}

	features := a.FeatureNames()
	nodes := a.Nodes()
	node := nodes[0]
	for node.Left >= 0 {
		x := values[features[node.Feature]]
		var left bool
		if node.Kind == tree.Nominal {
			left = node.LeftSet&(1<<uint(x)) != 0
		} else {
			left = x <= node.Threshold
		}
		if left {
			node = nodes[node.Left]
		} else {
			node = nodes[node.Right]
		}
	}
	return node
}

func TestPredictOne_ReferenceTraversal(t *testing.T) {
	a := trainFixture(t)
	svc := NewPredictionService(a)

	req := dataset.PartialRecord{
		BMI:          floatPtr(30),
		HighBP:       intPtr(1),
		HighChol:     intPtr(1),
		PhysActivity: intPtr(0),
		GenHlth:      intPtr(4),
	}
	got, err := svc.PredictOne(req)
	if err != nil {
		t.Fatalf("PredictOne failed: %v", err)
	}
	if got.Prediction != dataset.NoDiabetes && got.Prediction != dataset.Diabetes {
		t.Fatalf("prediction %v is not a label", got.Prediction)
	}

	leaf := referenceTraversal(t, a, got.Resolved)
	if math.Abs(leaf.Value[1]-got.ProbDiabetes) > 1e-12 {
		t.Errorf("prob_Diabetes = %v, reference leaf has %v", got.ProbDiabetes, leaf.Value[1])
	}
	wantLabel := dataset.NoDiabetes
	if leaf.Value[1] > leaf.Value[0] {
		wantLabel = dataset.Diabetes
	}
	if got.Prediction != wantLabel {
		t.Errorf("prediction = %v, reference leaf gives %v", got.Prediction, wantLabel)
	}
	if got.Input.Levels[dataset.FieldGenHlth] != 3 {
		t.Errorf("encoded gen_hlth = %d, want index 3", got.Input.Levels[dataset.FieldGenHlth])
	}
}

func TestPredictOne_DefaultStability(t *testing.T) {
	a := trainFixture(t)
	svc := NewPredictionService(a)

	empty, err := svc.PredictOne(dataset.PartialRecord{})
	if err != nil {
		t.Fatalf("PredictOne failed: %v", err)
	}
	explicit, err := svc.PredictOne(a.Defaults().Record())
	if err != nil {
		t.Fatalf("PredictOne failed: %v", err)
	}

	a1, _ := json.Marshal(empty)
	a2, _ := json.Marshal(explicit)
	if !bytes.Equal(a1, a2) {
		t.Errorf("defaults are not stable:\n%s\n%s", a1, a2)
	}
	if math.Abs(empty.Input.Numeric[dataset.FieldBMI]) > 1e-9 {
		t.Errorf("default bmi should standardize to 0, got %v", empty.Input.Numeric[dataset.FieldBMI])
	}
}

func TestPredictOne_UnknownCategory(t *testing.T) {
	svc := NewPredictionService(trainFixture(t))

	_, err := svc.PredictOne(dataset.PartialRecord{GenHlth: intPtr(9)})
	var uc *errors.UnknownCategoryError
	if !errors.As(err, &uc) {
		t.Fatalf("expected UnknownCategoryError, got %v", err)
	}
	if uc.Field != dataset.FieldGenHlth || uc.Value != 9 {
		t.Errorf("unexpected error fields %+v", uc)
	}

	_, err = svc.PredictOne(dataset.PartialRecord{HighBP: intPtr(2)})
	if !errors.As(err, &uc) {
		t.Fatalf("expected UnknownCategoryError for high_bp=2, got %v", err)
	}
}

func TestPredictOne_ProbabilityValidity(t *testing.T) {
	svc := NewPredictionService(trainFixture(t))

	for bmi := 12.0; bmi <= 60; bmi += 4 {
		for bp := 0; bp <= 1; bp++ {
			for gh := 1; gh <= 5; gh++ {
				res, err := svc.PredictOne(dataset.PartialRecord{
					BMI: floatPtr(bmi), HighBP: intPtr(bp), GenHlth: intPtr(gh),
				})
				if err != nil {
					t.Fatalf("PredictOne failed: %v", err)
				}
				if res.ProbDiabetes < 0 || res.ProbDiabetes > 1 {
					t.Fatalf("prob_Diabetes %v out of range", res.ProbDiabetes)
				}
				// 同率の場合は NoDiabetes
				want := dataset.NoDiabetes
				if res.ProbDiabetes > 0.5 {
					want = dataset.Diabetes
				}
				if res.Prediction != want {
					t.Errorf("bmi=%v high_bp=%d gen_hlth=%d: prediction %v with p=%v",
						bmi, bp, gh, res.Prediction, res.ProbDiabetes)
				}
			}
		}
	}
}

func TestEvaluation_Conservation(t *testing.T) {
	for _, hp := range []Hyperparameters{
		testHyperparameters(),
		{MinN: 2, MaxDepth: 1, Criterion: "gini"},
		{MinN: 10, MaxDepth: 30, CostComplexity: 0.05, Criterion: "entropy"},
	} {
		logger, _ := log.NewTestLogger(log.LevelWarn)
		a, err := Train(fixtureRecords(), hp, logger)
		if err != nil {
			t.Fatalf("Train failed: %v", err)
		}
		eval, err := NewEvaluationService(a).Evaluate()
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if eval.Total != a.TrainingSize() || eval.Matrix.Total() != 60 {
			t.Errorf("%+v: total %d, want %d", hp, eval.Total, a.TrainingSize())
		}
		if len(eval.Matrix.Counts) != 2 || len(eval.Matrix.Counts[0]) != 2 {
			t.Errorf("matrix must be 2x2, got %v", eval.Matrix.Counts)
		}
		if eval.Accuracy < 0 || eval.Accuracy > 1 {
			t.Errorf("accuracy %v out of range", eval.Accuracy)
		}
	}
}

// 公開されるビューを書き換えても学習済みモデルと予測結果は変わらない
func TestArtifact_ViewsAreCopies(t *testing.T) {
	a := trainFixture(t)
	svc := NewPredictionService(a)
	req := dataset.PartialRecord{}

	before, err := svc.PredictOne(req)
	if err != nil {
		t.Fatalf("PredictOne failed: %v", err)
	}
	leaves := a.Leaves()

	nodes := a.Nodes()
	for i := range nodes {
		nodes[i].Left, nodes[i].Right = -1, -1
		nodes[i].Value = nodes[i].Value[:0]
		for j := range nodes[i].Counts {
			nodes[i].Counts[j] = 0
		}
	}
	levels := a.Levels(dataset.FieldGenHlth)
	levels[0] = 99

	after, err := svc.PredictOne(req)
	if err != nil {
		t.Fatalf("PredictOne after mutating views failed: %v", err)
	}
	b1, _ := json.Marshal(before)
	b2, _ := json.Marshal(after)
	if !bytes.Equal(b1, b2) {
		t.Errorf("prediction changed:\n%s\n%s", b1, b2)
	}
	if a.Leaves() != leaves {
		t.Errorf("leaves = %d, want %d", a.Leaves(), leaves)
	}
	if got := a.Levels(dataset.FieldGenHlth); got[0] != 1 {
		t.Errorf("gen_hlth levels = %v, want to start at 1", got)
	}
	if a.Nodes()[0].IsLeaf() != (leaves == 1) {
		t.Error("root node was modified through the returned slice")
	}
}
