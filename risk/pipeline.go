// Package risk trains the diabetes-risk model and answers prediction and
// evaluation requests against it.
//
// Train runs once at startup and returns an Artifact. The artifact is never
// mutated afterwards, so PredictionService and EvaluationService can be used
// from any number of goroutines without locking.
package risk

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diabetes-risk/dataset"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
	"github.com/YuminosukeSato/diabetes-risk/pkg/log"
	"github.com/YuminosukeSato/diabetes-risk/preprocessing"
	"github.com/YuminosukeSato/diabetes-risk/sklearn/tree"
)

// Artifact is the immutable result of training. Its encoder and tree are
// reachable only through copying accessors.
type Artifact struct {
	encoder  *preprocessing.FeatureEncoder
	model    *tree.DecisionTreeClassifier
	defaults DefaultValues
	hyper    Hyperparameters

	features []string
	training []dataset.HealthRecord
	dropped  int
}

// Nodes returns a copy of the fitted tree's arena.
func (a *Artifact) Nodes() []tree.Node { return a.model.Nodes() }

// Depth is the depth of the fitted tree.
func (a *Artifact) Depth() int { return a.model.GetDepth() }

// Leaves is the number of leaves after pruning.
func (a *Artifact) Leaves() int { return a.model.GetNLeaves() }

// Levels returns a copy of the frozen level set of a categorical field.
func (a *Artifact) Levels(field string) []int { return a.encoder.Levels(field) }

// NumericStats returns the encoder's mean and standard deviation for field.
func (a *Artifact) NumericStats(field string) (mean, stddev float64, ok bool) {
	return a.encoder.NumericStats(field)
}

// Defaults returns the request defaults derived from the training data.
func (a *Artifact) Defaults() DefaultValues { return a.defaults }

// Hyperparameters returns the settings the tree was trained with.
func (a *Artifact) Hyperparameters() Hyperparameters { return a.hyper }

// FeatureNames returns the tree's column order.
func (a *Artifact) FeatureNames() []string { return append([]string(nil), a.features...) }

// TrainingSize is the number of complete records the tree was fitted on.
func (a *Artifact) TrainingSize() int { return len(a.training) }

// Dropped is the number of records excluded for missing values.
func (a *Artifact) Dropped() int { return a.dropped }

// ModelSummary describes the trained model for the info endpoint.
type ModelSummary struct {
	Hyperparameters     Hyperparameters        `json:"hyperparameters"`
	Features            []string               `json:"features"`
	Depth               int                    `json:"depth"`
	Leaves              int                    `json:"leaves"`
	LeavesBeforePruning int                    `json:"leaves_before_pruning"`
	TrainingRows        int                    `json:"training_rows"`
	DroppedRows         int                    `json:"dropped_rows"`
	FeatureImportances  map[string]float64     `json:"feature_importances"`
	Encoder             map[string]interface{} `json:"encoder"`
	Defaults            DefaultValues          `json:"defaults"`
}

// Summary returns a description of the trained model.
func (a *Artifact) Summary() ModelSummary {
	importances := make(map[string]float64, len(a.features))
	for i, v := range a.model.GetFeatureImportances() {
		importances[a.features[i]] = v
	}
	return ModelSummary{
		Hyperparameters:     a.hyper,
		Features:            a.FeatureNames(),
		Depth:               a.model.GetDepth(),
		Leaves:              a.model.GetNLeaves(),
		LeavesBeforePruning: a.model.NLeavesBeforePruning(),
		TrainingRows:        len(a.training),
		DroppedRows:         a.dropped,
		FeatureImportances:  importances,
		Encoder:             a.encoder.Summary(),
		Defaults:            a.defaults,
	}
}

// Train fits the encoder on every record, drops records with a missing
// predictor or label, and fits the tree on the rest.
//
// Any error means no model may be served.
func Train(records []dataset.HealthRecord, hp Hyperparameters, logger log.Logger) (a *Artifact, err error) {
	defer errors.Recover(&err, "risk.Train")

	if err := hp.Validate(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.NewModelError("risk.Train", "empty data", errors.ErrEmptyData)
	}

	logger = logger.With(log.ComponentKey, "risk", log.PhaseKey, log.PhaseTraining)
	start := time.Now()
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, len(records),
		log.FeaturesKey, len(dataset.Schema),
		log.HyperParamsKey, hp,
	)

	encoder := newEncoder()
	obs := make([]preprocessing.Observation, len(records))
	for i := range records {
		obs[i] = records[i]
	}
	if err := encoder.Fit(obs); err != nil {
		return nil, errors.Wrap(err, "fit feature encoder")
	}
	logger.Debug("Feature encoder fitted", log.ModelNameKey, "FeatureEncoder")

	defaults, err := ResolveDefaults(records)
	if err != nil {
		return nil, err
	}

	complete := make([]dataset.HealthRecord, 0, len(records))
	for _, r := range records {
		if r.Complete() {
			complete = append(complete, r)
		}
	}
	dropped := len(records) - len(complete)
	if dropped > 0 {
		logger.Warn("Dropped records with missing values",
			log.DroppedKey, dropped,
			log.SamplesKey, len(complete),
		)
	}
	if len(complete) == 0 {
		return nil, errors.NewInsufficientDataError("records", "no complete records after dropping missing values")
	}

	features := encoder.FeatureNames()
	X := mat.NewDense(len(complete), len(features), nil)
	y := mat.NewDense(len(complete), 1, nil)
	for i, r := range complete {
		encoded, err := encoder.Transform(r)
		if err != nil {
			return nil, errors.Wrapf(err, "encode training record %d", i)
		}
		X.SetRow(i, encodedRow(encoded, features))
		y.Set(i, 0, float64(r.Label))
	}

	opts := append(hp.treeOptions(),
		tree.WithFeatureKinds(featureKinds(features)...),
		tree.WithFeatureNames(features...),
	)
	model := tree.NewDecisionTreeClassifier(opts...)
	if err := model.Fit(X, y); err != nil {
		return nil, errors.Wrap(err, "fit decision tree")
	}

	logger.Info("Training completed",
		log.ModelNameKey, "DecisionTreeClassifier",
		log.SamplesKey, len(complete),
		log.TreeDepthKey, model.GetDepth(),
		log.TreeLeavesKey, model.GetNLeaves(),
		log.TreePrunedKey, model.NLeavesBeforePruning()-model.GetNLeaves(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	return &Artifact{
		encoder:  encoder,
		model:    model,
		defaults: defaults,
		hyper:    hp,
		features: features,
		training: complete,
		dropped:  dropped,
	}, nil
}

func newEncoder() *preprocessing.FeatureEncoder {
	var categorical []preprocessing.CategoricalField
	for _, f := range dataset.Schema {
		if f.Kind != dataset.Numeric {
			categorical = append(categorical, preprocessing.CategoricalField{
				Name:    f.Name,
				Ordinal: f.Kind == dataset.Ordinal,
			})
		}
	}
	return preprocessing.NewFeatureEncoder(dataset.NumericFields(), categorical)
}

// featureKinds maps schema kinds onto split kinds in encoder column order.
// Binary indicators are unordered, gen_hlth keeps its ranking.
func featureKinds(features []string) []tree.FeatureKind {
	kinds := make([]tree.FeatureKind, len(features))
	for i, name := range features {
		for _, f := range dataset.Schema {
			if f.Name != name {
				continue
			}
			switch f.Kind {
			case dataset.Binary:
				kinds[i] = tree.Nominal
			case dataset.Ordinal:
				kinds[i] = tree.Ordinal
			default:
				kinds[i] = tree.Continuous
			}
		}
	}
	return kinds
}

// encodedRow lays an encoded record out in column order. Absent features
// become NaN so that the tree reports them only if a split needs them.
func encodedRow(r preprocessing.EncodedRecord, features []string) []float64 {
	row := make([]float64, len(features))
	for i, name := range features {
		v, ok := r.Feature(name)
		if !ok {
			v = math.NaN()
		}
		row[i] = v
	}
	return row
}
