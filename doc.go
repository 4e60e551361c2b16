// Package diabrisk is a small decision-tree service that estimates diabetes
// risk from five health indicators.
//
// At startup the service reads a CSV of labelled health records, fits a
// feature encoder (z-scored BMI and indexed categorical levels), resolves
// default values for every input, trains a classification tree with
// cost-complexity pruning, and then answers risk queries over HTTP.
//
// # Quick Start
//
//	go run ./cmd/diabetesd serve --data data/diabetes.csv --port 8080
//
//	curl 'localhost:8080/pred?bmi=30&high_bp=1&gen_hlth=4'
//	curl 'localhost:8080/confusion' -o confusion.png
//
// Parameters omitted from /pred are filled with training defaults (mean BMI,
// most frequent level for categorical inputs).
//
// # Packages
//
//   - dataset: health records and CSV ingestion
//   - preprocessing: StandardScaler and the fitted FeatureEncoder
//   - sklearn/tree: DecisionTreeClassifier with nominal, ordinal and continuous splits
//   - metrics: confusion matrix and classification metrics
//   - risk: training pipeline, defaults resolver, prediction and evaluation services
//   - plotting: confusion-matrix heatmap rendering
//   - server: echo HTTP surface with Prometheus metrics
//   - config: YAML and environment configuration
//   - core/model, core/parallel: estimator state and chunked parallel loops
//   - pkg/errors, pkg/log: structured errors and zerolog-backed logging
//
// # Library use
//
//	records, err := dataset.LoadCSV("data/diabetes.csv")
//	if err != nil {
//	    panic(err)
//	}
//	artifact, err := risk.Train(records, risk.DefaultHyperparameters(), log.GetLogger())
//	if err != nil {
//	    panic(err)
//	}
//	res, err := risk.NewPredictionService(artifact).PredictOne(dataset.PartialRecord{})
package diabrisk
