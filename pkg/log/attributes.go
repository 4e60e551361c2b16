// Package log defines standard attribute keys for training and serving.
//
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so log output can be filtered consistently.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of machine learning model.
	// Examples: "DecisionTreeClassifier", "FeatureEncoder"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "evaluate"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// DroppedKey counts rows discarded before fitting.
	DroppedKey = "data.dropped"

	// DataPathKey is the dataset file the pipeline was trained from.
	DataPathKey = "data.path"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records model accuracy for evaluation operations.
	AccuracyKey = "metrics.accuracy"
)

// Tree structure
const (
	TreeDepthKey  = "tree.depth"
	TreeLeavesKey = "tree.leaves"
	TreePrunedKey = "tree.pruned"
)

// Prediction and Output Context
const (
	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"

	// ConfidenceKey records the positive-class probability of a prediction.
	ConfidenceKey = "preds.confidence"
)

// HTTP request context
const (
	HTTPMethodKey = "http.method"
	HTTPPathKey   = "http.path"
	HTTPStatusKey = "http.status"
	HTTPRemoteKey = "http.remote"
)

// Error Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	// Examples: "UnknownCategoryError", "MalformedInputError"
	ErrorTypeKey = "error.type"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"
)

// Standard attribute value constants.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationEvaluate  = "evaluate"

	PhaseTraining      = "training"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
