package risk

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diabetes-risk/core/parallel"
	"github.com/YuminosukeSato/diabetes-risk/dataset"
	"github.com/YuminosukeSato/diabetes-risk/metrics"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// evalThreshold is the record count above which re-prediction is parallel.
const evalThreshold = 256

// Evaluation summarizes in-sample performance on the positive class Diabetes.
type Evaluation struct {
	Matrix    *metrics.ConfusionMatrix `json:"confusion_matrix"`
	Total     int                      `json:"total"`
	Accuracy  float64                  `json:"accuracy"`
	Precision float64                  `json:"precision"`
	Recall    float64                  `json:"recall"`
	F1        float64                  `json:"f1"`
}

// EvaluationService re-predicts the training records. The matrix is built
// fresh on every call.
type EvaluationService struct {
	artifact  *Artifact
	predictor *PredictionService
}

// NewEvaluationService creates a service over a trained artifact.
func NewEvaluationService(a *Artifact) *EvaluationService {
	return &EvaluationService{artifact: a, predictor: NewPredictionService(a)}
}

// ConfusionMatrix cross-tabulates true against predicted labels over every
// training record. Rows and columns are ordered NoDiabetes, Diabetes.
func (s *EvaluationService) ConfusionMatrix() (*metrics.ConfusionMatrix, error) {
	records := s.artifact.training
	n := len(records)
	yTrue := mat.NewVecDense(n, nil)
	yPred := mat.NewVecDense(n, nil)

	err := parallel.ParallelizeErr(n, evalThreshold, func(start, end int) error {
		for i := start; i < end; i++ {
			result, err := s.predictor.predict(records[i])
			if err != nil {
				return errors.Wrapf(err, "re-predict training record %d", i)
			}
			yTrue.SetVec(i, float64(records[i].Label))
			yPred.SetVec(i, float64(result.Prediction))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return metrics.NewConfusionMatrix(yTrue, yPred,
		[]float64{float64(dataset.NoDiabetes), float64(dataset.Diabetes)})
}

// Evaluate returns the confusion matrix with the metrics derived from it.
func (s *EvaluationService) Evaluate() (Evaluation, error) {
	cm, err := s.ConfusionMatrix()
	if err != nil {
		return Evaluation{}, err
	}
	positive := float64(dataset.Diabetes)
	return Evaluation{
		Matrix:    cm,
		Total:     cm.Total(),
		Accuracy:  cm.Accuracy(),
		Precision: cm.Precision(positive),
		Recall:    cm.Recall(positive),
		F1:        cm.F1(positive),
	}, nil
}
