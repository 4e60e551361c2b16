package risk

import (
	"github.com/YuminosukeSato/diabetes-risk/dataset"
	"github.com/YuminosukeSato/diabetes-risk/preprocessing"
)

// ResolvedInput is a request record after default filling, in raw units.
type ResolvedInput struct {
	BMI          float64 `json:"bmi"`
	HighBP       int     `json:"high_bp"`
	HighChol     int     `json:"high_chol"`
	PhysActivity int     `json:"phys_activity"`
	GenHlth      int     `json:"gen_hlth"`
}

func resolvedInput(p dataset.PartialRecord) ResolvedInput {
	var r ResolvedInput
	if p.BMI != nil {
		r.BMI = *p.BMI
	}
	if p.HighBP != nil {
		r.HighBP = *p.HighBP
	}
	if p.HighChol != nil {
		r.HighChol = *p.HighChol
	}
	if p.PhysActivity != nil {
		r.PhysActivity = *p.PhysActivity
	}
	if p.GenHlth != nil {
		r.GenHlth = *p.GenHlth
	}
	return r
}

// PredictionResult is the answer to one prediction request.
type PredictionResult struct {
	Input        preprocessing.EncodedRecord `json:"input"`
	Resolved     ResolvedInput               `json:"resolved"`
	Prediction   dataset.Label               `json:"prediction"`
	ProbDiabetes float64                     `json:"prob_Diabetes"`
	Leaf         int                         `json:"leaf"`
}

// PredictionService answers single-record predictions from an Artifact.
type PredictionService struct {
	artifact *Artifact
	positive int
}

// NewPredictionService creates a service over a trained artifact.
func NewPredictionService(a *Artifact) *PredictionService {
	positive := -1
	for i, c := range a.model.Classes() {
		if c == float64(dataset.Diabetes) {
			positive = i
		}
	}
	return &PredictionService{artifact: a, positive: positive}
}

// PredictOne fills omitted fields from the training defaults, encodes the
// record and traverses the tree.
//
// A categorical value outside the fitted level set fails with
// UnknownCategoryError and is never replaced by its default.
func (s *PredictionService) PredictOne(raw dataset.PartialRecord) (PredictionResult, error) {
	filled := s.artifact.defaults.Fill(raw)
	result, err := s.predict(filled)
	if err != nil {
		return PredictionResult{}, err
	}
	result.Resolved = resolvedInput(filled)
	return result, nil
}

func (s *PredictionService) predict(obs preprocessing.Observation) (PredictionResult, error) {
	for _, c := range s.artifact.encoder.CategoricalFields() {
		if v, ok := obs.CategoryValue(c.Name); ok {
			if err := s.artifact.encoder.ValidateCategory(c.Name, v); err != nil {
				return PredictionResult{}, err
			}
		}
	}

	encoded, err := s.artifact.encoder.Transform(obs)
	if err != nil {
		return PredictionResult{}, err
	}
	leaf, err := s.artifact.model.Apply(encodedRow(encoded, s.artifact.features))
	if err != nil {
		return PredictionResult{}, err
	}

	proba, class := s.artifact.model.Leaf(leaf)
	result := PredictionResult{
		Input:      encoded,
		Prediction: dataset.Label(int(class)),
		Leaf:       leaf,
	}
	if s.positive >= 0 {
		result.ProbDiabetes = proba[s.positive]
	}
	return result, nil
}
