package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diabetes-risk/core/model"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// Observation is a raw record whose fields can be looked up by name.
// The boolean result is false when the field is missing.
type Observation interface {
	NumericValue(field string) (float64, bool)
	CategoryValue(field string) (int, bool)
}

// CategoricalField declares a categorical input and whether its levels are ordered.
type CategoricalField struct {
	Name    string
	Ordinal bool
}

// EncodedRecord is the model-ready view of a record: numeric fields are
// standardized and categorical fields are replaced by their level index.
type EncodedRecord struct {
	Numeric map[string]float64 `json:"numeric"`
	Levels  map[string]int     `json:"levels"`
}

// Feature returns the encoded value of name as a float.
func (r EncodedRecord) Feature(name string) (float64, bool) {
	if v, ok := r.Numeric[name]; ok {
		return v, true
	}
	if v, ok := r.Levels[name]; ok {
		return float64(v), true
	}
	return 0, false
}

// FeatureEncoder fits standardization statistics for numeric fields and
// frozen level sets for categorical fields, then encodes records with them.
// After Fit the encoder is never mutated and is safe for concurrent use.
type FeatureEncoder struct {
	state       *model.StateManager
	numeric     []string
	categorical []CategoricalField
	scaler      *StandardScaler
	levels      *LevelEncoder
}

// NewFeatureEncoder creates an encoder for the given numeric and categorical fields.
func NewFeatureEncoder(numeric []string, categorical []CategoricalField) *FeatureEncoder {
	names := make([]string, len(categorical))
	for i, c := range categorical {
		names[i] = c.Name
	}
	scaler := NewStandardScalerDefault()
	scaler.FeatureNames = append([]string(nil), numeric...)

	return &FeatureEncoder{
		state:       model.NewStateManager(),
		numeric:     append([]string(nil), numeric...),
		categorical: append([]CategoricalField(nil), categorical...),
		scaler:      scaler,
		levels:      NewLevelEncoder(names),
	}
}

// Fit computes mean and sample standard deviation of each numeric field and
// the level set of each categorical field, ignoring missing values.
func (e *FeatureEncoder) Fit(records []Observation) error {
	if len(records) == 0 {
		return errors.NewModelError("FeatureEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	if len(e.numeric) > 0 {
		X := mat.NewDense(len(records), len(e.numeric), nil)
		for i, r := range records {
			for j, field := range e.numeric {
				v, ok := r.NumericValue(field)
				if !ok {
					v = math.NaN()
				}
				X.Set(i, j, v)
			}
		}
		if err := e.scaler.Fit(X); err != nil {
			return err
		}
	}

	values := make(map[string][]int, len(e.categorical))
	for _, r := range records {
		for _, c := range e.categorical {
			if v, ok := r.CategoryValue(c.Name); ok {
				values[c.Name] = append(values[c.Name], v)
			}
		}
	}
	if err := e.levels.Fit(values); err != nil {
		return err
	}

	e.state.SetDimensions(len(e.numeric)+len(e.categorical), len(records))
	e.state.SetFitted()
	return nil
}

// Transform encodes one record. A categorical value outside the fitted level
// set fails with UnknownCategoryError; a missing field fails with
// FeatureMissingError.
func (e *FeatureEncoder) Transform(r Observation) (EncodedRecord, error) {
	if err := e.state.RequireFitted("FeatureEncoder", "Transform"); err != nil {
		return EncodedRecord{}, err
	}

	out := EncodedRecord{
		Numeric: make(map[string]float64, len(e.numeric)),
		Levels:  make(map[string]int, len(e.categorical)),
	}

	if len(e.numeric) > 0 {
		row := make([]float64, len(e.numeric))
		for j, field := range e.numeric {
			v, ok := r.NumericValue(field)
			if !ok {
				return EncodedRecord{}, errors.NewFeatureMissingError(field, "transform")
			}
			row[j] = v
		}
		scaled, err := e.scaler.Transform(mat.NewDense(1, len(row), row))
		if err != nil {
			return EncodedRecord{}, err
		}
		for j, field := range e.numeric {
			out.Numeric[field] = scaled.At(0, j)
		}
	}

	for _, c := range e.categorical {
		v, ok := r.CategoryValue(c.Name)
		if !ok {
			return EncodedRecord{}, errors.NewFeatureMissingError(c.Name, "transform")
		}
		idx, err := e.levels.Index(c.Name, v)
		if err != nil {
			return EncodedRecord{}, err
		}
		out.Levels[c.Name] = idx
	}
	return out, nil
}

// InverseNumeric maps a standardized value of field back to the original scale.
func (e *FeatureEncoder) InverseNumeric(field string, z float64) (float64, error) {
	mean, sd, ok := e.NumericStats(field)
	if !ok {
		return 0, errors.NewValidationError("field", "not a fitted numeric field", field)
	}
	return z*sd + mean, nil
}

// NumericStats returns the fitted mean and standard deviation of field.
func (e *FeatureEncoder) NumericStats(field string) (mean, stddev float64, ok bool) {
	if !e.state.IsFitted() {
		return 0, 0, false
	}
	for j, f := range e.numeric {
		if f == field {
			return e.scaler.Mean[j], e.scaler.Scale[j], true
		}
	}
	return 0, 0, false
}

// Levels returns the frozen level set of a categorical field.
func (e *FeatureEncoder) Levels(field string) []int {
	return e.levels.Levels(field)
}

// ValidateCategory reports an UnknownCategoryError if value was not observed for field.
func (e *FeatureEncoder) ValidateCategory(field string, value int) error {
	_, err := e.levels.Index(field, value)
	return err
}

// FeatureNames returns numeric fields followed by categorical fields; this is
// the column order of design matrices built from encoded records.
func (e *FeatureEncoder) FeatureNames() []string {
	names := append([]string(nil), e.numeric...)
	for _, c := range e.categorical {
		names = append(names, c.Name)
	}
	return names
}

// NumericFields returns the numeric field names.
func (e *FeatureEncoder) NumericFields() []string {
	return append([]string(nil), e.numeric...)
}

// CategoricalFields returns the categorical field declarations.
func (e *FeatureEncoder) CategoricalFields() []CategoricalField {
	return append([]CategoricalField(nil), e.categorical...)
}

// Summary returns the fitted state in a JSON-friendly form.
func (e *FeatureEncoder) Summary() map[string]interface{} {
	numeric := make(map[string]map[string]float64, len(e.numeric))
	for _, f := range e.numeric {
		if m, sd, ok := e.NumericStats(f); ok {
			numeric[f] = map[string]float64{"mean": m, "stddev": sd}
		}
	}
	levels := make(map[string][]int, len(e.categorical))
	for _, c := range e.categorical {
		levels[c.Name] = e.levels.Levels(c.Name)
	}
	return map[string]interface{}{
		"numeric": numeric,
		"levels":  levels,
	}
}
