// Package dataset defines the health-indicator records the model is trained
// on and the CSV ingestion that produces them.
package dataset

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// Field names after column-name normalization.
const (
	FieldBMI          = "bmi"
	FieldHighBP       = "high_bp"
	FieldHighChol     = "high_chol"
	FieldPhysActivity = "phys_activity"
	FieldGenHlth      = "gen_hlth"
	FieldLabel        = "diabetes_binary"
)

// FieldKind classifies a predictor column.
type FieldKind int

const (
	// Numeric fields are continuous and standardized before fitting.
	Numeric FieldKind = iota
	// Binary fields are two-level indicators.
	Binary
	// Ordinal fields are categories whose level order is meaningful.
	Ordinal
)

// FieldSpec describes one predictor column.
type FieldSpec struct {
	Name string
	Kind FieldKind
}

// Schema lists the predictors in feature order.
var Schema = []FieldSpec{
	{Name: FieldBMI, Kind: Numeric},
	{Name: FieldHighBP, Kind: Binary},
	{Name: FieldHighChol, Kind: Binary},
	{Name: FieldPhysActivity, Kind: Binary},
	{Name: FieldGenHlth, Kind: Ordinal},
}

// NumericFields returns the names of the numeric predictors in schema order.
func NumericFields() []string {
	var out []string
	for _, f := range Schema {
		if f.Kind == Numeric {
			out = append(out, f.Name)
		}
	}
	return out
}

// CategoricalFields returns the names of the categorical predictors in schema order.
func CategoricalFields() []string {
	var out []string
	for _, f := range Schema {
		if f.Kind != Numeric {
			out = append(out, f.Name)
		}
	}
	return out
}

// Label is the binary outcome.
type Label int

const (
	// LabelUnknown marks a training row whose outcome is missing.
	LabelUnknown Label = -1
	NoDiabetes   Label = 0
	Diabetes     Label = 1
)

// String returns the label name used in API responses.
func (l Label) String() string {
	switch l {
	case NoDiabetes:
		return "NoDiabetes"
	case Diabetes:
		return "Diabetes"
	default:
		return "Unknown"
	}
}

// MarshalJSON encodes the label by name.
func (l Label) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// ParseLabel accepts 0/1 (optionally as floats) or the label names.
func ParseLabel(s string) (Label, error) {
	switch strings.TrimSpace(s) {
	case "0", "0.0", "NoDiabetes", "no_diabetes":
		return NoDiabetes, nil
	case "1", "1.0", "Diabetes", "diabetes":
		return Diabetes, nil
	}
	return LabelUnknown, errors.NewValueError("dataset.ParseLabel", "unrecognized label "+s)
}

// HealthRecord is one observation. Missing fields are tracked explicitly so
// that fit-time statistics can skip them.
type HealthRecord struct {
	BMI          float64 `json:"bmi"`
	HighBP       int     `json:"high_bp"`
	HighChol     int     `json:"high_chol"`
	PhysActivity int     `json:"phys_activity"`
	GenHlth      int     `json:"gen_hlth"`
	Label        Label   `json:"label"`

	missing map[string]bool
}

// SetMissing marks field as having no value.
func (r *HealthRecord) SetMissing(field string) {
	if r.missing == nil {
		r.missing = make(map[string]bool)
	}
	r.missing[field] = true
	if field == FieldBMI {
		r.BMI = math.NaN()
	}
}

// IsMissing reports whether field has no value.
func (r HealthRecord) IsMissing(field string) bool {
	return r.missing[field]
}

// Complete reports whether every predictor and the label are present.
func (r HealthRecord) Complete() bool {
	for _, f := range Schema {
		if r.missing[f.Name] {
			return false
		}
	}
	return r.Label == NoDiabetes || r.Label == Diabetes
}

// NumericValue returns the value of a numeric field.
func (r HealthRecord) NumericValue(field string) (float64, bool) {
	if field != FieldBMI || r.missing[field] || math.IsNaN(r.BMI) {
		return 0, false
	}
	return r.BMI, true
}

// CategoryValue returns the value of a categorical field.
func (r HealthRecord) CategoryValue(field string) (int, bool) {
	if r.missing[field] {
		return 0, false
	}
	switch field {
	case FieldHighBP:
		return r.HighBP, true
	case FieldHighChol:
		return r.HighChol, true
	case FieldPhysActivity:
		return r.PhysActivity, true
	case FieldGenHlth:
		return r.GenHlth, true
	}
	return 0, false
}

// PartialRecord is a request-side record; nil fields were not supplied.
type PartialRecord struct {
	BMI          *float64 `json:"bmi,omitempty"`
	HighBP       *int     `json:"high_bp,omitempty"`
	HighChol     *int     `json:"high_chol,omitempty"`
	PhysActivity *int     `json:"phys_activity,omitempty"`
	GenHlth      *int     `json:"gen_hlth,omitempty"`
}

// NumericValue returns the value of a numeric field if it was supplied.
func (p PartialRecord) NumericValue(field string) (float64, bool) {
	if field == FieldBMI && p.BMI != nil {
		return *p.BMI, true
	}
	return 0, false
}

// CategoryValue returns the value of a categorical field if it was supplied.
func (p PartialRecord) CategoryValue(field string) (int, bool) {
	var v *int
	switch field {
	case FieldHighBP:
		v = p.HighBP
	case FieldHighChol:
		v = p.HighChol
	case FieldPhysActivity:
		v = p.PhysActivity
	case FieldGenHlth:
		v = p.GenHlth
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Set assigns a numeric or categorical field by name.
func (p *PartialRecord) Set(field string, numeric float64, category int) {
	switch field {
	case FieldBMI:
		p.BMI = &numeric
	case FieldHighBP:
		p.HighBP = &category
	case FieldHighChol:
		p.HighChol = &category
	case FieldPhysActivity:
		p.PhysActivity = &category
	case FieldGenHlth:
		p.GenHlth = &category
	}
}
