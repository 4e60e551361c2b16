package risk

import (
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/diabetes-risk/dataset"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// DefaultValues holds the value used for each request field a caller omits.
type DefaultValues struct {
	Numeric     map[string]float64 `json:"numeric"`
	Categorical map[string]int     `json:"categorical"`
}

// ResolveDefaults computes the training mean of every numeric field and the
// most frequent level of every categorical field. Ties between levels go to
// the lowest level value. Missing values are skipped.
func ResolveDefaults(records []dataset.HealthRecord) (DefaultValues, error) {
	d := DefaultValues{
		Numeric:     make(map[string]float64),
		Categorical: make(map[string]int),
	}

	for _, field := range dataset.NumericFields() {
		var values []float64
		for _, r := range records {
			if v, ok := r.NumericValue(field); ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return DefaultValues{}, errors.NewInsufficientDataError(field, "no values to compute a default from")
		}
		d.Numeric[field] = stat.Mean(values, nil)
	}

	for _, field := range dataset.CategoricalFields() {
		counts := make(map[int]int)
		for _, r := range records {
			if v, ok := r.CategoryValue(field); ok {
				counts[v]++
			}
		}
		if len(counts) == 0 {
			return DefaultValues{}, errors.NewInsufficientDataError(field, "no values to compute a default from")
		}
		mode, best := 0, -1
		for level, n := range counts {
			if n > best || (n == best && level < mode) {
				mode, best = level, n
			}
		}
		d.Categorical[field] = mode
	}
	return d, nil
}

// Fill returns p with every omitted field set to its default.
func (d DefaultValues) Fill(p dataset.PartialRecord) dataset.PartialRecord {
	out := p
	for field, v := range d.Numeric {
		if _, ok := p.NumericValue(field); !ok {
			out.Set(field, v, 0)
		}
	}
	for field, v := range d.Categorical {
		if _, ok := p.CategoryValue(field); !ok {
			out.Set(field, 0, v)
		}
	}
	return out
}

// Record returns a request record consisting of the defaults only.
func (d DefaultValues) Record() dataset.PartialRecord {
	return d.Fill(dataset.PartialRecord{})
}
