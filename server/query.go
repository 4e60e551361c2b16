package server

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/diabetes-risk/dataset"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// parsePredictQuery reads the optional predictor parameters of /pred.
// Absent or empty parameters stay unset and are later filled with defaults;
// unknown parameters are ignored.
func parsePredictQuery(q url.Values) (dataset.PartialRecord, error) {
	var rec dataset.PartialRecord

	for _, field := range dataset.Schema {
		raw := strings.TrimSpace(q.Get(field.Name))
		if raw == "" {
			continue
		}
		if field.Kind == dataset.Numeric {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return dataset.PartialRecord{}, errors.NewMalformedInputError(field.Name, raw, "not a number")
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return dataset.PartialRecord{}, errors.NewMalformedInputError(field.Name, raw, "not a finite number")
			}
			rec.Set(field.Name, v, 0)
			continue
		}

		v, err := parseLevel(raw)
		if err != nil {
			return dataset.PartialRecord{}, errors.NewMalformedInputError(field.Name, raw, "not an integer")
		}
		rec.Set(field.Name, 0, v)
	}
	return rec, nil
}

// parseLevel accepts "3" and integral decimals such as "3.0".
func parseLevel(raw string) (int, error) {
	if v, err := strconv.Atoi(raw); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, errors.Newf("invalid level %q", raw)
	}
	return int(f), nil
}
