package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// labelColumns are the accepted names for the outcome column after normalization.
var labelColumns = []string{FieldLabel, "diabetes", "label"}

// NormalizeColumnName converts a header such as "HighBP" or "Diabetes_binary"
// to snake_case ("high_bp", "diabetes_binary").
func NormalizeColumnName(name string) string {
	runes := []rune(strings.TrimSpace(name))
	var b strings.Builder
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			b.WriteRune('_')
			continue
		}
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}

	parts := strings.FieldsFunc(b.String(), func(r rune) bool { return r == '_' })
	return strings.Join(parts, "_")
}

// LoadCSV reads the training dataset from path.
func LoadCSV(path string) ([]HealthRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses a header row followed by one record per line. Columns not in
// the schema are ignored; empty, "NA" and "NaN" cells are treated as missing.
func ReadCSV(r io.Reader) ([]HealthRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewModelError("dataset.ReadCSV", "empty data", errors.ErrEmptyData)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read CSV header")
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[NormalizeColumnName(h)] = i
	}
	for _, f := range Schema {
		if _, ok := index[f.Name]; !ok {
			return nil, errors.NewInsufficientDataError(f.Name, "column not found in dataset header")
		}
	}
	labelCol := -1
	for _, name := range labelColumns {
		if i, ok := index[name]; ok {
			labelCol = i
			break
		}
	}
	if labelCol < 0 {
		return nil, errors.NewInsufficientDataError(FieldLabel, "column not found in dataset header")
	}

	var records []HealthRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrapf(err, "read CSV line %d", line)
		}

		rec, err := parseRow(row, index, labelCol)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string, index map[string]int, labelCol int) (HealthRecord, error) {
	var rec HealthRecord
	for _, f := range Schema {
		cell := row[index[f.Name]]
		if isMissingCell(cell) {
			rec.SetMissing(f.Name)
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return rec, errors.NewValueError("dataset.ReadCSV", "field "+f.Name+": "+err.Error())
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return rec, errors.NewValueError("dataset.ReadCSV", "field "+f.Name+": not a finite number: "+cell)
		}
		if f.Kind == Numeric {
			rec.BMI = v
			continue
		}
		if v != math.Trunc(v) {
			return rec, errors.NewValueError("dataset.ReadCSV", "field "+f.Name+": category must be an integer, got "+cell)
		}
		setCategory(&rec, f.Name, int(v))
	}

	cell := row[labelCol]
	if isMissingCell(cell) {
		rec.Label = LabelUnknown
		return rec, nil
	}
	label, err := ParseLabel(cell)
	if err != nil {
		return rec, err
	}
	rec.Label = label
	return rec, nil
}

func setCategory(rec *HealthRecord, field string, v int) {
	switch field {
	case FieldHighBP:
		rec.HighBP = v
	case FieldHighChol:
		rec.HighChol = v
	case FieldPhysActivity:
		rec.PhysActivity = v
	case FieldGenHlth:
		rec.GenHlth = v
	}
}

func isMissingCell(cell string) bool {
	switch strings.TrimSpace(cell) {
	case "", "NA", "NaN", "nan", "null":
		return true
	}
	return false
}
