package dataset

import (
	"math"
	"strings"
	"testing"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

func TestNormalizeColumnName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Diabetes_binary", "diabetes_binary"},
		{"HighBP", "high_bp"},
		{"HighChol", "high_chol"},
		{"BMI", "bmi"},
		{"PhysActivity", "phys_activity"},
		{"GenHlth", "gen_hlth"},
		{" Gen Hlth ", "gen_hlth"},
		{"HTTPServer", "http_server"},
		{"high_bp", "high_bp"},
		{"Age10", "age10"},
	}
	for _, tt := range tests {
		if got := NormalizeColumnName(tt.in); got != tt.want {
			t.Errorf("NormalizeColumnName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadCSV(t *testing.T) {
	records, err := LoadCSV("testdata/health_sample.csv")
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if len(records) != 8 {
		t.Fatalf("expected 8 records, got %d", len(records))
	}

	first := records[0]
	if first.Label != NoDiabetes || first.HighBP != 1 || first.HighChol != 0 ||
		first.BMI != 40 || first.PhysActivity != 0 || first.GenHlth != 5 {
		t.Errorf("unexpected first record: %+v", first)
	}
	if !first.Complete() {
		t.Error("first record should be complete")
	}

	if records[2].Label != Diabetes {
		t.Errorf("record 2 label = %v, want Diabetes", records[2].Label)
	}

	if !records[5].IsMissing(FieldBMI) || !math.IsNaN(records[5].BMI) {
		t.Error("NA bmi should be marked missing")
	}
	if _, ok := records[5].NumericValue(FieldBMI); ok {
		t.Error("missing bmi should not report a value")
	}
	if !records[6].IsMissing(FieldGenHlth) {
		t.Error("empty gen_hlth should be marked missing")
	}
	if _, ok := records[6].CategoryValue(FieldGenHlth); ok {
		t.Error("missing gen_hlth should not report a value")
	}
	if records[7].Label != LabelUnknown || records[7].Complete() {
		t.Error("row without a label should be incomplete")
	}
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(error) bool
	}{
		{
			name:  "empty input",
			input: "",
			check: func(err error) bool { return errors.Is(err, errors.ErrEmptyData) },
		},
		{
			name:  "missing predictor column",
			input: "Diabetes_binary,HighBP,HighChol,BMI,PhysActivity\n0,1,0,30,1\n",
			check: func(err error) bool {
				var e *errors.InsufficientDataError
				return errors.As(err, &e) && e.Field == FieldGenHlth
			},
		},
		{
			name:  "missing label column",
			input: "HighBP,HighChol,BMI,PhysActivity,GenHlth\n1,0,30,1,3\n",
			check: func(err error) bool {
				var e *errors.InsufficientDataError
				return errors.As(err, &e) && e.Field == FieldLabel
			},
		},
		{
			name:  "non integral category",
			input: "Diabetes_binary,HighBP,HighChol,BMI,PhysActivity,GenHlth\n0,1,0,30,1,2.5\n",
			check: func(err error) bool {
				var e *errors.ValueError
				return errors.As(err, &e) && strings.Contains(err.Error(), "line 2")
			},
		},
		{
			name:  "infinite bmi",
			input: "Diabetes_binary,HighBP,HighChol,BMI,PhysActivity,GenHlth\n0,1,0,30,1,2\n1,1,0,Inf,1,2\n",
			check: func(err error) bool {
				var e *errors.ValueError
				return errors.As(err, &e) && strings.Contains(err.Error(), "line 3") &&
					strings.Contains(err.Error(), "not a finite number")
			},
		},
		{
			name:  "non finite category",
			input: "Diabetes_binary,HighBP,HighChol,BMI,PhysActivity,GenHlth\n0,-inf,0,30,1,2\n",
			check: func(err error) bool {
				var e *errors.ValueError
				return errors.As(err, &e) && strings.Contains(err.Error(), "field high_bp")
			},
		},
		{
			name:  "bad label",
			input: "Diabetes_binary,HighBP,HighChol,BMI,PhysActivity,GenHlth\nmaybe,1,0,30,1,2\n",
			check: func(err error) bool {
				var e *errors.ValueError
				return errors.As(err, &e)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestReadCSV_LabelAliases(t *testing.T) {
	input := "label,high_bp,high_chol,bmi,phys_activity,gen_hlth\nDiabetes,1,1,31.5,0,4\nNoDiabetes,0,0,22,1,1\n"
	records, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if records[0].Label != Diabetes || records[1].Label != NoDiabetes {
		t.Errorf("labels = %v, %v", records[0].Label, records[1].Label)
	}
	if records[0].BMI != 31.5 {
		t.Errorf("bmi = %v, want 31.5", records[0].BMI)
	}
}

func TestPartialRecord(t *testing.T) {
	var p PartialRecord
	if _, ok := p.NumericValue(FieldBMI); ok {
		t.Error("unset bmi should not report a value")
	}
	p.Set(FieldBMI, 30, 0)
	p.Set(FieldGenHlth, 0, 4)

	if v, ok := p.NumericValue(FieldBMI); !ok || v != 30 {
		t.Errorf("bmi = %v, %v", v, ok)
	}
	if v, ok := p.CategoryValue(FieldGenHlth); !ok || v != 4 {
		t.Errorf("gen_hlth = %v, %v", v, ok)
	}
	if _, ok := p.CategoryValue(FieldHighBP); ok {
		t.Error("unset high_bp should not report a value")
	}
}

func TestSchemaOrder(t *testing.T) {
	if got := NumericFields(); len(got) != 1 || got[0] != FieldBMI {
		t.Errorf("NumericFields() = %v", got)
	}
	want := []string{FieldHighBP, FieldHighChol, FieldPhysActivity, FieldGenHlth}
	got := CategoricalFields()
	if len(got) != len(want) {
		t.Fatalf("CategoricalFields() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("CategoricalFields()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
