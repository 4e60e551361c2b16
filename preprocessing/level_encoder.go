package preprocessing

import (
	"sort"

	"github.com/YuminosukeSato/diabetes-risk/core/model"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// LevelEncoder freezes the set of observed levels for each categorical field
// and maps values to their index in that set.
//
// Levels are kept in ascending order, which preserves the ranking of ordinal
// fields such as a 1..5 health rating.
type LevelEncoder struct {
	state  *model.StateManager
	fields []string
	levels map[string][]int
	index  map[string]map[int]int
}

// NewLevelEncoder creates an encoder for the given fields.
func NewLevelEncoder(fields []string) *LevelEncoder {
	return &LevelEncoder{
		state:  model.NewStateManager(),
		fields: append([]string(nil), fields...),
	}
}

// Fit collects the distinct values of each field. values[field] holds every
// observed (non-missing) value for that field.
func (e *LevelEncoder) Fit(values map[string][]int) error {
	levels := make(map[string][]int, len(e.fields))
	index := make(map[string]map[int]int, len(e.fields))

	for _, field := range e.fields {
		seen := make(map[int]struct{})
		for _, v := range values[field] {
			seen[v] = struct{}{}
		}
		if len(seen) == 0 {
			return errors.NewInsufficientDataError(field, "no observed levels")
		}

		lv := make([]int, 0, len(seen))
		for v := range seen {
			lv = append(lv, v)
		}
		sort.Ints(lv)

		idx := make(map[int]int, len(lv))
		for i, v := range lv {
			idx[v] = i
		}
		levels[field] = lv
		index[field] = idx
	}

	e.levels = levels
	e.index = index
	e.state.SetFitted()
	return nil
}

// Index returns the position of value in the frozen level set of field.
// Values never observed during Fit are rejected with UnknownCategoryError.
func (e *LevelEncoder) Index(field string, value int) (int, error) {
	if err := e.state.RequireFitted("LevelEncoder", "Index"); err != nil {
		return 0, err
	}
	idx, ok := e.index[field]
	if !ok {
		return 0, errors.NewValidationError("field", "not a categorical field", field)
	}
	i, ok := idx[value]
	if !ok {
		return 0, errors.NewUnknownCategoryError(field, value, e.levels[field])
	}
	return i, nil
}

// Level is the inverse of Index.
func (e *LevelEncoder) Level(field string, index int) (int, bool) {
	lv := e.levels[field]
	if index < 0 || index >= len(lv) {
		return 0, false
	}
	return lv[index], true
}

// Levels returns a copy of the frozen level set of field.
func (e *LevelEncoder) Levels(field string) []int {
	return append([]int(nil), e.levels[field]...)
}

// Contains reports whether value was observed for field during Fit.
func (e *LevelEncoder) Contains(field string, value int) bool {
	_, ok := e.index[field][value]
	return ok
}
