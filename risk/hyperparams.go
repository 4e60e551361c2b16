package risk

import (
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
	"github.com/YuminosukeSato/diabetes-risk/sklearn/tree"
)

// Hyperparameters controls tree growth and pruning.
type Hyperparameters struct {
	// MinN is the smallest node that may still be split.
	MinN int `json:"min_n" yaml:"min_n"`
	// MaxDepth bounds the depth of the tree; the root has depth 0.
	MaxDepth int `json:"max_depth" yaml:"max_depth"`
	// CostComplexity is the pruning threshold alpha. Zero disables pruning.
	CostComplexity float64 `json:"cost_complexity" yaml:"cost_complexity"`
	// MinImpurityDecrease is the gain a split must exceed.
	MinImpurityDecrease float64 `json:"min_impurity_decrease" yaml:"min_impurity_decrease"`
	// Criterion is "gini" or "entropy".
	Criterion string `json:"criterion" yaml:"criterion"`
}

// DefaultHyperparameters returns the settings the service trains with unless
// configured otherwise.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		MinN:           2,
		MaxDepth:       30,
		CostComplexity: 0.001,
		Criterion:      "gini",
	}
}

// Validate checks ranges without fitting anything.
func (h Hyperparameters) Validate() error {
	if h.MinN < 2 {
		return errors.NewValidationError("min_n", "must be at least 2", h.MinN)
	}
	if h.MaxDepth < 1 {
		return errors.NewValidationError("max_depth", "must be at least 1", h.MaxDepth)
	}
	if h.CostComplexity < 0 {
		return errors.NewValidationError("cost_complexity", "must be non-negative", h.CostComplexity)
	}
	if h.MinImpurityDecrease < 0 {
		return errors.NewValidationError("min_impurity_decrease", "must be non-negative", h.MinImpurityDecrease)
	}
	if h.Criterion != "gini" && h.Criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be 'gini' or 'entropy'", h.Criterion)
	}
	return nil
}

func (h Hyperparameters) treeOptions() []tree.Option {
	return []tree.Option{
		tree.WithCriterion(h.Criterion),
		tree.WithMaxDepth(h.MaxDepth),
		tree.WithMinSamplesSplit(h.MinN),
		tree.WithMinImpurityDecrease(h.MinImpurityDecrease),
		tree.WithCCPAlpha(h.CostComplexity),
	}
}
