// Package predict turns a predictor's raw output into a labelled allocation.
package predict

import (
	"errors"
	"fmt"
	"math"

	"github.com/budgetopt/budgetopt/internal/model"
)

var (
	// ErrPredictionFailed wraps any failure raised by the underlying predictor.
	ErrPredictionFailed = errors.New("prediction failed")
	// ErrShapeMismatch is returned when a predictor yields the wrong number of amounts.
	ErrShapeMismatch = errors.New("prediction shape mismatch")
)

// Predict runs p against the profile and labels the output by category.
// The result is tagged with area for display only; the caller picks the
// predictor that matches it.
func Predict(profile model.FinancialProfile, p model.Predictor, area model.AreaType) (model.AllocationResult, error) {
	if err := profile.Validate(); err != nil {
		return model.AllocationResult{}, err
	}
	if p == nil {
		return model.AllocationResult{}, fmt.Errorf("%w: no predictor loaded", ErrPredictionFailed)
	}

	raw, err := p.Predict(profile.Features())
	if err != nil {
		return model.AllocationResult{}, fmt.Errorf("%w: %w", ErrPredictionFailed, err)
	}

	items, err := Assemble(raw)
	if err != nil {
		return model.AllocationResult{}, err
	}

	return model.AllocationResult{
		Area:            area,
		Source:          model.SourceModel,
		Items:           items,
		NegativeSavings: NegativeSavings(items),
	}, nil
}

// Assemble pairs raw amounts with categories by position.
func Assemble(raw []float64) ([]model.Allocation, error) {
	if len(raw) != model.NumCategories {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrShapeMismatch, len(raw), model.NumCategories)
	}

	items := make([]model.Allocation, model.NumCategories)
	for i, c := range model.Categories() {
		v := raw[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite amount for %s", ErrPredictionFailed, c)
		}
		items[i] = model.Allocation{Category: c, Name: c.String(), Amount: v}
	}
	return items, nil
}

// NegativeSavings reports whether the last allocation is below zero.
// The check is positional: Savings is the final category.
func NegativeSavings(items []model.Allocation) bool {
	if len(items) == 0 {
		return false
	}
	return items[len(items)-1].Amount < 0
}
