package model

import (
	"errors"
	"fmt"
	"math"
)

// TableSumTolerance is how far a table's fractions may drift from 1.0.
const TableSumTolerance = 1e-9

// ErrTableSum is returned when a percentage table does not sum to 1.0.
var ErrTableSum = errors.New("percentage table does not sum to 1")

// ErrTableRange is returned when a fraction falls outside [0,1].
var ErrTableRange = errors.New("percentage out of range")

// PercentageTable holds one fraction per category, indexed in canonical order.
type PercentageTable [NumCategories]float64

// DefaultRuralTable returns the built-in rural split.
func DefaultRuralTable() PercentageTable {
	return PercentageTable{
		Housing:        0.25,
		Transportation: 0.10,
		Food:           0.15,
		Utilities:      0.05,
		Entertainment:  0.05,
		Savings:        0.40,
	}
}

// DefaultUrbanTable returns the built-in urban split.
func DefaultUrbanTable() PercentageTable {
	return PercentageTable{
		Housing:        0.35,
		Transportation: 0.15,
		Food:           0.15,
		Utilities:      0.05,
		Entertainment:  0.10,
		Savings:        0.20,
	}
}

// Fraction returns the share allotted to c.
func (t PercentageTable) Fraction(c Category) float64 {
	return t[c]
}

// Sum returns the total of all fractions.
func (t PercentageTable) Sum() float64 {
	var sum float64
	for _, f := range t {
		sum += f
	}
	return sum
}

// Validate checks every fraction is within [0,1] and the table sums to 1.0.
func (t PercentageTable) Validate() error {
	for i, f := range t {
		if math.IsNaN(f) || f < 0 || f > 1 {
			return fmt.Errorf("%w: %s = %v", ErrTableRange, Category(i), f)
		}
	}
	if sum := t.Sum(); math.Abs(sum-1) > TableSumTolerance {
		return fmt.Errorf("%w: got %.6f", ErrTableSum, sum)
	}
	return nil
}

// Map returns the table keyed by lowercase category key.
func (t PercentageTable) Map() map[string]float64 {
	out := make(map[string]float64, NumCategories)
	for _, c := range Categories() {
		out[c.Key()] = t[c]
	}
	return out
}
