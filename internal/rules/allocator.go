// Package rules splits income across categories using fixed percentage tables.
package rules

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/budgetopt/budgetopt/internal/model"
)

// ErrInvalidIncome is returned for zero, negative or non-finite income.
var ErrInvalidIncome = errors.New("invalid income")

// Tables holds the percentage table for each area type.
type Tables struct {
	Rural model.PercentageTable
	Urban model.PercentageTable
}

// DefaultTables returns the built-in rural and urban splits.
func DefaultTables() Tables {
	return Tables{
		Rural: model.DefaultRuralTable(),
		Urban: model.DefaultUrbanTable(),
	}
}

// For returns the table for area.
func (t Tables) For(area model.AreaType) (model.PercentageTable, error) {
	switch area {
	case model.Rural:
		return t.Rural, nil
	case model.Urban:
		return t.Urban, nil
	default:
		return model.PercentageTable{}, fmt.Errorf("%w: %v", model.ErrUnknownArea, area)
	}
}

// Validate checks both tables.
func (t Tables) Validate() error {
	if err := t.Rural.Validate(); err != nil {
		return fmt.Errorf("rural table: %w", err)
	}
	if err := t.Urban.Validate(); err != nil {
		return fmt.Errorf("urban table: %w", err)
	}
	return nil
}

// Allocator computes rule-based allocations. It is immutable after New.
type Allocator struct {
	tables Tables
}

// New returns an allocator over tables, rejecting tables that do not sum to 1.
func New(tables Tables) (*Allocator, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &Allocator{tables: tables}, nil
}

// Tables returns the tables the allocator was built with.
func (a *Allocator) Tables() Tables {
	return a.tables
}

// Allocate splits income across categories for area.
func (a *Allocator) Allocate(income float64, area model.AreaType) (model.AllocationResult, error) {
	if math.IsNaN(income) || math.IsInf(income, 0) || income <= 0 {
		return model.AllocationResult{}, fmt.Errorf("%w: %v", ErrInvalidIncome, income)
	}

	table, err := a.tables.For(area)
	if err != nil {
		return model.AllocationResult{}, err
	}

	base := decimal.NewFromFloat(income)
	items := make([]model.Allocation, 0, model.NumCategories)
	for _, c := range model.Categories() {
		amount := base.Mul(decimal.NewFromFloat(table.Fraction(c)))
		items = append(items, model.Allocation{
			Category: c,
			Name:     c.String(),
			Amount:   amount.InexactFloat64(),
		})
	}

	return model.AllocationResult{
		Area:   area,
		Source: model.SourceRules,
		Items:  items,
	}, nil
}
