package rules

import (
	"math"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetopt/budgetopt/internal/model"
)

func newDefault(t *testing.T) *Allocator {
	t.Helper()
	a, err := New(DefaultTables())
	require.NoError(t, err)
	return a
}

func TestAllocate_Rural10000(t *testing.T) {
	res, err := newDefault(t).Allocate(10000, model.Rural)
	require.NoError(t, err)

	assert.Equal(t, []float64{2500, 1000, 1500, 500, 500, 4000}, res.Amounts())
	assert.Equal(t, model.CategoryNames()[0], res.Items[0].Name)
	assert.Equal(t, model.SourceRules, res.Source)
	assert.False(t, res.NegativeSavings)
}

func TestAllocate_Urban10000(t *testing.T) {
	res, err := newDefault(t).Allocate(10000, model.Urban)
	require.NoError(t, err)

	assert.Equal(t, []float64{3500, 1500, 1500, 500, 1000, 2000}, res.Amounts())
	assert.Equal(t, model.Urban, res.Area)
}

func TestAllocate_InvalidIncome(t *testing.T) {
	a := newDefault(t)
	for _, income := range []float64{0, -100, math.NaN(), math.Inf(1)} {
		for _, area := range model.AreaTypes() {
			res, err := a.Allocate(income, area)
			assert.ErrorIs(t, err, ErrInvalidIncome, "income=%v area=%v", income, area)
			assert.Empty(t, res.Items)
		}
	}
}

func TestAllocate_UnknownArea(t *testing.T) {
	_, err := newDefault(t).Allocate(1000, model.AreaType(9))
	assert.ErrorIs(t, err, model.ErrUnknownArea)
}

func TestAllocate_SumsToIncome(t *testing.T) {
	a := newDefault(t)
	faker := gofakeit.New(7)

	for i := 0; i < 500; i++ {
		income := faker.Float64Range(0.01, 10_000_000)
		for _, area := range model.AreaTypes() {
			res, err := a.Allocate(income, area)
			require.NoError(t, err)
			require.Len(t, res.Items, model.NumCategories)
			assert.InEpsilon(t, income, res.Total(), 1e-9, "income=%v area=%v", income, area)
		}
	}
}

func TestNew_RejectsUnbalancedTable(t *testing.T) {
	tables := DefaultTables()
	tables.Urban[model.Entertainment] = 0.20

	_, err := New(tables)
	assert.ErrorIs(t, err, model.ErrTableSum)
}

func TestAllocate_CustomTable(t *testing.T) {
	tables := DefaultTables()
	tables.Rural = model.PercentageTable{0.30, 0.10, 0.10, 0.05, 0.05, 0.40}

	a, err := New(tables)
	require.NoError(t, err)

	res, err := a.Allocate(2000, model.Rural)
	require.NoError(t, err)
	assert.Equal(t, []float64{600, 200, 200, 100, 100, 800}, res.Amounts())
}
