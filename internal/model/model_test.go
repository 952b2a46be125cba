package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategories_CanonicalOrder(t *testing.T) {
	assert.Equal(t,
		[]string{"Housing", "Transportation", "Food", "Utilities", "Entertainment", "Savings"},
		CategoryNames())

	cats := Categories()
	require.Len(t, cats, NumCategories)
	assert.Equal(t, Savings, cats[len(cats)-1], "Savings must stay last")
}

func TestParseAreaType(t *testing.T) {
	tests := []struct {
		in   string
		want AreaType
	}{
		{"Rural", Rural},
		{"rural", Rural},
		{" URBAN ", Urban},
	}
	for _, tt := range tests {
		got, err := ParseAreaType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseAreaType("suburban")
	assert.ErrorIs(t, err, ErrUnknownArea)
}

func TestAreaType_KeyIsLowercase(t *testing.T) {
	assert.Equal(t, "rural", Rural.Key())
	assert.Equal(t, "urban", Urban.Key())
}

func TestAreaType_JSON(t *testing.T) {
	var v struct {
		Area AreaType `json:"area"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"area":"urban"}`), &v))
	assert.Equal(t, Urban, v.Area)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"area":"Urban"}`, string(out))
}

func TestDefaultTables_SumToOne(t *testing.T) {
	for name, table := range map[string]PercentageTable{
		"rural": DefaultRuralTable(),
		"urban": DefaultUrbanTable(),
	} {
		assert.NoError(t, table.Validate(), name)
		assert.InDelta(t, 1.0, table.Sum(), TableSumTolerance, name)
	}
}

func TestPercentageTable_Validate(t *testing.T) {
	short := DefaultRuralTable()
	short[Savings] = 0.30
	assert.ErrorIs(t, short.Validate(), ErrTableSum)

	negative := DefaultUrbanTable()
	negative[Food] = -0.15
	negative[Housing] = 0.65
	assert.ErrorIs(t, negative.Validate(), ErrTableRange)
}

func TestFinancialProfile_FeatureOrder(t *testing.T) {
	p := FinancialProfile{
		Income:                1,
		HousingExpense:        2,
		TransportationExpense: 3,
		FoodExpense:           4,
		UtilitiesExpense:      5,
		EntertainmentExpense:  6,
		Savings:               7,
	}
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7}, p.Features())
	assert.Equal(t, "Income", FeatureNames()[0])
	assert.Equal(t, "Savings", FeatureNames()[NumFeatures-1])

	back, err := ProfileFromFeatures(p.Features())
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestFinancialProfile_Validate(t *testing.T) {
	assert.NoError(t, FinancialProfile{}.Validate())
	assert.ErrorIs(t, FinancialProfile{FoodExpense: -1}.Validate(), ErrInvalidProfile)
	assert.ErrorIs(t, FinancialProfile{Income: math.NaN()}.Validate(), ErrInvalidProfile)
	assert.ErrorIs(t, FinancialProfile{Savings: math.Inf(1)}.Validate(), ErrInvalidProfile)

	_, err := ProfileFromFeatures([]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidProfile)

	p, err := ProfileFromFeatures([]float64{100, -1, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, -1.0, p.HousingExpense)
	assert.ErrorIs(t, p.Validate(), ErrInvalidProfile)
}

func TestAllocationResult_Helpers(t *testing.T) {
	r := AllocationResult{Items: []Allocation{
		{Category: Housing, Name: "Housing", Amount: 100},
		{Category: Savings, Name: "Savings", Amount: -20},
	}}
	assert.Equal(t, 80.0, r.Total())
	assert.Equal(t, -20.0, r.Amount(Savings))
	assert.Equal(t, 0.0, r.Amount(Food))
	assert.Equal(t, []float64{100, -20}, r.Amounts())
}
