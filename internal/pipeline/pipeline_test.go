package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetopt/budgetopt/internal/artifact"
	"github.com/budgetopt/budgetopt/internal/model"
	"github.com/budgetopt/budgetopt/internal/rules"
)

// fixedModels returns predictors that echo income scaled per area.
type fixedModels struct {
	loads atomic.Int64
	err   map[model.AreaType]error
}

func (f *fixedModels) Load(_ context.Context, area model.AreaType) (model.Predictor, error) {
	f.loads.Add(1)
	if err := f.err[area]; err != nil {
		return nil, err
	}
	return model.PredictorFunc(func(x []float64) ([]float64, error) {
		income := x[0]
		out := []float64{0.3 * income, 0.1 * income, 0.2 * income, 0.1 * income, 0.1 * income, 0.2 * income}
		if area == model.Urban {
			out[5] = -income
		}
		return out, nil
	}), nil
}

const sampleCSV = `Income,housing_expense,Food Expense,area
10000,2000,1500,rural
20000,,,Urban

5000,100,100,
`

func TestReadProfiles(t *testing.T) {
	recs, err := ReadProfiles(strings.NewReader(sampleCSV), model.Rural)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, 2, recs[0].Line)
	assert.Equal(t, model.Rural, recs[0].Area)
	assert.Equal(t, 10000.0, recs[0].Profile.Income)
	assert.Equal(t, 2000.0, recs[0].Profile.HousingExpense)
	assert.Equal(t, 1500.0, recs[0].Profile.FoodExpense)
	assert.Zero(t, recs[0].Profile.Savings)

	assert.Equal(t, model.Urban, recs[1].Area)
	assert.Zero(t, recs[1].Profile.HousingExpense)

	assert.Equal(t, 5, recs[2].Line, "blank line is skipped but counted")
	assert.Equal(t, model.Rural, recs[2].Area, "empty area falls back to default")
}

func TestReadProfiles_Errors(t *testing.T) {
	_, err := ReadProfiles(strings.NewReader("housing_expense\n10\n"), model.Rural)
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = ReadProfiles(strings.NewReader("income\nlots\n"), model.Rural)
	assert.ErrorContains(t, err, "line 2")

	_, err = ReadProfiles(strings.NewReader("income,area\n10,suburban\n"), model.Rural)
	assert.ErrorIs(t, err, model.ErrUnknownArea)

	recs, err := ReadProfiles(strings.NewReader(""), model.Rural)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRunner_Model(t *testing.T) {
	models := &fixedModels{}
	recs, err := ReadProfiles(strings.NewReader(sampleCSV), model.Rural)
	require.NoError(t, err)

	var last atomic.Int64
	res, err := NewRunner(models, nil).Run(context.Background(), recs, Options{
		Workers:  2,
		Progress: func(cur, total int) { last.Store(int64(total)) },
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Succeeded)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 1, res.Warnings, "urban row predicts negative savings")
	assert.Equal(t, int64(3), last.Load())
	assert.Equal(t, int64(2), models.loads.Load(), "one load per area")

	assert.Equal(t, 3000.0, res.Rows[0].Result.Amount(model.Housing))
	assert.Equal(t, model.SourceModel, res.Rows[0].Result.Source)
	assert.True(t, res.Rows[1].Result.NegativeSavings)
}

func TestRunner_ModelLoadFailureMarksRows(t *testing.T) {
	models := &fixedModels{err: map[model.AreaType]error{model.Urban: artifact.ErrArtifactNotFound}}
	recs := []Record{
		{Line: 2, Area: model.Rural, Profile: model.FinancialProfile{Income: 100}},
		{Line: 3, Area: model.Urban, Profile: model.FinancialProfile{Income: 100}},
		{Line: 4, Area: model.Rural, Profile: model.FinancialProfile{Income: -1}},
	}

	res, err := NewRunner(models, nil).Run(context.Background(), recs, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	assert.ErrorIs(t, res.Rows[1].Err, artifact.ErrArtifactNotFound)
	assert.ErrorIs(t, res.Rows[2].Err, model.ErrInvalidProfile)
}

func TestRunner_Rules(t *testing.T) {
	alloc, err := rules.New(rules.DefaultTables())
	require.NoError(t, err)

	recs := []Record{
		{Line: 2, Area: model.Rural, Profile: model.FinancialProfile{Income: 10000}},
		{Line: 3, Area: model.Urban, Profile: model.FinancialProfile{Income: 0}},
	}
	res, err := NewRunner(nil, alloc).Run(context.Background(), recs, Options{Mode: ModeRules})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Succeeded)
	assert.InDelta(t, 4000, res.Rows[0].Result.Amount(model.Savings), 1e-9)
	assert.ErrorIs(t, res.Rows[1].Err, rules.ErrInvalidIncome)
}

func TestRunner_Misconfigured(t *testing.T) {
	_, err := NewRunner(nil, nil).Run(context.Background(), nil, Options{})
	assert.Error(t, err)

	_, err = NewRunner(nil, nil).Run(context.Background(), nil, Options{Mode: ModeRules})
	assert.Error(t, err)

	_, err = NewRunner(&fixedModels{}, nil).Run(context.Background(), nil, Options{Mode: "magic"})
	assert.Error(t, err)
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recs := []Record{{Line: 2, Area: model.Rural, Profile: model.FinancialProfile{Income: 1}}}
	_, err := NewRunner(&fixedModels{}, nil).Run(ctx, recs, Options{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWriteResults(t *testing.T) {
	res := &BatchResult{Rows: []RowResult{
		{
			Record: Record{Line: 2, Area: model.Rural},
			Result: model.AllocationResult{
				Area:   model.Rural,
				Source: model.SourceRules,
				Items: []model.Allocation{
					{Category: model.Housing, Name: "Housing", Amount: 2500},
					{Category: model.Savings, Name: "Savings", Amount: -12.5},
				},
				NegativeSavings: true,
			},
		},
		{
			Record: Record{Line: 3, Area: model.Urban},
			Err:    errors.New("boom"),
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, res))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{
		"line", "area", "source",
		"housing", "transportation", "food", "utilities", "entertainment", "savings",
		"negative_savings", "error",
	}, rows[0])
	assert.Equal(t, []string{"2", "rural", "rules", "2500.00", "0.00", "0.00", "0.00", "0.00", "-12.50", "true", ""}, rows[1])
	assert.Equal(t, "boom", rows[2][10])
	assert.Equal(t, "false", rows[2][9])
	assert.Empty(t, rows[2][3])
}
