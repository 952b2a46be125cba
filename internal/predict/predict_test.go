package predict

import (
	"errors"
	"math"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetopt/budgetopt/internal/model"
)

func constant(out ...float64) model.Predictor {
	return model.PredictorFunc(func([]float64) ([]float64, error) {
		return out, nil
	})
}

func sampleProfile() model.FinancialProfile {
	return model.FinancialProfile{
		Income:                50000,
		HousingExpense:        15000,
		TransportationExpense: 4000,
		FoodExpense:           6000,
		UtilitiesExpense:      2000,
		EntertainmentExpense:  1500,
		Savings:               5000,
	}
}

func TestPredict_NegativeSavingsWarning(t *testing.T) {
	res, err := Predict(sampleProfile(), constant(1000, 500, 300, 100, 50, -50), model.Rural)
	require.NoError(t, err)
	assert.True(t, res.NegativeSavings)
	assert.Equal(t, -50.0, res.Amount(model.Savings))

	res, err = Predict(sampleProfile(), constant(1000, 500, 300, 100, 50, 50), model.Rural)
	require.NoError(t, err)
	assert.False(t, res.NegativeSavings)
}

func TestPredict_LabelsInCanonicalOrder(t *testing.T) {
	res, err := Predict(sampleProfile(), constant(1, 2, 3, 4, 5, 6), model.Urban)
	require.NoError(t, err)

	require.Len(t, res.Items, model.NumCategories)
	for i, c := range model.Categories() {
		assert.Equal(t, c, res.Items[i].Category)
		assert.Equal(t, c.String(), res.Items[i].Name)
		assert.Equal(t, float64(i+1), res.Items[i].Amount)
	}
	assert.Equal(t, model.SourceModel, res.Source)
	assert.Equal(t, model.Urban, res.Area)
}

func TestPredict_PassesFeaturesInTrainingOrder(t *testing.T) {
	var seen []float64
	p := model.PredictorFunc(func(features []float64) ([]float64, error) {
		seen = append([]float64(nil), features...)
		return make([]float64, model.NumCategories), nil
	})

	_, err := Predict(sampleProfile(), p, model.Rural)
	require.NoError(t, err)
	assert.Equal(t, []float64{50000, 15000, 4000, 6000, 2000, 1500, 5000}, seen)
}

func TestPredict_ShapeMismatch(t *testing.T) {
	for _, out := range [][]float64{
		{1, 2, 3, 4, 5},
		{1, 2, 3, 4, 5, 6, 7},
		nil,
	} {
		_, err := Predict(sampleProfile(), constant(out...), model.Rural)
		assert.ErrorIs(t, err, ErrShapeMismatch, "len=%d", len(out))
	}
}

func TestPredict_WrapsPredictorError(t *testing.T) {
	boom := errors.New("singular matrix")
	p := model.PredictorFunc(func([]float64) ([]float64, error) { return nil, boom })

	_, err := Predict(sampleProfile(), p, model.Rural)
	assert.ErrorIs(t, err, ErrPredictionFailed)
	assert.ErrorIs(t, err, boom)
}

func TestPredict_RejectsNonFiniteOutput(t *testing.T) {
	_, err := Predict(sampleProfile(), constant(1, 2, 3, math.NaN(), 5, 6), model.Rural)
	assert.ErrorIs(t, err, ErrPredictionFailed)
}

func TestPredict_RejectsInvalidProfile(t *testing.T) {
	p := sampleProfile()
	p.FoodExpense = -1
	_, err := Predict(p, constant(1, 2, 3, 4, 5, 6), model.Rural)
	assert.ErrorIs(t, err, model.ErrInvalidProfile)
}

func TestPredict_NilPredictor(t *testing.T) {
	_, err := Predict(sampleProfile(), nil, model.Rural)
	assert.ErrorIs(t, err, ErrPredictionFailed)
}

func TestPredict_AlwaysSixPairs(t *testing.T) {
	faker := gofakeit.New(42)
	p := model.PredictorFunc(func(features []float64) ([]float64, error) {
		out := make([]float64, model.NumCategories)
		for i := range out {
			out[i] = features[0] * float64(i+1) / 100
		}
		return out, nil
	})

	for i := 0; i < 200; i++ {
		profile := model.FinancialProfile{
			Income:                faker.Float64Range(0, 500000),
			HousingExpense:        faker.Float64Range(0, 100000),
			TransportationExpense: faker.Float64Range(0, 50000),
			FoodExpense:           faker.Float64Range(0, 50000),
			UtilitiesExpense:      faker.Float64Range(0, 20000),
			EntertainmentExpense:  faker.Float64Range(0, 20000),
			Savings:               faker.Float64Range(0, 100000),
		}
		res, err := Predict(profile, p, model.Urban)
		require.NoError(t, err)
		require.Len(t, res.Items, model.NumCategories)
		for j, c := range model.Categories() {
			assert.Equal(t, c, res.Items[j].Category)
		}
	}
}
