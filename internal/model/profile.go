package model

import (
	"errors"
	"fmt"
	"math"
)

// NumFeatures is the width of the feature row fed to a predictor.
const NumFeatures = 7

// ErrInvalidProfile is returned for negative or non-finite profile fields.
var ErrInvalidProfile = errors.New("invalid financial profile")

var featureNames = [NumFeatures]string{
	"Income",
	"HousingExpense",
	"TransportationExpense",
	"FoodExpense",
	"UtilitiesExpense",
	"EntertainmentExpense",
	"Savings",
}

// FinancialProfile is a household's monthly income and spending.
type FinancialProfile struct {
	Income                float64 `json:"income" msgpack:"income" validate:"gte=0"`
	HousingExpense        float64 `json:"housing_expense" msgpack:"housing_expense" validate:"gte=0"`
	TransportationExpense float64 `json:"transportation_expense" msgpack:"transportation_expense" validate:"gte=0"`
	FoodExpense           float64 `json:"food_expense" msgpack:"food_expense" validate:"gte=0"`
	UtilitiesExpense      float64 `json:"utilities_expense" msgpack:"utilities_expense" validate:"gte=0"`
	EntertainmentExpense  float64 `json:"entertainment_expense" msgpack:"entertainment_expense" validate:"gte=0"`
	Savings               float64 `json:"savings" msgpack:"savings" validate:"gte=0"`
}

// FeatureNames returns the column names in the order predictors were trained on.
func FeatureNames() []string {
	out := make([]string, NumFeatures)
	copy(out, featureNames[:])
	return out
}

// Features returns the profile as a feature row in FeatureNames order.
func (p FinancialProfile) Features() []float64 {
	return []float64{
		p.Income,
		p.HousingExpense,
		p.TransportationExpense,
		p.FoodExpense,
		p.UtilitiesExpense,
		p.EntertainmentExpense,
		p.Savings,
	}
}

// ProfileFromFeatures builds a profile from a row in FeatureNames order.
// Only the row width is checked; call Validate before predicting.
func ProfileFromFeatures(row []float64) (FinancialProfile, error) {
	if len(row) != NumFeatures {
		return FinancialProfile{}, fmt.Errorf("%w: %d fields, want %d", ErrInvalidProfile, len(row), NumFeatures)
	}
	p := FinancialProfile{
		Income:                row[0],
		HousingExpense:        row[1],
		TransportationExpense: row[2],
		FoodExpense:           row[3],
		UtilitiesExpense:      row[4],
		EntertainmentExpense:  row[5],
		Savings:               row[6],
	}
	return p, nil
}

// Validate rejects negative, NaN or infinite fields.
func (p FinancialProfile) Validate() error {
	for i, v := range p.Features() {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s = %v", ErrInvalidProfile, featureNames[i], v)
		}
	}
	return nil
}
