package model

// Source identifies which computation path produced an allocation.
type Source string

const (
	SourceModel Source = "model"
	SourceRules Source = "rules"
)

// Allocation is the amount assigned to one category.
type Allocation struct {
	Category Category `json:"-"`
	Name     string   `json:"category"`
	Amount   float64  `json:"amount"`
}

// AllocationResult is a per-category budget breakdown in canonical order.
type AllocationResult struct {
	Area            AreaType     `json:"area"`
	Source          Source       `json:"source"`
	Items           []Allocation `json:"allocations"`
	NegativeSavings bool         `json:"negative_savings_warning"`
}

// Amount returns the amount for c, or 0 if the result has no such entry.
func (r AllocationResult) Amount(c Category) float64 {
	for _, it := range r.Items {
		if it.Category == c {
			return it.Amount
		}
	}
	return 0
}

// Amounts returns the amounts in result order.
func (r AllocationResult) Amounts() []float64 {
	out := make([]float64, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Amount
	}
	return out
}

// Total sums every allocation.
func (r AllocationResult) Total() float64 {
	var sum float64
	for _, it := range r.Items {
		sum += it.Amount
	}
	return sum
}

// Predictor maps a feature row to one amount per category.
type Predictor interface {
	Predict(features []float64) ([]float64, error)
}

// PredictorFunc adapts a plain function to Predictor.
type PredictorFunc func(features []float64) ([]float64, error)

// Predict calls f.
func (f PredictorFunc) Predict(features []float64) ([]float64, error) {
	return f(features)
}
