package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"

	"github.com/budgetopt/budgetopt/internal/model"
)

var (
	// ErrInvalidArtifact is returned when an artifact decodes but is malformed.
	ErrInvalidArtifact = errors.New("invalid model artifact")
	// ErrFeatureOrder is returned when an artifact was trained on different columns.
	ErrFeatureOrder = errors.New("artifact feature order does not match profile")
)

// KindLinear is the only artifact kind currently understood.
const KindLinear = "linear"

// Format is an artifact serialization.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// Extension returns the file suffix for f, including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// formats lists serializations in lookup priority order.
var formats = []Format{FormatJSON, FormatMsgpack}

// FormatFromName infers the serialization from a file name.
func FormatFromName(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON, true
	case ".msgpack", ".mpk":
		return FormatMsgpack, true
	default:
		return "", false
	}
}

// Scaler standardizes features before the linear map: (x - Mean) / Scale.
type Scaler struct {
	Mean  []float64 `json:"mean" msgpack:"mean"`
	Scale []float64 `json:"scale" msgpack:"scale"`
}

// Document is the serialized form of a linear regression artifact.
type Document struct {
	Kind         string      `json:"kind" msgpack:"kind"`
	Area         string      `json:"area,omitempty" msgpack:"area,omitempty"`
	FeatureNames []string    `json:"feature_names" msgpack:"feature_names"`
	Targets      []string    `json:"targets,omitempty" msgpack:"targets,omitempty"`
	Coefficients [][]float64 `json:"coefficients" msgpack:"coefficients"`
	Intercept    []float64   `json:"intercept" msgpack:"intercept"`
	Scaler       *Scaler     `json:"scaler,omitempty" msgpack:"scaler,omitempty"`
}

// Decode reads a document in the given format.
func Decode(r io.Reader, f Format) (*Document, error) {
	var doc Document
	switch f {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: decoding json: %w", ErrInvalidArtifact, err)
		}
	case FormatMsgpack:
		if err := msgpack.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: decoding msgpack: %w", ErrInvalidArtifact, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidArtifact, f)
	}
	return &doc, nil
}

// Encode writes doc in the given format.
func Encode(w io.Writer, doc *Document, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(doc)
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidArtifact, f)
	}
}

// Validate checks the document's shape and column contract.
func (d *Document) Validate() error {
	if d.Kind != KindLinear {
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidArtifact, d.Kind)
	}

	want := model.FeatureNames()
	if len(d.FeatureNames) != len(want) {
		return fmt.Errorf("%w: %d features, want %v", ErrFeatureOrder, len(d.FeatureNames), want)
	}
	for i := range want {
		if d.FeatureNames[i] != want[i] {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrFeatureOrder, i, d.FeatureNames[i], want[i])
		}
	}

	if len(d.Targets) > 0 {
		cats := model.CategoryNames()
		if len(d.Targets) != len(cats) {
			return fmt.Errorf("%w: %d targets, want %d", ErrInvalidArtifact, len(d.Targets), len(cats))
		}
		for i := range cats {
			if !strings.EqualFold(d.Targets[i], cats[i]) {
				return fmt.Errorf("%w: target %d is %q, want %q", ErrInvalidArtifact, i, d.Targets[i], cats[i])
			}
		}
	}

	if len(d.Coefficients) != model.NumCategories {
		return fmt.Errorf("%w: %d coefficient rows, want %d", ErrInvalidArtifact, len(d.Coefficients), model.NumCategories)
	}
	for i, row := range d.Coefficients {
		if len(row) != model.NumFeatures {
			return fmt.Errorf("%w: coefficient row %d has %d values, want %d", ErrInvalidArtifact, i, len(row), model.NumFeatures)
		}
		if !allFinite(row) {
			return fmt.Errorf("%w: coefficient row %d is not finite", ErrInvalidArtifact, i)
		}
	}
	if len(d.Intercept) != model.NumCategories || !allFinite(d.Intercept) {
		return fmt.Errorf("%w: intercept must hold %d finite values", ErrInvalidArtifact, model.NumCategories)
	}

	if s := d.Scaler; s != nil {
		if len(s.Mean) != model.NumFeatures || len(s.Scale) != model.NumFeatures {
			return fmt.Errorf("%w: scaler must hold %d means and scales", ErrInvalidArtifact, model.NumFeatures)
		}
		if !allFinite(s.Mean) || !allFinite(s.Scale) {
			return fmt.Errorf("%w: scaler is not finite", ErrInvalidArtifact)
		}
		for i, v := range s.Scale {
			if v == 0 {
				return fmt.Errorf("%w: scaler scale %d is zero", ErrInvalidArtifact, i)
			}
		}
	}
	return nil
}

// LinearModel is a multi-output linear regression. Safe for concurrent use.
type LinearModel struct {
	weights   *mat.Dense    // NumCategories x NumFeatures
	intercept *mat.VecDense // NumCategories
	mean      []float64
	scale     []float64
}

// NewLinearModel validates doc and builds the model.
func NewLinearModel(doc *Document) (*LinearModel, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	data := make([]float64, 0, model.NumCategories*model.NumFeatures)
	for _, row := range doc.Coefficients {
		data = append(data, row...)
	}

	m := &LinearModel{
		weights:   mat.NewDense(model.NumCategories, model.NumFeatures, data),
		intercept: mat.NewVecDense(model.NumCategories, append([]float64(nil), doc.Intercept...)),
	}
	if doc.Scaler != nil {
		m.mean = append([]float64(nil), doc.Scaler.Mean...)
		m.scale = append([]float64(nil), doc.Scaler.Scale...)
	}
	return m, nil
}

// Predict implements model.Predictor.
func (m *LinearModel) Predict(features []float64) ([]float64, error) {
	if len(features) != model.NumFeatures {
		return nil, fmt.Errorf("got %d features, want %d", len(features), model.NumFeatures)
	}

	x := make([]float64, model.NumFeatures)
	for i, v := range features {
		if m.scale != nil {
			v = (v - m.mean[i]) / m.scale[i]
		}
		x[i] = v
	}

	var y mat.VecDense
	y.MulVec(m.weights, mat.NewVecDense(model.NumFeatures, x))
	y.AddVec(&y, m.intercept)

	out := make([]float64, model.NumCategories)
	for i := range out {
		out[i] = y.AtVec(i)
	}
	return out, nil
}

func allFinite(vs []float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
