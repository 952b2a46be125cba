package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/budgetopt/budgetopt/internal/artifact"
	"github.com/budgetopt/budgetopt/internal/model"
	"github.com/budgetopt/budgetopt/internal/predict"
	"github.com/budgetopt/budgetopt/internal/rules"
)

const maxBodyBytes = 1 << 20

// Error codes returned in ErrorResponse.Code.
const (
	CodeArtifactNotFound = "artifact_not_found"
	CodeInvalidIncome    = "invalid_income"
	CodeInvalidProfile   = "invalid_profile"
	CodeInvalidRequest   = "invalid_request"
	CodePredictionFailed = "prediction_failed"
	CodeShapeMismatch    = "shape_mismatch"
	CodeInternal         = "internal"
)

// ErrorResponse is the JSON body for every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// PredictRequest is the body of POST /v1/predict.
type PredictRequest struct {
	Area    string                  `json:"area" validate:"required,oneof=rural urban Rural Urban"`
	Profile *model.FinancialProfile `json:"profile" validate:"required"`
}

// AllocateRequest is the body of POST /v1/allocate.
type AllocateRequest struct {
	Area   string  `json:"area" validate:"required,oneof=rural urban Rural Urban"`
	Income float64 `json:"income"`
}

// CategoriesResponse is served at /v1/categories.
type CategoriesResponse struct {
	Categories []string                      `json:"categories"`
	Features   []string                      `json:"features"`
	Tables     map[string]map[string]float64 `json:"tables"`
}

// ModelInfo describes one discovered artifact.
type ModelInfo struct {
	Area     string `json:"area"`
	Name     string `json:"name"`
	Format   string `json:"format"`
	Location string `json:"location"`
	Size     int64  `json:"size_bytes"`
	Active   bool   `json:"active"`
}

// ModelsResponse is served at /v1/models.
type ModelsResponse struct {
	Source  string      `json:"source"`
	Models  []ModelInfo `json:"models"`
	Missing []string    `json:"missing"`
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.Status()
	for _, v := range st.Models {
		if v != "ok" && v != "unknown" {
			st.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Service) handleCategories(w http.ResponseWriter, _ *http.Request) {
	tables := s.cfg.Allocator.Tables()
	writeJSON(w, http.StatusOK, CategoriesResponse{
		Categories: model.CategoryNames(),
		Features:   model.FeatureNames(),
		Tables: map[string]map[string]float64{
			model.Rural.Key(): tables.Rural.Map(),
			model.Urban.Key(): tables.Urban.Map(),
		},
	})
}

func (s *Service) handleModels(w http.ResponseWriter, r *http.Request) {
	src := s.cfg.Loader.Source()
	found, err := artifact.Scan(r.Context(), src)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := ModelsResponse{Source: src.String(), Models: []ModelInfo{}, Missing: []string{}}
	for _, d := range found {
		resp.Models = append(resp.Models, ModelInfo{
			Area:     d.Area.Key(),
			Name:     d.Info.Name,
			Format:   string(d.Format),
			Location: d.Info.Location,
			Size:     d.Info.Size,
			Active:   d.Active,
		})
	}
	for _, a := range artifact.Missing(found) {
		resp.Missing = append(resp.Missing, a.Key())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	area, err := model.ParseAreaType(req.Area)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.cfg.Loader.Load(r.Context(), area)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := predict.Predict(*req.Profile, p, area)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.metrics.allocations.WithLabelValues(area.Key(), string(res.Source)).Inc()
	if res.NegativeSavings {
		s.metrics.negativeSavings.Inc()
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req AllocateRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	area, err := model.ParseAreaType(req.Area)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.cfg.Allocator.Allocate(req.Income, area)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.metrics.allocations.WithLabelValues(area.Key(), string(res.Source)).Inc()
	writeJSON(w, http.StatusOK, res)
}

// errBadRequest marks body decoding and validation failures.
var errBadRequest = errors.New("bad request")

func (s *Service) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if err := s.validate.Struct(dst); err != nil {
		if profileField(err) {
			return fmt.Errorf("%w: %s", model.ErrInvalidProfile, describeValidation(err))
		}
		return fmt.Errorf("%w: %s", errBadRequest, describeValidation(err))
	}
	return nil
}

// profileField reports whether validation failed inside the profile object.
func profileField(err error) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		if strings.Contains(fe.StructNamespace(), ".Profile.") {
			return true
		}
	}
	return false
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(parts, "; ")
}

// statusFor maps domain errors to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, artifact.ErrArtifactNotFound):
		return http.StatusNotFound, CodeArtifactNotFound
	case errors.Is(err, rules.ErrInvalidIncome):
		return http.StatusBadRequest, CodeInvalidIncome
	case errors.Is(err, model.ErrInvalidProfile):
		return http.StatusBadRequest, CodeInvalidProfile
	case errors.Is(err, errBadRequest), errors.Is(err, model.ErrUnknownArea):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, predict.ErrShapeMismatch):
		return http.StatusInternalServerError, CodeShapeMismatch
	case errors.Is(err, predict.ErrPredictionFailed),
		errors.Is(err, artifact.ErrInvalidArtifact),
		errors.Is(err, artifact.ErrFeatureOrder):
		return http.StatusInternalServerError, CodePredictionFailed
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	reqID := RequestIDFrom(r.Context())
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("request_id", reqID).Str("code", code).Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code, RequestID: reqID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
