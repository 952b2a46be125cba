package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/budgetopt/budgetopt/internal/model"
)

// ErrMissingColumn is returned when the CSV header lacks a required field.
var ErrMissingColumn = errors.New("missing column")

// Record is one input row.
type Record struct {
	// Line is the 1-based line number in the source file.
	Line    int
	Area    model.AreaType
	Profile model.FinancialProfile
}

// profile column aliases, keyed by normalized header text, mapped to the
// feature index.
var columnIndex = func() map[string]int {
	jsonKeys := []string{
		"income",
		"housing_expense",
		"transportation_expense",
		"food_expense",
		"utilities_expense",
		"entertainment_expense",
		"savings",
	}
	m := make(map[string]int, 2*model.NumFeatures)
	for i, name := range model.FeatureNames() {
		m[normalize(name)] = i
		m[normalize(jsonKeys[i])] = i
	}
	return m
}()

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", " ", "", "-", "").Replace(s)
}

// ReadProfiles parses a CSV with a header row. Columns may be named either
// like the feature names (HousingExpense) or their snake_case keys
// (housing_expense). An optional "area" column selects the area type per
// row; rows without one use defaultArea. Only income is required, other
// profile columns default to zero when absent.
func ReadProfiles(r io.Reader, defaultArea model.AreaType) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	featureCol := make([]int, model.NumFeatures)
	for i := range featureCol {
		featureCol[i] = -1
	}
	areaCol := -1
	for col, h := range header {
		key := normalize(strings.TrimPrefix(h, "\ufeff"))
		if key == "area" || key == "areatype" {
			areaCol = col
			continue
		}
		if idx, ok := columnIndex[key]; ok {
			featureCol[idx] = col
		}
	}
	if featureCol[0] < 0 {
		return nil, fmt.Errorf("%w: income", ErrMissingColumn)
	}

	var out []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		if blank(row) {
			continue
		}

		features := make([]float64, model.NumFeatures)
		for idx, col := range featureCol {
			if col < 0 || col >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[col])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, model.FeatureNames()[idx], err)
			}
			features[idx] = v
		}

		area := defaultArea
		if areaCol >= 0 && areaCol < len(row) && strings.TrimSpace(row[areaCol]) != "" {
			area, err = model.ParseAreaType(row[areaCol])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}

		// Validation is deferred to the allocation step so one bad row
		// shows up as a failed result instead of aborting the file.
		profile, err := model.ProfileFromFeatures(features)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, Record{Line: line, Area: area, Profile: profile})
	}

	return out, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteResults writes one output row per input record: line, area, source,
// one column per category, a negative-savings flag and any error.
func WriteResults(w io.Writer, res *BatchResult) error {
	cw := csv.NewWriter(w)

	header := []string{"line", "area", "source"}
	for _, c := range model.Categories() {
		header = append(header, c.Key())
	}
	header = append(header, "negative_savings", "error")
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range res.Rows {
		out := []string{
			strconv.Itoa(row.Record.Line),
			row.Record.Area.Key(),
			string(row.Result.Source),
		}
		for _, c := range model.Categories() {
			if row.Err != nil {
				out = append(out, "")
				continue
			}
			out = append(out, strconv.FormatFloat(row.Result.Amount(c), 'f', 2, 64))
		}
		errText := ""
		if row.Err != nil {
			errText = row.Err.Error()
		}
		out = append(out, strconv.FormatBool(row.Err == nil && row.Result.NegativeSavings), errText)
		if err := cw.Write(out); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
