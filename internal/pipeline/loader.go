// Package pipeline runs budget predictions over many profiles at once.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/budgetopt/budgetopt/internal/model"
	"github.com/budgetopt/budgetopt/internal/predict"
	"github.com/budgetopt/budgetopt/internal/rules"
)

// PredictorSource returns the predictor for an area type.
// *artifact.Loader satisfies it.
type PredictorSource interface {
	Load(ctx context.Context, area model.AreaType) (model.Predictor, error)
}

// Mode selects how each record is allocated.
type Mode string

const (
	ModeModel Mode = "model"
	ModeRules Mode = "rules"
)

// Options configures a batch run.
type Options struct {
	Mode Mode
	// Workers defaults to GOMAXPROCS.
	Workers  int
	Progress ProgressFunc
}

// ProgressFunc is called as records complete.
// current is the number of records processed so far, total is the total count.
type ProgressFunc func(current, total int)

// RowResult is the outcome for one input record.
type RowResult struct {
	Record Record
	Result model.AllocationResult
	Err    error
}

// BatchResult holds the output of a batch run in input order.
type BatchResult struct {
	Rows      []RowResult
	Succeeded int
	Failed    int
	Warnings  int
}

// Runner allocates budgets for a set of records with a bounded worker pool.
type Runner struct {
	models PredictorSource
	rules  *rules.Allocator
}

// NewRunner returns a runner. Either dependency may be nil if the matching
// mode is never used.
func NewRunner(models PredictorSource, allocator *rules.Allocator) *Runner {
	return &Runner{models: models, rules: allocator}
}

// Run processes every record. Per-record failures are reported in the
// row's Err and do not stop the batch; a cancelled context does.
func (r *Runner) Run(ctx context.Context, records []Record, opts Options) (*BatchResult, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeModel
	}
	switch {
	case mode == ModeModel && r.models == nil:
		return nil, errors.New("batch: no model source configured")
	case mode == ModeRules && r.rules == nil:
		return nil, errors.New("batch: no rules allocator configured")
	case mode != ModeModel && mode != ModeRules:
		return nil, fmt.Errorf("batch: unknown mode %q", mode)
	}

	result := &BatchResult{Rows: make([]RowResult, len(records))}
	if len(records) == 0 {
		return result, nil
	}

	// Resolve each needed predictor once, up front.
	predictors := map[model.AreaType]model.Predictor{}
	loadErrs := map[model.AreaType]error{}
	if mode == ModeModel {
		for _, rec := range records {
			if _, seen := predictors[rec.Area]; seen {
				continue
			}
			if _, seen := loadErrs[rec.Area]; seen {
				continue
			}
			p, err := r.models.Load(ctx, rec.Area)
			if err != nil {
				loadErrs[rec.Area] = err
				continue
			}
			predictors[rec.Area] = p
		}
	}

	numWorkers := opts.Workers
	if numWorkers < 1 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(records) {
		numWorkers = len(records)
	}

	work := make(chan int, len(records))
	for i := range records {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	var processed atomic.Int64

	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				if ctx.Err() != nil {
					return
				}
				rec := records[idx]
				row := RowResult{Record: rec}
				switch mode {
				case ModeRules:
					row.Result, row.Err = r.rules.Allocate(rec.Profile.Income, rec.Area)
				default:
					if err, failed := loadErrs[rec.Area]; failed {
						row.Err = err
					} else {
						row.Result, row.Err = predict.Predict(rec.Profile, predictors[rec.Area], rec.Area)
					}
				}
				result.Rows[idx] = row

				n := processed.Add(1)
				if opts.Progress != nil {
					opts.Progress(int(n), len(records))
				}
			}
		}()
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, row := range result.Rows {
		if row.Err != nil {
			result.Failed++
			continue
		}
		result.Succeeded++
		if row.Result.NegativeSavings {
			result.Warnings++
		}
	}

	return result, nil
}
