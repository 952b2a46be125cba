package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/budgetopt/budgetopt/internal/cli"
	"github.com/budgetopt/budgetopt/internal/model"
	"github.com/budgetopt/budgetopt/internal/pipeline"
)

var (
	flagBatchOutput  string
	flagBatchRules   bool
	flagBatchWorkers int
)

var batchCmd = &cobra.Command{
	Use:   "batch <profiles.csv>",
	Short: "Allocate budgets for every row of a CSV file",
	Long: "Reads a CSV with a header row (Income, HousingExpense, ... or income,\n" +
		"housing_expense, ...) and an optional area column. Use - for stdin.",
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&flagBatchOutput, "output", "o", "", "Write results as CSV to this file (- for stdout)")
	batchCmd.Flags().BoolVar(&flagBatchRules, "rules", false, "Use the rule-based tables instead of the model")
	batchCmd.Flags().IntVarP(&flagBatchWorkers, "workers", "w", 0, "Parallel workers (default GOMAXPROCS)")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	area, err := resolveArea()
	if err != nil {
		return err
	}

	records, err := readRecords(args[0], area)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("\n  No rows found.")
		return nil
	}

	var (
		runner *pipeline.Runner
		mode   = pipeline.ModeModel
	)
	if flagBatchRules {
		alloc, err := newAllocator()
		if err != nil {
			return err
		}
		runner = pipeline.NewRunner(nil, alloc)
		mode = pipeline.ModeRules
	} else {
		loader, closeLoader, err := newLoader(cmd.Context())
		if err != nil {
			return err
		}
		defer closeLoader()
		runner = pipeline.NewRunner(loader, nil)
	}

	opts := pipeline.Options{Mode: mode, Workers: flagBatchWorkers}
	var bar *progressbar.ProgressBar
	if !flagQuiet {
		bar = newProgressBar(len(records))
		opts.Progress = func(_, _ int) { _ = bar.Add(1) }
	}

	start := time.Now()
	res, err := runner.Run(cmd.Context(), records, opts)
	if err != nil {
		return err
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Allocated %s rows in %s (%d failed, %d negative savings)\n",
			cli.FormatNumber(int64(res.Succeeded)),
			time.Since(start).Round(time.Millisecond),
			res.Failed,
			res.Warnings,
		)
	}

	if flagBatchOutput != "" {
		return writeBatchCSV(flagBatchOutput, res)
	}
	printBatchTable(res)
	return nil
}

func readRecords(path string, area model.AreaType) ([]pipeline.Record, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path) //nolint:gosec // path is chosen by the local user
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	records, err := pipeline.ReadProfiles(r, area)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func writeBatchCSV(path string, res *pipeline.BatchResult) error {
	if path == "-" {
		return pipeline.WriteResults(os.Stdout, res)
	}
	f, err := os.Create(path) //nolint:gosec // path is chosen by the local user
	if err != nil {
		return err
	}
	if err := pipeline.WriteResults(f, res); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Wrote %s\n", path)
	}
	return nil
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(!flagNoColor),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("  Allocating"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}

func printBatchTable(res *pipeline.BatchResult) {
	headers := []string{"Line", "Area"}
	headers = append(headers, model.CategoryNames()...)
	headers = append(headers, "Note")

	rows := make([][]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		cells := []string{strconv.Itoa(row.Record.Line), row.Record.Area.String()}
		note := ""
		switch {
		case row.Err != nil:
			for range model.Categories() {
				cells = append(cells, "-")
			}
			note = row.Err.Error()
		default:
			for _, c := range model.Categories() {
				cells = append(cells, cli.FormatAmount(row.Result.Amount(c), ""))
			}
			if row.Result.NegativeSavings {
				note = "negative savings"
			}
		}
		rows = append(rows, append(cells, note))
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   fmt.Sprintf("Budget allocations (%s)", cfg.General.Currency),
		Headers: headers,
		Rows:    rows,
	}))
	if res.Warnings > 0 {
		fmt.Println(cli.RenderWarning(cli.NegativeSavingsWarning))
	}
	fmt.Println()
}
