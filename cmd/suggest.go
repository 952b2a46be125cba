package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/budgetopt/budgetopt/internal/cli"
	"github.com/budgetopt/budgetopt/internal/model"
	"github.com/budgetopt/budgetopt/internal/rules"
)

const invalidIncomeMsg = "Please enter a valid income."

var flagIncome float64

var suggestCmd = &cobra.Command{
	Use:     "suggest",
	Short:   "Suggest a rule-based allocation for an income",
	Example: "  budgetopt suggest --area urban --income 10000",
	RunE:    runSuggest,
}

func init() {
	suggestCmd.Flags().Float64Var(&flagIncome, "income", 0, "Monthly income")
	suggestCmd.Flags().BoolVarP(&flagInteractive, "interactive", "i", false, "Prompt for area and income")
	suggestCmd.Flags().BoolVar(&flagJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(_ *cobra.Command, _ []string) error {
	area, err := resolveArea()
	if err != nil {
		return err
	}
	income := flagIncome

	if flagInteractive {
		if err := promptIncome(&area, &income); err != nil {
			return err
		}
	}

	alloc, err := newAllocator()
	if err != nil {
		return err
	}

	res, err := alloc.Allocate(income, area)
	if errors.Is(err, rules.ErrInvalidIncome) {
		fmt.Fprintln(os.Stderr, cli.RenderError(invalidIncomeMsg))
		return fmt.Errorf("%w: %w", errReported, err)
	}
	if err != nil {
		return err
	}

	return printResult(res, fmt.Sprintf("SUGGESTED ALLOCATION  %s", area))
}

func promptIncome(area *model.AreaType, income *float64) error {
	areaKey := area.Key()
	raw := ""
	if *income != 0 {
		raw = fmt.Sprint(*income)
	}

	form := huh.NewForm(huh.NewGroup(
		areaSelect(&areaKey),
		huh.NewInput().
			Title("Monthly income").
			Prompt(cfg.General.Currency+" ").
			Value(&raw).
			Validate(validAmount),
	))
	if err := form.Run(); err != nil {
		return err
	}

	parsed, err := model.ParseAreaType(areaKey)
	if err != nil {
		return err
	}
	v, err := cli.ParseAmount(raw, cfg.General.Currency)
	if err != nil {
		return err
	}
	*area, *income = parsed, v
	return nil
}
