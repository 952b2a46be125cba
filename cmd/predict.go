package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/budgetopt/budgetopt/internal/cli"
	"github.com/budgetopt/budgetopt/internal/model"
	"github.com/budgetopt/budgetopt/internal/predict"
)

var (
	flagProfile     model.FinancialProfile
	flagInteractive bool
	flagJSON        bool
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict a budget allocation from a financial profile",
	Example: "  budgetopt predict --area rural --income 10000 --housing 2500 --food 1500\n" +
		"  budgetopt predict -i",
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.Float64Var(&flagProfile.Income, "income", 0, "Monthly income")
	f.Float64Var(&flagProfile.HousingExpense, "housing", 0, "Housing expense")
	f.Float64Var(&flagProfile.TransportationExpense, "transportation", 0, "Transportation expense")
	f.Float64Var(&flagProfile.FoodExpense, "food", 0, "Food expense")
	f.Float64Var(&flagProfile.UtilitiesExpense, "utilities", 0, "Utilities expense")
	f.Float64Var(&flagProfile.EntertainmentExpense, "entertainment", 0, "Entertainment expense")
	f.Float64Var(&flagProfile.Savings, "savings", 0, "Current savings")
	f.BoolVarP(&flagInteractive, "interactive", "i", false, "Prompt for the profile")
	f.BoolVar(&flagJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, _ []string) error {
	area, err := resolveArea()
	if err != nil {
		return err
	}
	profile := flagProfile

	if flagInteractive {
		if err := promptProfile(&area, &profile); err != nil {
			return err
		}
	}

	loader, closeLoader, err := newLoader(cmd.Context())
	if err != nil {
		return err
	}
	defer closeLoader()

	p, err := loader.Load(cmd.Context(), area)
	if err != nil {
		return err
	}
	res, err := predict.Predict(profile, p, area)
	if err != nil {
		return err
	}

	return printResult(res, fmt.Sprintf("PREDICTED BUDGET  %s", area))
}

func printResult(res model.AllocationResult, title string) error {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Println()
	fmt.Print(cli.RenderAllocation(title, res, cfg.General.Currency))
	fmt.Println()
	return nil
}

// promptProfile asks for the area and every profile field.
func promptProfile(area *model.AreaType, p *model.FinancialProfile) error {
	areaKey := area.Key()
	fields := []struct {
		title string
		dst   *float64
		raw   string
	}{
		{title: "Monthly income", dst: &p.Income},
		{title: "Housing expense", dst: &p.HousingExpense},
		{title: "Transportation expense", dst: &p.TransportationExpense},
		{title: "Food expense", dst: &p.FoodExpense},
		{title: "Utilities expense", dst: &p.UtilitiesExpense},
		{title: "Entertainment expense", dst: &p.EntertainmentExpense},
		{title: "Savings", dst: &p.Savings},
	}

	inputs := []huh.Field{areaSelect(&areaKey)}
	for i := range fields {
		fld := &fields[i]
		if *fld.dst != 0 {
			fld.raw = fmt.Sprint(*fld.dst)
		}
		inputs = append(inputs, huh.NewInput().
			Title(fld.title).
			Prompt(cfg.General.Currency+" ").
			Value(&fld.raw).
			Validate(validAmount))
	}

	if err := huh.NewForm(huh.NewGroup(inputs...)).Run(); err != nil {
		return err
	}

	parsed, err := model.ParseAreaType(areaKey)
	if err != nil {
		return err
	}
	*area = parsed
	for _, fld := range fields {
		v, err := cli.ParseAmount(fld.raw, cfg.General.Currency)
		if err != nil {
			return err
		}
		*fld.dst = v
	}
	return nil
}

func areaSelect(dst *string) *huh.Select[string] {
	opts := make([]huh.Option[string], 0, len(model.AreaTypes()))
	for _, a := range model.AreaTypes() {
		opts = append(opts, huh.NewOption(a.String(), a.Key()))
	}
	return huh.NewSelect[string]().
		Title("Area type").
		Options(opts...).
		Value(dst)
}

func validAmount(s string) error {
	v, err := cli.ParseAmount(s, cfg.General.Currency)
	if err != nil {
		return err
	}
	if v < 0 {
		return errors.New("amount cannot be negative")
	}
	return nil
}
