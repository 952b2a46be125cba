package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/budgetopt/budgetopt/internal/cli"
	"github.com/budgetopt/budgetopt/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

// setupValues holds the wizard's answers before they are applied.
type setupValues struct {
	area     string
	currency string
	backend  string
	modelDir string
	bucket   string
	prefix   string
	theme    string
}

func runSetup(_ *cobra.Command, _ []string) error {
	path := configPath()

	// Start from the file alone so env overrides are not persisted.
	fileCfg, err := config.LoadFrom(path)
	if err != nil {
		return err
	}

	vals := setupValues{
		area:     fileCfg.DefaultAreaType().Key(),
		currency: fileCfg.General.Currency,
		backend:  fileCfg.Storage.Backend,
		modelDir: fileCfg.Storage.ModelDir,
		bucket:   fileCfg.Storage.S3.Bucket,
		prefix:   fileCfg.Storage.S3.Prefix,
		theme:    cli.PaletteByName(fileCfg.Appearance.Theme).Name,
	}
	if vals.backend == "" {
		vals.backend = config.BackendFile
	}

	if err := newSetupForm(&vals).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup cancelled, nothing saved.")
			return nil
		}
		return err
	}

	fileCfg.General.DefaultArea = vals.area
	fileCfg.General.Currency = strings.TrimSpace(vals.currency)
	fileCfg.Storage.Backend = vals.backend
	fileCfg.Storage.ModelDir = strings.TrimSpace(vals.modelDir)
	fileCfg.Storage.S3.Bucket = strings.TrimSpace(vals.bucket)
	fileCfg.Storage.S3.Prefix = strings.TrimSpace(vals.prefix)
	fileCfg.Appearance.Theme = vals.theme

	if err := fileCfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveTo(path, fileCfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", path)
	fmt.Println("  Run `budgetopt setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}

func newSetupForm(v *setupValues) *huh.Form {
	themes := make([]huh.Option[string], 0, len(cli.Palettes))
	for _, p := range cli.Palettes {
		themes = append(themes, huh.NewOption(p.Name, p.Name))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to budgetopt!").
				Description("A few questions and you're set."),
			areaSelect(&v.area),
			huh.NewInput().
				Title("Currency symbol").
				Value(&v.currency).
				Validate(required("currency")),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where are the model artifacts stored?").
				Options(
					huh.NewOption("Local directory", config.BackendFile),
					huh.NewOption("S3 bucket", config.BackendS3),
				).
				Value(&v.backend),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Model directory").
				Description("Holds rural_model.json and urban_model.json").
				Value(&v.modelDir).
				Validate(required("model directory")),
		).WithHideFunc(func() bool { return v.backend != config.BackendFile }),
		huh.NewGroup(
			huh.NewInput().
				Title("S3 bucket").
				Value(&v.bucket).
				Validate(required("bucket")),
			huh.NewInput().
				Title("Key prefix (optional)").
				Value(&v.prefix),
		).WithHideFunc(func() bool { return v.backend != config.BackendS3 }),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themes...).
				Value(&v.theme),
		),
	)
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
