package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/budgetopt/budgetopt/internal/artifact"
	"github.com/budgetopt/budgetopt/internal/cli"
)

var flagModelsCheck bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the model artifacts available for each area",
	RunE:  runModels,
}

func init() {
	modelsCmd.Flags().BoolVar(&flagModelsCheck, "check", false, "Load every active artifact and report decode errors")
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, _ []string) error {
	loader, closeLoader, err := newLoader(cmd.Context())
	if err != nil {
		return err
	}
	defer closeLoader()

	src := loader.Source()
	found, err := artifact.Scan(cmd.Context(), src)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("MODEL ARTIFACTS  " + src.String()))
	fmt.Println()

	if len(found) > 0 {
		rows := make([][]string, 0, len(found))
		for _, d := range found {
			active := ""
			if d.Active {
				active = "yes"
			}
			rows = append(rows, []string{
				d.Area.String(),
				d.Info.Name,
				string(d.Format),
				cli.FormatNumber(d.Info.Size) + " B",
				d.Info.ModTime.Local().Format("2006-01-02 15:04"),
				active,
			})
		}
		fmt.Print(cli.RenderTable(cli.Table{
			Headers: []string{"Area", "File", "Format", "Size", "Modified", "Active"},
			Rows:    rows,
		}))
	}

	for _, area := range artifact.Missing(found) {
		fmt.Println(cli.RenderWarning(fmt.Sprintf("No %s model (expected %s or %s)",
			area,
			artifact.ArtifactName(area, artifact.FormatJSON),
			artifact.ArtifactName(area, artifact.FormatMsgpack),
		)))
	}

	if flagModelsCheck {
		fmt.Println()
		failed := loader.Warm(cmd.Context())
		for _, d := range found {
			if !d.Active {
				continue
			}
			if err := failed[d.Area]; err != nil {
				fmt.Println(cli.RenderError(fmt.Sprintf("%s: %v", d.Info.Name, err)))
				continue
			}
			fmt.Println(cli.RenderTotal(d.Info.Name, "ok"))
		}
	}

	fmt.Println()
	return nil
}
