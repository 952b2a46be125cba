package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/budgetopt/budgetopt/internal/cli"
	"github.com/budgetopt/budgetopt/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	path := configPath()
	fmt.Printf("  Config file: %s\n", path)
	if config.Exists(path) {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Default area: %s\n", cfg.DefaultAreaType())
	fmt.Printf("    Currency:     %s\n", cfg.General.Currency)
	fmt.Println()

	fmt.Println("  [Storage]")
	switch cfg.Storage.Backend {
	case config.BackendS3:
		fmt.Println("    Backend: s3")
		fmt.Printf("    Bucket:  %s\n", cfg.Storage.S3.Bucket)
		if cfg.Storage.S3.Prefix != "" {
			fmt.Printf("    Prefix:  %s\n", cfg.Storage.S3.Prefix)
		}
		if cfg.Storage.S3.Endpoint != "" {
			fmt.Printf("    Endpoint: %s\n", cfg.Storage.S3.Endpoint)
		}
	default:
		fmt.Println("    Backend:   file")
		fmt.Printf("    Model dir: %s\n", cfg.Storage.ModelDir)
	}
	fmt.Printf("    Cache:     %s\n", config.CachePath())
	fmt.Println()

	fmt.Println("  [Server]")
	fmt.Printf("    Address: %s\n", cfg.Server.Addr)
	if cfg.Server.ReloadEvery != "" {
		fmt.Printf("    Reload:  every %s\n", cfg.Server.ReloadEvery)
	} else {
		fmt.Println("    Reload:  disabled")
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		fmt.Printf("    CORS:    %s\n", strings.Join(cfg.Server.CORSOrigins, ", "))
	}
	fmt.Println()

	fmt.Println("  [Log]")
	fmt.Printf("    Level:  %s\n", cfg.Log.Level)
	fmt.Printf("    Pretty: %v\n", cfg.Log.Pretty)
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cli.ActivePalette().Name)
	fmt.Println()

	fmt.Print(cli.RenderPercentageTables(cfg.Rules.Rural.Percentages(), cfg.Rules.Urban.Percentages()))
	fmt.Println()

	fmt.Println("  Run `budgetopt setup` to reconfigure.")
	return nil
}
