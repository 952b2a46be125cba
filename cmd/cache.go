package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/budgetopt/budgetopt/internal/cli"
	"github.com/budgetopt/budgetopt/internal/config"
	"github.com/budgetopt/budgetopt/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "List decoded artifacts held in the local cache",
	RunE:  runCacheList,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached artifact",
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheList(_ *cobra.Command, _ []string) error {
	cache, err := store.Open(config.CachePath())
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()

	recs, err := cache.ListArtifacts()
	if err != nil {
		return fmt.Errorf("listing cache: %w", err)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("ARTIFACT CACHE  " + config.CachePath()))
	fmt.Println()

	if len(recs) == 0 {
		fmt.Println("  Cache is empty.")
		fmt.Println()
		return nil
	}

	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.Area,
			r.Location,
			r.Format,
			cli.FormatNumber(r.SizeBytes) + " B",
			r.CachedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Area", "Location", "Format", "Size", "Cached"},
		Rows:    rows,
	}))
	fmt.Println()
	return nil
}

func runCacheClear(_ *cobra.Command, _ []string) error {
	cache, err := store.Open(config.CachePath())
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()

	recs, err := cache.ListArtifacts()
	if err != nil {
		return fmt.Errorf("listing cache: %w", err)
	}
	if err := cache.Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	fmt.Printf("  Removed %d cached artifact(s)\n", len(recs))
	return nil
}
