package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nailsizes/nailsizes/internal/store"
	"github.com/nailsizes/nailsizes/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "app",
	Short:   "Show database and asset cache status",
	Long: `Display where data lives and what it holds.

Shows:
  - Config file, data directory and database location
  - Schema version, file size and record counts
  - Manifest and active asset cache generation`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		fmt.Printf("\n%s Nail Sizes Status\n\n", ui.RenderAccent("▣"))
		if cfg.File != "" {
			fmt.Printf("Config: %s\n", cfg.File)
		}
		fmt.Printf("Data: %s\n", cfg.DataDir)

		db, err := openStore(ctx)
		if err != nil {
			label := "Database error"
			if store.IsUnavailable(err) {
				label = "Database unavailable"
			}
			fmt.Printf("%s %s: %v\n", ui.RenderFail("✗"), label, err)
		} else {
			defer db.Close()
			st, err := db.Stats(ctx)
			if err != nil {
				fatalf("%v", err)
			}
			fmt.Printf("Database: %s\n", st.Path)
			fmt.Printf("Schema: v%d\n", st.SchemaVersion)
			fmt.Printf("Size: %s\n", formatSize(st.SizeBytes))
			fmt.Printf("Styles: %d\n", st.Styles)
			fmt.Printf("Clients: %d\n", st.Clients)
			fmt.Printf("Measurements: %d\n", st.Measurements)
		}

		w, storage, err := openCache()
		if err != nil {
			fmt.Printf("%s Asset cache: %v\n", ui.RenderFail("✗"), err)
			return
		}
		defer storage.Close()
		printCacheStatus(ctx, cmd, w, storage)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
