package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nailsizes/nailsizes/internal/ui"
)

var stylesCmd = &cobra.Command{
	Use:     "styles",
	GroupID: "data",
	Short:   "Show the style catalog",
	Long: `Show the styles stored on this device.

Styles are seeded from the catalog (built in, or --catalog FILE) the first
time the database is opened, and afterwards only change through import.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		db, err := openStore(ctx)
		if err != nil {
			fatalf("opening database: %v", err)
		}
		defer db.Close()

		styles, err := newApp(db).Styles(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		ui.StyleTable(cmd.OutOrStdout(), styles)

		m, err := loadManifest()
		if err != nil {
			fatalf("%v", err)
		}
		for _, p := range m.MissingStyleImages(styles) {
			fmt.Printf("%s %s is not in the offline manifest\n", ui.RenderWarn("⚠"), p)
		}
	},
}

func init() {
	rootCmd.AddCommand(stylesCmd)
}
