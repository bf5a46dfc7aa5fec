package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nailsizes/nailsizes/internal/assetcache"
	"github.com/nailsizes/nailsizes/internal/ui"
)

var cacheCmd = &cobra.Command{
	Use:     "cache",
	GroupID: "app",
	Short:   "Manage the offline asset cache",
	Long: `The offline asset cache holds one generation of the application shell
per manifest version (bucket "<cache>-<version>"). serve installs the
manifest's version on start; these commands inspect and drive it by hand.`,
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cached generations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		w, storage, err := openCache()
		if err != nil {
			fatalf("%v", err)
		}
		defer storage.Close()
		printCacheStatus(ctx, cmd, w, storage)
	},
}

var cacheInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Fetch every manifest asset and activate the new generation",
	Long: `Fetch every asset listed in the manifest from --asset-dir, --origin or the
shell built into the binary, and store them as the manifest version's bucket, then activate it and delete
every other bucket. If any fetch fails nothing is written and the previous
generation stays active.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		w, storage, err := openCache()
		if err != nil {
			fatalf("%v", err)
		}
		defer storage.Close()

		if err := w.Install(ctx); err != nil {
			fatalf("install failed: %v", err)
		}
		if err := w.Activate(ctx); err != nil {
			fatalf("activate failed: %v", err)
		}
		fmt.Printf("%s Installed and activated %s (%d assets)\n",
			ui.RenderPass("✓"), w.Manifest().Bucket(), len(w.Manifest().Assets))
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every cached generation",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		w, storage, err := openCache()
		if err != nil {
			fatalf("%v", err)
		}
		defer storage.Close()

		n, err := w.Purge(cmd.Context())
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Deleted %d bucket(s)\n", ui.RenderPass("✓"), n)
	},
}

// printCacheStatus reads the persisted state only; it never installs.
func printCacheStatus(ctx context.Context, cmd *cobra.Command, w *assetcache.Worker, storage *assetcache.Storage) {
	st, err := w.Status(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	if st.Active, err = storage.Active(ctx); err != nil {
		fatalf("%v", err)
	}

	fmt.Printf("\n%s Asset Cache\n\n", ui.RenderAccent("▣"))
	fmt.Printf("Location: %s\n", cfg.CachePath)
	fmt.Printf("Manifest: %s\n", st.Bucket)
	active := st.Active
	if active == "" {
		active = ui.RenderWarn("none")
	}
	fmt.Printf("Active: %s\n", active)

	rows := make([][]string, 0, len(st.Buckets))
	for _, b := range st.Buckets {
		n, err := storage.Count(ctx, b)
		if err != nil {
			fatalf("%v", err)
		}
		mark := ""
		if b == st.Active {
			mark = ui.RenderPass("active")
		}
		rows = append(rows, []string{b, fmt.Sprint(n), mark})
	}
	if len(rows) > 0 {
		fmt.Println()
		ui.Table(cmd.OutOrStdout(), []string{"BUCKET", "ASSETS", ""}, rows)
	}
	if st.Active != st.Bucket {
		fmt.Printf("\n%s %s is not installed; run 'nailsizes cache install'\n", ui.RenderWarn("⚠"), st.Bucket)
	}
	fmt.Println()
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd, cacheInstallCmd, cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
