package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nailsizes/nailsizes/internal/backup"
	"github.com/nailsizes/nailsizes/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "data",
	Short:   "Export all styles, clients and measurements to a JSON backup",
	Long: `Write the whole store to nail-sizes-backup-YYYY-MM-DD.json.

The file goes to the backup directory (default: <data-dir>/backups) unless
--output names a file, or "-" for stdout. With --s3 the same file is also
uploaded to the configured S3 bucket.

Example usage:
  nailsizes export
  nailsizes export --output ~/Desktop/salon.json
  nailsizes export --s3`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		output, _ := cmd.Flags().GetString("output")
		toS3, _ := cmd.Flags().GetBool("s3")

		db, err := openStore(ctx)
		if err != nil {
			fatalf("opening database: %v", err)
		}
		defer db.Close()

		doc, name, err := newApp(db).Export(ctx)
		if err != nil {
			fatalf("export failed: %v", err)
		}
		data, err := backup.Marshal(doc)
		if err != nil {
			fatalf("export failed: %v", err)
		}

		if output == "-" {
			if err := writeBackup(os.Stdout, data); err != nil {
				fatalf("%v", err)
			}
			return
		}

		sink := backup.DirSink{Dir: cfg.BackupDir}
		if output != "" {
			sink = backup.DirSink{Dir: filepath.Dir(output)}
			name = filepath.Base(output)
		}
		where, err := sink.Put(ctx, name, data)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Exported %d styles, %d clients, %d measurements\n",
			ui.RenderPass("✓"), len(doc.Styles), len(doc.Clients), len(doc.Measurements))
		fmt.Printf("   File: %s\n", where)

		if toS3 {
			s3, err := s3Sink()
			if err != nil {
				fatalf("%v", err)
			}
			where, err := s3.Put(ctx, name, data)
			if err != nil {
				fatalf("%v", err)
			}
			fmt.Printf("   Uploaded: %s\n", where)
		}
	},
}

var importCmd = &cobra.Command{
	Use:     "import [FILE]",
	GroupID: "data",
	Short:   "Replace client data with a JSON backup",
	Long: `Replace the store's contents with a backup file.

Each of "styles", "clients" and "measurements" present in the file replaces
that collection. Collections missing from the file are kept unless
--clear-missing is given. The import is all or nothing: on any error the
store is left exactly as it was.

The data is read from FILE, or with --s3 KEY from the configured bucket.

Example usage:
  nailsizes import nail-sizes-backup-2024-05-01.json
  nailsizes import --s3 nail-sizes-backup-2024-05-01.json --yes`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		yes, _ := cmd.Flags().GetBool("yes")
		clearMissing, _ := cmd.Flags().GetBool("clear-missing")
		s3Key, _ := cmd.Flags().GetString("s3")

		data, source, err := readBackup(ctx, args, s3Key)
		if err != nil {
			fatalf("%v", err)
		}

		if !yes {
			ok, err := ui.Confirm("Replace client data?", fmt.Sprintf("Existing records will be replaced with %s.", source))
			if err != nil {
				fatalf("%v", err)
			}
			if !ok {
				fmt.Println("Import cancelled")
				return
			}
		}

		db, err := openStore(ctx)
		if err != nil {
			fatalf("opening database: %v", err)
		}
		defer db.Close()

		opts := backup.ImportOptions{}
		if clearMissing {
			opts.Missing = backup.ClearMissing
		}
		start := time.Now()
		res, err := newApp(db).Import(ctx, bytes.NewReader(data), opts)
		if err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("%s Import complete in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
		printOutcome("Styles", res.Styles)
		printOutcome("Clients", res.Clients)
		printOutcome("Measurements", res.Measurements)
		for _, w := range res.Warnings {
			fmt.Printf("%s %s\n", ui.RenderWarn("⚠"), w)
		}
	},
}

func readBackup(ctx context.Context, args []string, s3Key string) ([]byte, string, error) {
	switch {
	case s3Key != "" && len(args) > 0:
		return nil, "", fmt.Errorf("give either FILE or --s3 KEY, not both")
	case s3Key != "":
		s3, err := s3Sink()
		if err != nil {
			return nil, "", err
		}
		data, err := s3.Get(ctx, s3Key)
		return data, "s3 object " + s3Key, err
	case len(args) == 1:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		return data, args[0], nil
	default:
		return nil, "", fmt.Errorf("missing FILE (or --s3 KEY)")
	}
}

func printOutcome(label string, o backup.Outcome) {
	if o.Action == "kept" {
		fmt.Printf("   %s: %s\n", label, ui.RenderMuted(fmt.Sprintf("kept %d", o.Count)))
		return
	}
	fmt.Printf("   %s: %s %d\n", label, o.Action, o.Count)
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Write to this file instead of the backup directory (\"-\" for stdout)")
	exportCmd.Flags().Bool("s3", false, "Also upload the backup to the configured S3 bucket")

	importCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	importCmd.Flags().Bool("clear-missing", false, "Empty collections that the file does not contain")
	importCmd.Flags().String("s3", "", "Read the backup from this key in the configured S3 bucket")

	rootCmd.AddCommand(exportCmd, importCmd)
}

// writeBackup writes an encoded backup to w, failing on any write error so a
// closed pipe is not reported as a successful export.
func writeBackup(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}
	return nil
}
