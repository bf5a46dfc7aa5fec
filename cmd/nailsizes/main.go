// Command nailsizes is the offline-first client-record manager: it serves
// the application shell and JSON API and manages backups from the terminal.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nailsizes/nailsizes/internal/config"
	"github.com/nailsizes/nailsizes/internal/logging"
	"github.com/nailsizes/nailsizes/internal/ui"
)

var (
	v      *viper.Viper
	cfg    *config.Config
	logOut = logging.Stderr()
)

var rootCmd = &cobra.Command{
	Use:   "nailsizes",
	Short: "Nail size records for clients, offline first",
	Long: `nailsizes keeps client records and per-style finger measurements in a
local database on this device, serves the application shell from an offline
asset cache, and exports or imports the whole store as a JSON backup.

Configuration (highest precedence first):
  command-line flags
  NAILSIZES_* environment variables (a .env file in the working directory is loaded)
  nailsizes.toml or nailsizes.yaml in the working or data directory
  built-in defaults`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
			ui.DisableColor()
		}
		if err := config.LoadDotEnv(".env"); err != nil {
			return err
		}

		v = config.New()
		if err := config.BindFlags(v, cmd.Flags()); err != nil {
			return err
		}
		configFile, _ := cmd.Flags().GetString("config")
		if err := config.ReadFile(v, configFile); err != nil {
			return err
		}
		c, err := config.Load(v)
		if err != nil {
			return err
		}
		if err := c.EnsureDataDir(); err != nil {
			return err
		}
		cfg = c

		out, err := logging.Open(cfg.LogFile, os.Stderr)
		if err != nil {
			return err
		}
		logOut = out
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logOut.Close()
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Client data:"},
		&cobra.Group{ID: "app", Title: "Application shell:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default: nailsizes.{toml,yaml} in . or the data directory)")
	flags.String(config.KeyDataDir, "", "Data directory (default: ~/.nailsizes)")
	flags.String(config.KeyDB, "", "Database file (default: <data-dir>/nailsizes.db)")
	flags.String(config.KeyCatalog, "", "Style catalog TOML file (default: built-in A-F)")
	flags.String(config.KeyManifest, "", "Asset manifest YAML file (default: built-in)")
	flags.String(config.KeyAssetDir, "", "Directory the application shell is installed from (default: built-in shell)")
	flags.String(config.KeyOrigin, "", "Upstream base URL to install the shell from instead of --asset-dir")
	flags.String(config.KeyLogFile, "", "Also write logs to this file, rotated")
	flags.Duration(config.KeyLockTimeout, 0, "How long to wait for the database writer lock (default: 10s)")
	flags.String("s3-bucket", "", "S3 bucket for off-device backups")
	flags.Bool("no-color", false, "Disable colored output")
}

// logger returns a component logger on the configured output.
func logger(component string) *log.Logger {
	return logOut.Logger(component)
}

// fatalf prints an error and exits.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s "+format+"\n", append([]any{ui.RenderFail("Error:")}, args...)...)
	_ = logOut.Close()
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
