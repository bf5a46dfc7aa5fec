// Package config resolves runtime settings from defaults, an optional
// nailsizes.{toml,yaml} file, NAILSIZES_* environment variables (a .env file
// is loaded first) and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nailsizes/nailsizes/internal/backup"
)

// EnvPrefix prefixes every environment variable, e.g. NAILSIZES_ADDR.
const EnvPrefix = "NAILSIZES"

// Setting keys. Nested S3 keys map to NAILSIZES_S3_BUCKET and friends.
const (
	KeyDataDir     = "data-dir"
	KeyDB          = "db"
	KeyAddr        = "addr"
	KeyAssetDir    = "asset-dir"
	KeyOrigin      = "origin"
	KeyManifest    = "manifest"
	KeyCatalog     = "catalog"
	KeyBackupDir   = "backup-dir"
	KeyLogFile     = "log-file"
	KeyLockTimeout = "lock-timeout"
	KeyProduct     = "product"

	KeyS3Bucket    = "s3.bucket"
	KeyS3Prefix    = "s3.prefix"
	KeyS3Region    = "s3.region"
	KeyS3Endpoint  = "s3.endpoint"
	KeyS3AccessKey = "s3.access-key"
	KeyS3SecretKey = "s3.secret-key"
)

var settingKeys = map[string]bool{
	KeyDataDir: true, KeyDB: true, KeyAddr: true, KeyAssetDir: true,
	KeyOrigin: true, KeyManifest: true, KeyCatalog: true, KeyBackupDir: true,
	KeyLogFile: true, KeyLockTimeout: true, KeyProduct: true,
	KeyS3Bucket: true, KeyS3Prefix: true, KeyS3Region: true,
	KeyS3Endpoint: true, KeyS3AccessKey: true, KeyS3SecretKey: true,
}

// Config is the resolved settings for one run.
type Config struct {
	DataDir     string
	DBPath      string
	CachePath   string
	Addr        string
	AssetDir    string // empty installs the shell built into the binary
	Origin      string // upstream base URL; overrides AssetDir when set
	Manifest    string // optional manifest file; empty uses the embedded one
	Catalog     string // optional style catalog file
	BackupDir   string
	LogFile     string
	LockTimeout time.Duration
	Product     string
	S3          backup.S3Config

	// File is the config file that was read, if any.
	File string
}

// DefaultDataDir is ~/.nailsizes, or ./.nailsizes when there is no home.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".nailsizes"
	}
	return filepath.Join(home, ".nailsizes")
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyDataDir, DefaultDataDir())
	v.SetDefault(KeyAddr, "127.0.0.1:8080")
	v.SetDefault(KeyLockTimeout, 10*time.Second)
	v.SetDefault(KeyProduct, backup.DefaultProduct)
	v.SetDefault(KeyS3Region, "us-east-1")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadDotEnv loads KEY=value pairs from file into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(file string) error {
	err := godotenv.Load(file)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", file, err)
}

// ReadFile reads the config file. An explicit path (flag or NAILSIZES_CONFIG)
// must exist; otherwise nailsizes.toml / nailsizes.yaml is looked up in the
// working directory and then the data directory.
func ReadFile(v *viper.Viper, explicit string) error {
	if explicit == "" {
		explicit = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", explicit, err)
		}
		return nil
	}

	v.SetConfigName("nailsizes")
	v.AddConfigPath(".")
	v.AddConfigPath(v.GetString(KeyDataDir))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// BindFlags binds the flags whose name matches a setting key; --s3-bucket
// binds s3.bucket. Other flags are left alone.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var firstErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if firstErr != nil {
			return
		}
		key := f.Name
		if strings.HasPrefix(key, "s3-") {
			key = "s3." + strings.TrimPrefix(key, "s3-")
		}
		if !settingKeys[key] {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			firstErr = fmt.Errorf("failed to bind flag --%s: %w", f.Name, err)
		}
	})
	return firstErr
}

// Load resolves a Config from v. Relative file settings are kept as given;
// database and cache files default to the data directory.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DataDir:     v.GetString(KeyDataDir),
		DBPath:      v.GetString(KeyDB),
		Addr:        v.GetString(KeyAddr),
		AssetDir:    v.GetString(KeyAssetDir),
		Origin:      v.GetString(KeyOrigin),
		Manifest:    v.GetString(KeyManifest),
		Catalog:     v.GetString(KeyCatalog),
		BackupDir:   v.GetString(KeyBackupDir),
		LogFile:     v.GetString(KeyLogFile),
		LockTimeout: v.GetDuration(KeyLockTimeout),
		Product:     v.GetString(KeyProduct),
		S3: backup.S3Config{
			Bucket:    v.GetString(KeyS3Bucket),
			Prefix:    v.GetString(KeyS3Prefix),
			Region:    v.GetString(KeyS3Region),
			Endpoint:  v.GetString(KeyS3Endpoint),
			AccessKey: v.GetString(KeyS3AccessKey),
			SecretKey: v.GetString(KeyS3SecretKey),
		},
		File: v.ConfigFileUsed(),
	}

	if cfg.DataDir == "" {
		return nil, errors.New("data-dir must not be empty")
	}
	if cfg.LockTimeout <= 0 {
		return nil, fmt.Errorf("lock-timeout must be positive, got %v", cfg.LockTimeout)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "nailsizes.db")
	}
	cfg.CachePath = filepath.Join(cfg.DataDir, "cache.db")
	if cfg.BackupDir == "" {
		cfg.BackupDir = filepath.Join(cfg.DataDir, "backups")
	}
	return cfg, nil
}

// EnsureDataDir creates the data directory.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", c.DataDir, err)
	}
	return nil
}

// S3Enabled reports whether an S3 bucket is configured.
func (c *Config) S3Enabled() bool {
	return c.S3.Bucket != ""
}
