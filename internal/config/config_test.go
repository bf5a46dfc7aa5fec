package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	v := New()
	v.Set(KeyDataDir, "/tmp/ns")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.DBPath != filepath.Join("/tmp/ns", "nailsizes.db") {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.CachePath != filepath.Join("/tmp/ns", "cache.db") {
		t.Errorf("CachePath = %q", cfg.CachePath)
	}
	if cfg.BackupDir != filepath.Join("/tmp/ns", "backups") {
		t.Errorf("BackupDir = %q", cfg.BackupDir)
	}
	if cfg.Addr != "127.0.0.1:8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.LockTimeout != 10*time.Second {
		t.Errorf("LockTimeout = %v", cfg.LockTimeout)
	}
	if cfg.AssetDir != "" {
		t.Errorf("AssetDir = %q, want empty for the built-in shell", cfg.AssetDir)
	}
	if cfg.Product != "nail-sizes" {
		t.Errorf("Product = %q", cfg.Product)
	}
	if cfg.S3Enabled() {
		t.Error("S3Enabled() = true with no bucket")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NAILSIZES_ADDR", "0.0.0.0:9000")
	t.Setenv("NAILSIZES_LOCK_TIMEOUT", "2s")
	t.Setenv("NAILSIZES_S3_BUCKET", "salon-backups")
	t.Setenv("NAILSIZES_S3_ACCESS_KEY", "AKID")

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Addr != "0.0.0.0:9000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.LockTimeout != 2*time.Second {
		t.Errorf("LockTimeout = %v", cfg.LockTimeout)
	}
	if cfg.S3.Bucket != "salon-backups" || cfg.S3.AccessKey != "AKID" {
		t.Errorf("S3 = %+v", cfg.S3)
	}
}

func TestReadFileTOMLAndYAML(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", "nailsizes.toml", "addr = \"127.0.0.1:7000\"\n[s3]\nbucket = \"b\"\n"},
		{"yaml", "nailsizes.yaml", "addr: 127.0.0.1:7000\ns3:\n  bucket: b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("WriteFile() failed: %v", err)
			}

			v := New()
			if err := ReadFile(v, path); err != nil {
				t.Fatalf("ReadFile() failed: %v", err)
			}
			cfg, err := Load(v)
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if cfg.Addr != "127.0.0.1:7000" || cfg.S3.Bucket != "b" {
				t.Errorf("cfg = %+v", cfg)
			}
			if cfg.File != path {
				t.Errorf("File = %q, want %q", cfg.File, path)
			}
		})
	}
}

func TestReadFileDiscovery(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "nailsizes.yaml"), []byte("asset-dir: public\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	v := New()
	v.Set(KeyDataDir, dir)
	if err := ReadFile(v, ""); err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if got := v.GetString(KeyAssetDir); got != "public" {
		t.Errorf("asset-dir = %q, want public", got)
	}

	empty := New()
	empty.Set(KeyDataDir, t.TempDir())
	if err := ReadFile(empty, ""); err != nil {
		t.Errorf("ReadFile() with no file failed: %v", err)
	}
}

func TestReadFileExplicitMissing(t *testing.T) {
	if err := ReadFile(New(), filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("ReadFile() of a missing explicit file should fail")
	}
}

func TestBindFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", "", "")
	flags.String("s3-bucket", "", "")
	if err := flags.Parse([]string{"--addr", "127.0.0.1:1234", "--s3-bucket", "flagged"}); err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	t.Setenv("NAILSIZES_ADDR", "127.0.0.1:9999")
	v := New()
	if err := BindFlags(v, flags); err != nil {
		t.Fatalf("BindFlags() failed: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Addr != "127.0.0.1:1234" {
		t.Errorf("Addr = %q, flag should beat env", cfg.Addr)
	}
	if cfg.S3.Bucket != "flagged" {
		t.Errorf("S3.Bucket = %q", cfg.S3.Bucket)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("NAILSIZES_PRODUCT=salon\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	t.Setenv("NAILSIZES_PRODUCT", "")
	os.Unsetenv("NAILSIZES_PRODUCT")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() failed: %v", err)
	}
	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Product != "salon" {
		t.Errorf("Product = %q, want salon", cfg.Product)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("LoadDotEnv() of a missing file failed: %v", err)
	}
}

func TestLoadRejectsBadLockTimeout(t *testing.T) {
	v := New()
	v.Set(KeyLockTimeout, "0s")
	if _, err := Load(v); err == nil {
		t.Error("Load() should reject a zero lock timeout")
	}
}

func TestBindFlagsIgnoresCommandFlags(t *testing.T) {
	flags := pflag.NewFlagSet("export", pflag.ContinueOnError)
	flags.Bool("s3", false, "")
	if err := flags.Parse([]string{"--s3"}); err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	t.Setenv("NAILSIZES_S3_BUCKET", "salon")
	v := New()
	if err := BindFlags(v, flags); err != nil {
		t.Fatalf("BindFlags() failed: %v", err)
	}
	if got := v.GetString(KeyS3Bucket); got != "salon" {
		t.Errorf("s3.bucket = %q, want salon", got)
	}
}
