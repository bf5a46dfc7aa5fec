package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nailsizes/nailsizes/internal/app"
	"github.com/nailsizes/nailsizes/internal/assetcache"
	"github.com/nailsizes/nailsizes/internal/backup"
	"github.com/nailsizes/nailsizes/internal/catalog"
	"github.com/nailsizes/nailsizes/internal/schema"
	"github.com/nailsizes/nailsizes/internal/store"
)

// loadStyles returns the configured catalog or the built-in one.
func loadStyles() ([]*schema.Style, error) {
	if cfg.Catalog == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.Catalog)
}

// openStore opens (and migrates) the database and seeds the catalog into an
// empty styles collection.
func openStore(ctx context.Context) (*store.DB, error) {
	db, err := store.OpenContext(ctx, cfg.DBPath,
		store.WithLogger(logger("store")),
		store.WithLockTimeout(cfg.LockTimeout),
	)
	if err != nil {
		return nil, err
	}

	styles, err := loadStyles()
	if err != nil {
		db.Close()
		return nil, err
	}
	seeded, err := catalog.SeedIfEmpty(ctx, db, styles)
	if err != nil {
		db.Close()
		return nil, err
	}
	if seeded {
		logger("store").Printf("Seeded %d styles", len(styles))
	}
	return db, nil
}

func newApp(db *store.DB, opts ...app.Option) *app.App {
	opts = append([]app.Option{
		app.WithLogger(logger("app")),
		app.WithProduct(cfg.Product),
	}, opts...)
	return app.New(db, opts...)
}

func loadManifest() (*assetcache.Manifest, error) {
	if cfg.Manifest == "" {
		return assetcache.DefaultManifest(), nil
	}
	return assetcache.LoadManifest(cfg.Manifest)
}

func newOrigin() assetcache.Origin {
	if cfg.Origin != "" {
		return assetcache.NewHTTPOrigin(cfg.Origin, 30*time.Second)
	}
	if cfg.AssetDir != "" {
		return assetcache.DirOrigin{Root: cfg.AssetDir}
	}
	return assetcache.ShellOrigin()
}

// openCache opens the cache storage and builds a worker for the configured
// manifest. The caller closes the returned storage.
func openCache() (*assetcache.Worker, *assetcache.Storage, error) {
	m, err := loadManifest()
	if err != nil {
		return nil, nil, err
	}
	storage, err := assetcache.OpenStorage(cfg.CachePath)
	if err != nil {
		return nil, nil, err
	}
	w := assetcache.NewWorker(assetcache.Config{
		Manifest: m,
		Storage:  storage,
		Origin:   newOrigin(),
		Logger:   logger("cache"),
	})
	return w, storage, nil
}

// s3Sink builds the configured S3 sink.
func s3Sink() (*backup.S3Sink, error) {
	if !cfg.S3Enabled() {
		return nil, fmt.Errorf("no S3 bucket configured (set --s3-bucket or NAILSIZES_S3_BUCKET)")
	}
	return backup.NewS3Sink(cfg.S3)
}

// formatSize renders a byte count for status output.
func formatSize(size int64) string {
	switch {
	case size > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size > 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
