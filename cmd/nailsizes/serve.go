package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nailsizes/nailsizes/internal/app"
	"github.com/nailsizes/nailsizes/internal/assetcache"
	"github.com/nailsizes/nailsizes/internal/events"
	"github.com/nailsizes/nailsizes/internal/schema"
	"github.com/nailsizes/nailsizes/internal/server"
	"github.com/nailsizes/nailsizes/internal/ui"
	"github.com/nailsizes/nailsizes/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "app",
	Short:   "Serve the application shell and JSON API",
	Long: `Start the HTTP server.

Startup:
  1. Open the client database (migrating and seeding styles as needed)
  2. Restore the active asset generation, installing the manifest's version
     if it is not cached yet
  3. Watch --asset-dir and the manifest file for changes, when an asset
     directory is set
  4. Serve /api/*, the /ws change feed and the cached shell

If the database cannot be opened the shell is still served from cache and
/api/* answers 503 data_unavailable.

Example usage:
  nailsizes serve
  nailsizes serve --addr 0.0.0.0:8080 --asset-dir ./web`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		log := logger("serve")

		hub := events.NewHub(logger("events"))
		hub.Start()
		defer hub.Stop()

		var (
			a       *app.App
			dataErr error
		)
		db, err := openStore(ctx)
		if err != nil {
			dataErr = err
			log.Printf("Client data unavailable: %v", err)
		} else {
			defer db.Close()
			a = newApp(db, app.WithNotifier(hub))
		}

		worker, storage, err := openCache()
		if err != nil {
			fatalf("failed to open asset cache: %v", err)
		}
		defer storage.Close()
		worker.OnActivate(func(g assetcache.Generation) {
			hub.CacheActivated(g.Bucket, g.Assets)
		})
		if err := worker.Start(ctx); err != nil {
			// A failed install keeps whatever generation was active.
			log.Printf("Asset cache start: %v", err)
		}

		if missing := worker.Manifest().MissingStyleImages(stylesOrNil(ctx, a)); len(missing) > 0 {
			log.Printf("Manifest does not list style images: %v", missing)
		}

		if cfg.Origin == "" && cfg.AssetDir != "" {
			w, err := watcher.New()
			if err != nil {
				fatalf("%v", err)
			}
			if err := w.Start(cfg.AssetDir, cfg.Manifest); err != nil {
				log.Printf("Not watching assets: %v", err)
			} else {
				defer w.Stop()
				go watchAssets(ctx, w, worker)
			}
		}

		srv := server.New(server.Config{
			Addr:    cfg.Addr,
			Logger:  logger("http"),
			App:     a,
			DataErr: dataErr,
			Cache:   worker,
			Hub:     hub,
		})
		if err := srv.Start(); err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("%s Serving on http://%s\n", ui.RenderPass("✓"), srv.GetAddr())
		fmt.Printf("   Cache: %s\n", worker.ActiveBucket())
		fmt.Printf("   Changes: ws://%s/ws\n", srv.GetAddr())
		if dataErr != nil {
			fmt.Printf("%s Client data unavailable: %v\n", ui.RenderWarn("⚠"), dataErr)
		}
		fmt.Println("\nPress Ctrl+C to stop...")

		<-ctx.Done()

		fmt.Println("\nShutting down...")
		if err := srv.Stop(); err != nil {
			fatalf("shutdown: %v", err)
		}
	},
}

func stylesOrNil(ctx context.Context, a *app.App) []*schema.Style {
	if a == nil {
		return nil
	}
	styles, err := a.Styles(ctx)
	if err != nil {
		return nil
	}
	return styles
}

// watchAssets reloads the manifest when its file changes. Edited assets are
// only picked up by installing a new manifest version.
func watchAssets(ctx context.Context, w *watcher.Watcher, worker *assetcache.Worker) {
	log := logger("watch")
	assetDir, _ := filepath.Abs(cfg.AssetDir)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case watcher.KindManifest:
				if ev.Op == watcher.OpDelete {
					log.Printf("Manifest %s removed; keeping %s", ev.Path, worker.ActiveBucket())
					continue
				}
				m, err := assetcache.LoadManifest(ev.Path)
				if err != nil {
					log.Printf("Ignoring manifest change: %v", err)
					continue
				}
				if m.Bucket() == worker.Manifest().Bucket() {
					continue
				}
				if err := worker.Reload(ctx, m); err != nil {
					log.Printf("Reload %s failed: %v", m.Bucket(), err)
				}
			case watcher.KindAsset:
				rel, err := filepath.Rel(assetDir, ev.Path)
				if err != nil {
					continue
				}
				if worker.Manifest().Contains(filepath.ToSlash(rel)) {
					log.Printf("%s %s; bump the manifest version to publish it", rel, ev.Op)
				}
			}
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			log.Printf("Watch error: %v", err)
		}
	}
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default: 127.0.0.1:8080)")
	rootCmd.AddCommand(serveCmd)
}
