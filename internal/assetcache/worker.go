// Package assetcache is the offline asset cache: a versioned, cache-first
// store of the application shell and style images.
//
// Each manifest version is one cache generation with the lifecycle
//
//	Installing -> Active -> Superseded
//	Installing -> Failed
//
// Install fetches every manifest asset from the Origin and writes the
// bucket in one transaction. Activate deletes every other bucket and tells
// listeners. Serve answers from the active bucket and falls back to the
// Origin without caching.
package assetcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"
)

// State is the lifecycle state of a cache generation.
type State string

const (
	Installing State = "installing"
	Active     State = "active"
	Superseded State = "superseded"
	Failed     State = "failed"
)

// Generation describes one cache generation.
type Generation struct {
	Bucket    string    `json:"bucket"`
	State     State     `json:"state"`
	Assets    int       `json:"assets"`
	UpdatedAt time.Time `json:"updatedAt"`
	Error     string    `json:"error,omitempty"`
}

// Config configures a Worker.
type Config struct {
	Manifest *Manifest
	Storage  *Storage
	Origin   Origin
	Logger   *log.Logger
}

// Worker drives the install/activate/serve lifecycle.
type Worker struct {
	storage *Storage
	origin  Origin
	logger  *log.Logger

	installMu sync.Mutex // one install or activate at a time

	mu        sync.RWMutex
	manifest  *Manifest
	active    string
	gens      map[string]*Generation
	listeners []func(Generation)
}

// NewWorker creates a worker. Nothing is fetched until Start or Install.
func NewWorker(cfg Config) *Worker {
	if cfg.Manifest == nil {
		cfg.Manifest = DefaultManifest()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	return &Worker{
		storage:  cfg.Storage,
		origin:   cfg.Origin,
		logger:   cfg.Logger,
		manifest: cfg.Manifest,
		gens:     make(map[string]*Generation),
	}
}

// OnActivate registers fn to be called after each activation.
func (w *Worker) OnActivate(fn func(Generation)) {
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

// Manifest returns the current manifest.
func (w *Worker) Manifest() *Manifest {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.manifest
}

// ActiveBucket returns the bucket currently serving, or "".
func (w *Worker) ActiveBucket() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.active
}

func (w *Worker) setState(bucket string, state State, assets int, err error) Generation {
	w.mu.Lock()
	defer w.mu.Unlock()
	g, ok := w.gens[bucket]
	if !ok {
		g = &Generation{Bucket: bucket}
		w.gens[bucket] = g
	}
	g.State = state
	g.UpdatedAt = time.Now().UTC()
	if assets > 0 {
		g.Assets = assets
	}
	g.Error = ""
	if err != nil {
		g.Error = err.Error()
	}
	return *g
}

// Start restores the persisted active generation, then installs and
// activates the manifest's generation if it is not already active. When the
// install fails the restored generation keeps serving and the error is
// returned.
func (w *Worker) Start(ctx context.Context) error {
	active, err := w.storage.Active(ctx)
	if err != nil {
		return err
	}
	if active != "" {
		ok, err := w.storage.Has(ctx, active)
		if err != nil {
			return err
		}
		if ok {
			n, _ := w.storage.Count(ctx, active)
			w.mu.Lock()
			w.active = active
			w.mu.Unlock()
			w.setState(active, Active, n, nil)
			w.logger.Printf("Restored cache generation %s (%d assets)", active, n)
		}
	}

	bucket := w.Manifest().Bucket()
	if active == bucket && w.ActiveBucket() == bucket {
		return nil
	}

	has, err := w.storage.Has(ctx, bucket)
	if err != nil {
		return err
	}
	if !has {
		if err := w.Install(ctx); err != nil {
			return err
		}
	}
	return w.Activate(ctx)
}

// Install fetches every asset of the current manifest and stores them as
// one bucket. Any failed fetch or non-2xx response abandons the generation
// without writing anything.
func (w *Worker) Install(ctx context.Context) error {
	w.installMu.Lock()
	defer w.installMu.Unlock()

	m := w.Manifest()
	bucket := m.Bucket()
	w.setState(bucket, Installing, 0, nil)
	w.logger.Printf("Installing cache generation %s", bucket)

	paths := m.Paths()
	entries := make([]*Entry, 0, len(paths))
	for _, p := range paths {
		resp, err := w.origin.Fetch(ctx, p)
		if err == nil && !resp.OK() {
			err = fmt.Errorf("status %d", resp.Status)
		}
		if err != nil {
			err = fmt.Errorf("%w: %s: %v", ErrAssetFetch, p, err)
			w.setState(bucket, Failed, 0, err)
			w.logger.Printf("Install of %s failed: %v", bucket, err)
			return err
		}
		entries = append(entries, &Entry{Path: p, Status: resp.Status, ContentType: resp.ContentType, Body: resp.Body})
	}

	if err := w.storage.Put(ctx, bucket, entries); err != nil {
		w.setState(bucket, Failed, 0, err)
		return fmt.Errorf("failed to store cache generation %s: %w", bucket, err)
	}
	w.logger.Printf("Installed cache generation %s (%d assets)", bucket, len(entries))
	return nil
}

// Activate makes the current manifest's generation the serving one and
// deletes every other bucket.
func (w *Worker) Activate(ctx context.Context) error {
	w.installMu.Lock()
	defer w.installMu.Unlock()

	bucket := w.Manifest().Bucket()
	has, err := w.storage.Has(ctx, bucket)
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("%w: %s", ErrNotInstalled, bucket)
	}

	if err := w.storage.SetActive(ctx, bucket); err != nil {
		return err
	}
	n, err := w.storage.Count(ctx, bucket)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.active = bucket
	listeners := append([]func(Generation){}, w.listeners...)
	w.mu.Unlock()
	gen := w.setState(bucket, Active, n, nil)
	w.logger.Printf("Activated cache generation %s", bucket)

	for _, fn := range listeners {
		fn(gen)
	}

	// Old generations go only after the new one is recorded as active. A
	// failed purge leaves a stale bucket for the next activation to remove.
	w.purgeExcept(ctx, bucket)
	return nil
}

func (w *Worker) purgeExcept(ctx context.Context, bucket string) {
	keys, err := w.storage.Keys(ctx)
	if err != nil {
		w.logger.Printf("Warning: listing cache generations failed: %v", err)
		return
	}
	for _, k := range keys {
		if k == bucket {
			continue
		}
		if _, err := w.storage.Delete(ctx, k); err != nil {
			w.logger.Printf("Warning: failed to purge %s: %v", k, err)
			continue
		}
		w.setState(k, Superseded, 0, nil)
		w.logger.Printf("Purged cache generation %s", k)
	}
}

// Reload switches to a new manifest. When its bucket differs from the
// current one the new generation is installed and activated; on failure the
// previous manifest and generation stay in place.
func (w *Worker) Reload(ctx context.Context, m *Manifest) error {
	prev := w.Manifest()
	if prev.Bucket() == m.Bucket() {
		w.mu.Lock()
		w.manifest = m
		w.mu.Unlock()
		return nil
	}

	w.mu.Lock()
	w.manifest = m
	w.mu.Unlock()

	err := w.Install(ctx)
	if err == nil {
		err = w.Activate(ctx)
	}
	if err != nil {
		w.mu.Lock()
		w.manifest = prev
		w.mu.Unlock()
		return err
	}
	return nil
}

// Serve resolves path cache-first. hit reports whether the response came
// from the active bucket. Misses are fetched from the origin and not stored.
func (w *Worker) Serve(ctx context.Context, path string) (resp *Response, hit bool, err error) {
	p := NormalizePath(path)
	if bucket := w.ActiveBucket(); bucket != "" {
		e, ok, err := w.storage.Match(ctx, bucket, p)
		if err != nil {
			w.logger.Printf("Warning: cache lookup for %s failed: %v", p, err)
		} else if ok {
			return &Response{Status: e.Status, ContentType: e.ContentType, Body: e.Body}, true, nil
		}
	}

	resp, err = w.origin.Fetch(ctx, p)
	if err != nil {
		return nil, false, err
	}
	return resp, false, nil
}

// Purge deletes every bucket. The next Start reinstalls.
func (w *Worker) Purge(ctx context.Context) (int, error) {
	w.installMu.Lock()
	defer w.installMu.Unlock()

	keys, err := w.storage.Keys(ctx)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		if _, err := w.storage.Delete(ctx, k); err != nil {
			return 0, err
		}
		w.setState(k, Superseded, 0, nil)
	}
	w.mu.Lock()
	w.active = ""
	w.mu.Unlock()
	return len(keys), nil
}

// Status is a snapshot of the cache for the status command and /health.
type Status struct {
	Bucket      string       `json:"bucket"`
	Active      string       `json:"active"`
	Buckets     []string     `json:"buckets"`
	Generations []Generation `json:"generations"`
}

// Status reports the manifest bucket, active bucket and known generations.
func (w *Worker) Status(ctx context.Context) (*Status, error) {
	keys, err := w.storage.Keys(ctx)
	if err != nil {
		return nil, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	st := &Status{Bucket: w.manifest.Bucket(), Active: w.active, Buckets: keys}
	for _, g := range w.gens {
		st.Generations = append(st.Generations, *g)
	}
	sort.Slice(st.Generations, func(i, j int) bool {
		return st.Generations[i].Bucket < st.Generations[j].Bucket
	})
	return st, nil
}

// IsFetchError reports whether err is an install-time fetch failure.
func IsFetchError(err error) bool {
	return errors.Is(err, ErrAssetFetch)
}
