package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/kralovic/faceattend/internal/config"
	"github.com/kralovic/faceattend/internal/gallery"
	"github.com/kralovic/faceattend/internal/kvstore"
	"github.com/kralovic/faceattend/internal/kvstore/postgres"
	"github.com/kralovic/faceattend/internal/logger"
)

// runtime bundles the storage wiring shared by the scan, gallery and
// attendance commands. close must be called when done.
type runtime struct {
	cfg      *config.Config
	log      *slog.Logger
	store    kvstore.Store
	degraded func() bool
	pool     *postgres.Pool // nil in memory-only mode
	close    func()
}

// setupRuntime loads config and connects storage. With DATABASE_URL set the
// store is PostgreSQL wrapped in the degrading fallback; without it the
// process runs memory-only and nothing persists across restarts.
func setupRuntime() (*runtime, error) {
	cfg := config.Load()
	log := logger.Setup(os.Stderr)

	rt := &runtime{cfg: cfg, log: log, close: func() {}}

	if cfg.Database.URL == "" {
		log.Warn("no database configured, attendance will not persist")
		rt.store = kvstore.NewMemory()
		rt.degraded = func() bool { return false }
		return rt, nil
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	degrading := kvstore.NewDegrading(postgres.NewKV(pool), log)

	rt.pool = pool
	rt.store = degrading
	rt.degraded = degrading.Degraded
	rt.close = func() { pool.Close() }
	return rt, nil
}

// gallerySource picks the gallery backend: the database when connected,
// otherwise the JSON file named by GALLERY_PATH.
func (rt *runtime) gallerySource() (gallery.Source, error) {
	if rt.pool != nil {
		return postgres.NewGallerySource(rt.pool), nil
	}
	if rt.cfg.Gallery.Path == "" {
		return nil, fmt.Errorf("no gallery configured: set DATABASE_URL or GALLERY_PATH")
	}
	return &gallery.FileSource{Path: rt.cfg.Gallery.Path}, nil
}

// loadGallery loads the active gallery into a holder.
func (rt *runtime) loadGallery(ctx context.Context) (*gallery.Holder, error) {
	src, err := rt.gallerySource()
	if err != nil {
		return nil, err
	}
	g, err := gallery.Load(ctx, src, rt.cfg.Gallery.Dim)
	if err != nil {
		return nil, fmt.Errorf("failed to load gallery: %w", err)
	}
	rt.log.Info("gallery loaded",
		slog.String("source", src.Name()),
		slog.Int("entries", g.Len()),
	)
	return gallery.NewHolder(g), nil
}
