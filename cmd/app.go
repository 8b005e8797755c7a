package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/conneroisu/courseview/internal/config"
	"github.com/conneroisu/courseview/internal/highlight"
	"github.com/conneroisu/courseview/internal/logging"
	"github.com/conneroisu/courseview/internal/page"
	"github.com/conneroisu/courseview/internal/registry"
	"github.com/conneroisu/courseview/internal/renderer"
	"github.com/conneroisu/courseview/internal/store"
	"github.com/conneroisu/courseview/internal/viewer"
)

// app is everything a command needs to show a course.
type app struct {
	cfg         *config.Config
	logger      *logging.CourseLogger
	registry    *registry.Registry
	store       store.Store
	highlighter *highlight.Chroma
	viewer      *viewer.Controller
}

// loadApp reads the configuration from v and wires the viewer. liveUpdates
// controls whether the page shell carries the websocket client.
func loadApp(ctx context.Context, v *viper.Viper, liveUpdates bool) (*app, error) {
	cfg, err := config.LoadFrom(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg, err := cfg.LoggerConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid log configuration: %w", err)
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	if a.registry, err = cfg.Registry(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build module registry: %w", err)
	}

	if a.store, err = store.Open(cfg.StoreOptions()); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}

	fetcher, err := cfg.Fetcher()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create content fetcher: %w", err)
	}

	surface, err := page.NewSurface(ctx, page.Config{Title: cfg.Course.Title, LiveUpdates: liveUpdates})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build page: %w", err)
	}

	a.highlighter = highlight.New(cfg.Highlight.Aliases)
	a.viewer, err = viewer.New(viewer.Options{
		Registry:      a.registry,
		Surface:       surface,
		Fetcher:       fetcher,
		Layout:        cfg.Layout(),
		Renderer:      renderer.New(renderer.Options{Highlight: highlight.Hook(a.highlighter)}),
		Highlighter:   a.highlighter,
		Store:         a.store,
		DefaultModule: cfg.Content.DefaultModule,
		Logger:        logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create viewer: %w", err)
	}

	return a, nil
}

// Close releases the store and the log file.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn(context.Background(), err, "Failed to close store")
		}
	}
	_ = a.logger.Close()
}
