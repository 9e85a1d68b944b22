// framevist serves the Frame Vist storefront and admin API.
//
// Configuration comes from FRAMEVIST_* environment variables with a few
// flag overrides (-port, -verbose, -seed-file, -store, -sqlite-path).
// Default port: 8080
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/framevist/framevist/internal/api"
	"github.com/framevist/framevist/internal/bundle"
	"github.com/framevist/framevist/internal/cart"
	"github.com/framevist/framevist/internal/checkout"
	"github.com/framevist/framevist/internal/config"
	"github.com/framevist/framevist/internal/imagehost"
	"github.com/framevist/framevist/internal/inventory"
	"github.com/framevist/framevist/internal/seed"
	"github.com/framevist/framevist/internal/store"
	"github.com/framevist/framevist/internal/store/memory"
	"github.com/framevist/framevist/internal/store/sqlite"
	"github.com/framevist/framevist/pkg/webkit"
)

type backend interface {
	store.Stores
	store.StateStore
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	srv := webkit.New(webkit.Options{
		Name:            "framevist",
		Port:            cfg.Port,
		Verbose:         cfg.Verbose,
		AllowedOrigin:   cfg.AllowedOrigin,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	logger := srv.Logger

	var st backend
	var closeStore func() error
	switch cfg.Store {
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open sqlite store: %v", err)
		}
		st, closeStore = db, db.Close
	default:
		st = memory.New()
	}

	catalogue := inventory.New(st, st)

	var cartStorage cart.Storage = cart.NewMemoryStorage()
	if cfg.CartFile != "" {
		cartStorage = cart.NewFileStorage(cfg.CartFile)
	}

	var bundles bundle.Store = bundle.NewMemoryStore()
	if cfg.BundleDir != "" {
		bundles = bundle.DirStore{Dir: cfg.BundleDir}
	}
	builder := bundle.NewBuilder(bundle.NewHTTPFetcher(cfg.FetchTimeout), logger.With("component", "bundle"))

	pipeline := checkout.New(checkout.Options{
		Orders:      st,
		Catalogue:   st,
		Contacts:    st,
		Promos:      st,
		Bundles:     builder,
		BundleStore: bundles,
		Logger:      logger.With("component", "checkout"),
	})
	// Background order effects drain before the store closes.
	srv.OnShutdown(func(context.Context) { pipeline.Wait() })
	if closeStore != nil {
		srv.OnShutdown(func(context.Context) {
			if err := closeStore(); err != nil {
				logger.Error("closing store", "error", err)
			}
		})
	}

	images := imagehost.New(imagehost.Config{
		BaseURL:      cfg.ImageHost.BaseURL,
		CloudName:    cfg.ImageHost.CloudName,
		UploadPreset: cfg.ImageHost.UploadPreset,
		Folder:       cfg.ImageHost.Folder,
		Timeout:      cfg.ImageHost.Timeout,
	})
	if err := images.Validate(); err != nil {
		logger.Warn("image uploads disabled until configured", "error", err)
	}

	auth := api.NewAuthenticator(cfg.AdminSecret)
	if !auth.Enabled() {
		logger.Warn("FRAMEVIST_ADMIN_SECRET is not set; admin API will reject all requests")
	}

	apiHandler := api.NewHandler(api.Deps{
		Stores:     st,
		State:      st,
		Catalogue:  catalogue,
		Carts:      cart.NewSessions(cartStorage),
		Pipeline:   pipeline,
		Bundles:    bundles,
		Images:     images,
		Auth:       auth,
		Middleware: srv.Middleware(),
		Logger:     logger,
	})
	apiHandler.Routes(srv.Router)

	if cfg.SeedFile != "" {
		if err := applySeed(context.Background(), cfg.SeedFile, catalogue, st, logger); err != nil {
			log.Fatalf("failed to load seed data: %v", err)
		}
	}

	logger.Info("framevist ready",
		"port", cfg.Port,
		"store", cfg.Store,
		"admin", auth.Enabled(),
	)

	if err := srv.Serve(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func applySeed(ctx context.Context, path string, catalogue *inventory.Service, promos store.PromoStore, logger *slog.Logger) error {
	fixture, err := seed.LoadFile(path)
	if err != nil {
		return err
	}
	if err := fixture.Apply(ctx, catalogue, promos); err != nil {
		return err
	}
	logger.Info("loaded seed data", "file", path, "capsules", len(fixture.Capsules), "promos", len(fixture.Promos))
	return nil
}
