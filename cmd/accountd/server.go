package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-account"
	"github.com/goliatone/go-account/activitymap"
	"github.com/goliatone/go-account/metrics"
	"github.com/goliatone/go-account/persistence"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type server struct {
	http  router.Server[*fiber.App]
	app   *fiber.App
	store *persistence.Store
}

// newServer wires the store, services and routes. The caller owns the
// returned server and must Close it.
func newServer(ctx context.Context, opts *account.Options, logger *slog.Logger) (*server, error) {
	log := account.NewSlogLogger(logger)

	store, err := openStore(ctx, opts, logger)
	if err != nil {
		return nil, err
	}

	repo := account.NewRepositoryManager(store.DB())
	if err := repo.Validate(); err != nil {
		_ = store.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	sink, err := metrics.NewSink(registry)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	activity := account.MultiActivitySink{sink, logActivity(logger)}
	hasher := account.NewBcryptHasher(opts.BcryptCost)

	provider := account.NewUserProvider(repo.Users()).
		WithLogger(log).
		WithHasher(hasher)

	auther, err := account.NewAuthenticator(provider, opts)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	auther.WithLogger(log).WithActivitySink(activity)

	users := account.NewUserService(repo.Users(), auther).
		WithLogger(log).
		WithHasher(hasher).
		WithActivitySink(activity).
		WithHashidIDs(opts.HashidIDs)

	errHandler := account.FiberErrorHandler(log)

	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			AppName:               "accountd",
			DisableStartupMessage: true,
			ErrorHandler:          errHandler,
		})
		app.Use(recover.New())
		return app
	})

	app := srv.WrappedRouter()
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	account.RegisterAuthRoutes(srv.Router().Group(opts.APIPrefix),
		account.WithAuthenticator(auther),
		account.WithUserService(users),
		account.WithControllerLogger(log),
		account.WithDebug(opts.Debug),
	)

	return &server{http: srv, app: app, store: store}, nil
}

// openStore opens the store and applies the account migrations
func openStore(ctx context.Context, opts *account.Options, logger *slog.Logger) (*persistence.Store, error) {
	store, err := persistence.Open(ctx, persistence.Config{
		DSN:     opts.StoreDSN,
		Timeout: storeTimeout(opts),
		Debug:   opts.Debug,
		Logf: func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		},
	}, account.Models()...)
	if err != nil {
		return nil, err
	}

	if err := store.RegisterMigrations(account.Migrations()).Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	return store, nil
}

// Close stops the HTTP server and closes the store
func (s *server) Close(ctx context.Context) error {
	return errors.Join(
		s.http.Shutdown(ctx),
		s.store.Close(),
	)
}

func logActivity(logger *slog.Logger) account.ActivitySink {
	return account.ActivitySinkFunc(func(ctx context.Context, event account.ActivityEvent) error {
		record := activitymap.Normalize(event)
		logger.DebugContext(ctx, "activity", record.Attrs()...)
		return nil
	})
}
