package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/vadimbarashkov/shortlink/internal/adapter/identity/jwt"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
	"github.com/vadimbarashkov/shortlink/pkg/postgres"
	"github.com/vadimbarashkov/shortlink/pkg/shortid"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/shortlink/internal/adapter/delivery/http"
	pgrepo "github.com/vadimbarashkov/shortlink/internal/adapter/repository/postgres"
)

const shutdownTimeout = 10 * time.Second

// NewLogger builds the request logger: JSON in prod, concise text elsewhere.
func NewLogger(cfg *config.Config, w io.Writer) *httplog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	return httplog.NewLogger("shortlink", httplog.Options{
		JSON:            cfg.Env == config.EnvProd,
		Concise:         cfg.Env != config.EnvProd,
		LogLevel:        level,
		RequestHeaders:  cfg.Env != config.EnvProd,
		QuietDownRoutes: []string{"/health", "/api/ping"},
		QuietDownPeriod: 10 * time.Second,
		Writer:          w,
	})
}

// urlStore is satisfied by both repository implementations.
type urlStore interface {
	Save(ctx context.Context, shortID, originalURL, ownerID string) (*entity.URL, error)
	RetrieveByOwnerAndOriginalURL(ctx context.Context, ownerID, originalURL string) (*entity.URL, error)
	RetrieveByShortID(ctx context.Context, shortID string) (*entity.URL, error)
	AppendVisit(ctx context.Context, shortID string, at time.Time) (*entity.URL, error)
	ListByOwner(ctx context.Context, ownerID string) ([]entity.URL, error)
	ListAll(ctx context.Context) ([]entity.URL, error)
}

var (
	_ urlStore = (*memory.URLRepository)(nil)
	_ urlStore = (*pgrepo.URLRepository)(nil)
)

func newStore(ctx context.Context, cfg *config.Config, logger *httplog.Logger) (urlStore, func() error, error) {
	const op = "app.newStore"

	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage, data will not survive a restart")
		return memory.NewURLRepository(), func() error { return nil }, nil
	}

	db, err := postgres.New(
		ctx,
		cfg.Postgres.DSN(),
		postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	version, err := postgres.RunMigrations(cfg.Postgres.MigrationsPath, cfg.Postgres.DSN())
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}
	logger.Info("database schema is up to date", slog.Uint64("version", uint64(version)))

	return pgrepo.NewURLRepository(db), db.Close, nil
}

func Run(ctx context.Context, cfg *config.Config, logger *httplog.Logger) error {
	const op = "app.Run"

	loc, err := cfg.Analytics.Location()
	if err != nil {
		return fmt.Errorf("%s: failed to load analytics timezone: %w", op, err)
	}

	store, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeStore()

	urlUseCase := usecase.NewURLUseCase(
		store,
		usecase.WithIDGenerator(shortid.New(cfg.ShortIDLength)),
		usecase.WithLocation(loc),
		usecase.WithRecentClicksLimit(cfg.Analytics.RecentClicksLimit),
	)

	tokens, err := jwt.NewTokenManager(cfg.Auth.Secret, jwt.WithTTL(cfg.Auth.TokenTTL))
	if err != nil {
		return fmt.Errorf("%s: failed to create token manager: %w", op, err)
	}

	routerOpts := []delivery.RouterOption{
		delivery.WithAllowedOrigins(cfg.CORS.AllowedOrigins...),
		delivery.WithCookieName(cfg.Auth.CookieName),
	}
	if cfg.RateLimit.Enabled {
		routerOpts = append(routerOpts, delivery.WithRateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        delivery.NewRouter(logger, urlUseCase, tokens, routerOpts...),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelError),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", server.Addr), slog.String("env", cfg.Env))

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
