// Package runtime wires configuration, storage, application services, and
// the HTTP server into a runnable process.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	app "github.com/yigicoin/platform/internal/app"
	"github.com/yigicoin/platform/internal/app/httpapi"
	"github.com/yigicoin/platform/internal/app/metrics"
	"github.com/yigicoin/platform/internal/app/storage/postgres"
	"github.com/yigicoin/platform/internal/app/storage/redisstore"
	"github.com/yigicoin/platform/internal/config"
	"github.com/yigicoin/platform/pkg/logger"
)

// Application manages process lifecycle around the service layer.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	inner      *app.Application
	httpServer *http.Server
	db         *sql.DB
	adClaims   *redisstore.AdClaimStore
}

// NewApplication constructs the application from loaded configuration.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig wires the application against the given configuration. An
// empty database DSN selects the in-memory stores; an empty redis address
// keeps ad-claim history in the primary store.
func NewWithConfig(cfg *config.Config) (*Application, error) {
	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	a := &Application{cfg: cfg, log: log}

	var stores app.Stores
	if cfg.Database.DSN != "" {
		db, err := openDatabase(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = postgres.Apply(ctx, db)
		cancel()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}

		pg := postgres.New(db)
		stores = app.Stores{
			Users:     pg,
			Slots:     pg,
			Sanctions: pg,
			Points:    pg,
			Payments:  pg,
			Raffles:   pg,
			AdClaims:  pg,
		}
		a.db = db
	}

	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		claims, err := redisstore.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		stores.AdClaims = claims
		a.adClaims = claims
	}

	inner, err := app.New(stores, app.Options{}, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.inner = inner

	if err := inner.Slots.Seed(context.Background()); err != nil {
		a.Close()
		return nil, fmt.Errorf("seed slot tree: %w", err)
	}

	var handler http.Handler = httpapi.NewHandler(inner, httpapi.AdminConfig{
		DevMode: cfg.Admin.DevMode,
		Tokens:  cfg.Admin.Tokens,
	}, log)
	if cfg.Server.RateLimitPerSec > 0 {
		handler = httpapi.NewRateLimiter(cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst, log).Handler(handler)
	}
	handler = httpapi.CORS(cfg.Server.CORSOrigins)(handler)
	handler = httpapi.RequestLogger(log)(handler)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", metrics.InstrumentHandler(handler))

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}
	return a, nil
}

// Run starts background services and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.inner.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server and background services.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var first error
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			first = err
		}
	}
	if a.inner != nil {
		if err := a.inner.Stop(shutdownCtx); err != nil && first == nil {
			first = err
		}
	}
	a.Close()
	return first
}

// Close releases storage connections.
func (a *Application) Close() {
	if a.adClaims != nil {
		if err := a.adClaims.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
		a.adClaims = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
		a.db = nil
	}
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
