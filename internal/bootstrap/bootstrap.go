// Package bootstrap assembles the service graph shared by the API server and
// the operator CLI.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/spec-kit/lead-dispatch/internal/auth"
	"github.com/spec-kit/lead-dispatch/internal/config"
	"github.com/spec-kit/lead-dispatch/internal/events"
	"github.com/spec-kit/lead-dispatch/internal/observability"
	"github.com/spec-kit/lead-dispatch/internal/persistence"
	"github.com/spec-kit/lead-dispatch/internal/repository"
	"github.com/spec-kit/lead-dispatch/internal/repository/memory"
	"github.com/spec-kit/lead-dispatch/internal/service"
	"github.com/spec-kit/lead-dispatch/internal/settings"
	"github.com/spec-kit/lead-dispatch/internal/sweeper"
	"github.com/spec-kit/lead-dispatch/internal/worker"
)

// Repositories groups every store the services need.
type Repositories struct {
	Assignments repository.AssignmentRepository
	Brokers     repository.BrokerRepository
	Properties  repository.PropertyRepository
	Prospects   repository.ProspectRepository
	Audit       repository.AuditRepository
	Stuck       repository.StuckProspectRepository
}

// App is the wired service graph.
type App struct {
	Config         *config.Config
	Logger         *zap.Logger
	Postgres       *persistence.Postgres
	Redis          *persistence.Redis
	Repos          Repositories
	Bus            events.Bus
	Settings       settings.Provider
	Metrics        *observability.Metrics
	MetricsHandler http.Handler
	Dispatch       *service.DispatchService
	Audit          *service.AuditService
	Sweeper        *sweeper.Sweeper
	Tokens         *auth.TokenManager

	stopAudit func()
}

// New connects to the backing stores and builds the services. With an empty
// POSTGRES_DSN the in-memory store is used instead.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	app.Postgres = pg

	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				pg.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		app.Repos = Repositories{
			Assignments: repository.NewAssignmentRepository(pool),
			Brokers:     repository.NewBrokerRepository(pool),
			Properties:  repository.NewPropertyRepository(pool),
			Prospects:   repository.NewProspectRepository(pool),
			Audit:       repository.NewAuditRepository(pool),
			Stuck:       repository.NewStuckProspectRepository(pool),
		}
	} else {
		store := memory.New()
		if cfg.App.SeedFile != "" {
			if err := loadSeed(store, cfg.App.SeedFile); err != nil {
				return nil, err
			}
			logger.Info("in-memory store seeded", zap.String("file", cfg.App.SeedFile))
		}
		app.Repos = MemoryRepositories(store)
		app.Postgres = nil
		logger.Warn("using in-memory assignment store; data is lost on restart")
	}

	app.Redis = persistence.NewRedis(cfg.Redis, logger)
	app.Settings = settings.NewRedisProvider(app.Redis.Client, cfg.Dispatch, logger)

	if cfg.Metrics.Enabled {
		handler, meter, err := observability.InitMeterProvider(ctx, cfg.Metrics.ServiceName)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		metrics, err := observability.NewMetrics(meter)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		app.Metrics = metrics
		app.MetricsHandler = handler
	}

	app.Bus = events.NewInMemoryBus(logger)
	app.Audit = service.NewAuditService(app.Bus, app.Repos.Audit, logger)
	app.stopAudit = worker.StartAuditWorker(app.Audit)

	app.Dispatch = service.NewDispatchService(service.DispatchDependencies{
		AssignmentRepo: app.Repos.Assignments,
		BrokerRepo:     app.Repos.Brokers,
		PropertyRepo:   app.Repos.Properties,
		ProspectRepo:   app.Repos.Prospects,
		StuckRepo:      app.Repos.Stuck,
		Settings:       app.Settings,
		Bus:            app.Bus,
		Logger:         logger,
		Metrics:        app.Metrics,
	})
	app.Sweeper = sweeper.New(app.Dispatch, app.Redis, sweeper.OptionsFromConfig(cfg.Sweeper), logger, app.Metrics)
	app.Tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	return app, nil
}

// MemoryRepositories exposes an in-memory store through the repository interfaces.
func MemoryRepositories(store *memory.Store) Repositories {
	return Repositories{
		Assignments: store.Assignments(),
		Brokers:     store.Brokers(),
		Properties:  store.Properties(),
		Prospects:   store.Prospects(),
		Audit:       store.Audit(),
		Stuck:       store.StuckProspects(),
	}
}

// Close flushes pending audit records and releases connections. Callers stop
// the sweeper before closing.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.stopAudit != nil {
		a.stopAudit()
	}
	a.Redis.Close()
	if a.Postgres != nil {
		a.Postgres.Close()
	}
}

func loadSeed(store *memory.Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return store.Load(f)
}
