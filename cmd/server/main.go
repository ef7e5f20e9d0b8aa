// Package main is the entry point of the Student Insight API.
//
// The process serves the dashboard REST API, keeps an in-memory mirror of the
// roster in step with the store and raises high-risk alerts for teachers.
// PostgreSQL and Redis are optional: without them every store is in memory.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/edupredict/student-insight/config"

	// Application layer
	"github.com/edupredict/student-insight/internal/application/command"
	"github.com/edupredict/student-insight/internal/application/eventhandler"
	"github.com/edupredict/student-insight/internal/application/query"

	// Domain
	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"

	// Infrastructure layer
	"github.com/edupredict/student-insight/internal/infrastructure/external/face"
	authn "github.com/edupredict/student-insight/internal/infrastructure/identity"
	"github.com/edupredict/student-insight/internal/infrastructure/messaging"
	"github.com/edupredict/student-insight/internal/infrastructure/persistence/memory"
	"github.com/edupredict/student-insight/internal/infrastructure/persistence/postgres"
	"github.com/edupredict/student-insight/internal/infrastructure/persistence/redis"
	"github.com/edupredict/student-insight/internal/infrastructure/scheduler"
	"github.com/edupredict/student-insight/internal/infrastructure/scheduler/jobs"

	// Interface layer
	httpserver "github.com/edupredict/student-insight/internal/interface/http"
	"github.com/edupredict/student-insight/internal/interface/http/handlers"

	"github.com/edupredict/student-insight/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// eventBus is what the wiring needs from either bus implementation.
type eventBus interface {
	shared.EventPublisher
	shared.EventSubscriber
	Use(m messaging.Middleware)
	Close() error
}

// stores groups the persistence ports chosen at startup.
type stores struct {
	roster      student.Repository
	profiles    identity.ProfileStore
	sessions    identity.SessionStore
	descriptors face.DescriptorStore
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration & logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Format:  logger.ParseFormat(cfg.Log.Format),
		Output:  os.Stdout,
		Service: cfg.App.Name,
	})
	slog.SetDefault(log)
	log.Info("starting Student Insight API",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"postgres", cfg.UsePostgres(),
		"redis", cfg.UseRedis(),
		"face_service", cfg.UseFaceService(),
	)

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	st := stores{
		roster:      memory.NewRosterStore(),
		profiles:    memory.NewProfileStore(),
		sessions:    memory.NewSessionStore(),
		descriptors: memory.NewDescriptorStore(),
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. PostgreSQL (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.UsePostgres() {
		log.Info("connecting to database...")
		pgCfg := postgres.DefaultConfig()
		pgCfg.URL = cfg.Database.URL
		pgCfg.MaxConns = cfg.Database.MaxConns
		pgCfg.MinConns = cfg.Database.MinConns
		pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

		db, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			db.Close()
		}()

		if cfg.Database.AutoMigrate {
			if err := runMigrations(ctx, db, log); err != nil {
				return err
			}
		}

		st.roster = postgres.NewRosterRepository(db, log)
		st.profiles = postgres.NewProfileRepository(db)
		health.AddCheck("postgres", handlers.NewPingCheck(db))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Redis (optional) & event bus
	// ─────────────────────────────────────────────────────────────────────────
	var (
		bus        eventBus
		alertBus   *messaging.InMemoryEventBus
		changeFeed student.ChangeFeed = st.roster
	)

	if cfg.UseRedis() {
		log.Info("connecting to Redis...")
		cache, err := redis.NewCache(ctx, redisConfig(cfg.Redis))
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer func() {
			log.Info("closing Redis connection...")
			_ = cache.Close()
		}()
		health.AddCheck("redis", handlers.NewPingCheck(cache))

		st.sessions = redis.NewSessionStore(cache)
		st.descriptors = redis.NewDescriptorStore(cache)

		pubsub := redis.NewPubSub(cache)
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:   pubsub,
			LocalBus: messaging.DefaultInMemoryEventBusConfig(),
			Logger:   log,
		})
		if err != nil {
			return fmt.Errorf("failed to start event bus: %w", err)
		}
		bus = redisBus
		// Every instance raises its own alerts from its own mirror.
		alertBus = redisBus.Local()

		if cfg.Features.IsEnabled(config.FeatureRedisRelay) {
			feed, err := messaging.NewRedisChangeFeed(messaging.RedisChangeFeedConfig{Client: pubsub, Logger: log})
			if err != nil {
				return fmt.Errorf("failed to create change relay: %w", err)
			}
			stopRelay, err := feed.Relay(ctx, st.roster)
			if err != nil {
				return fmt.Errorf("failed to relay roster changes: %w", err)
			}
			defer stopRelay()
			changeFeed = messaging.MergeFeeds(st.roster, feed)
		}
	} else {
		local := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
		bus = local
		alertBus = local
	}
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	bus.Use(messaging.RecoveryMiddleware(log))
	bus.Use(messaging.LoggingMiddleware(log))

	audit := eventhandler.NewAuditLogger(log)
	if err := bus.SubscribeAll(audit.Handle); err != nil {
		return fmt.Errorf("failed to subscribe audit log: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Roster sync & alerts
	// ─────────────────────────────────────────────────────────────────────────
	rosterSync := messaging.NewSyncChannel(messaging.SyncChannelConfig{
		Lister: st.roster,
		Feed:   changeFeed,
		Logger: log,
	})
	defer rosterSync.Stop()
	health.AddCheck("roster_sync", handlers.NewSyncCheck(rosterSync))

	var alerts query.AlertSource
	if cfg.Features.IsEnabled(config.FeatureHighRiskAlerts) {
		inbox := eventhandler.NewAlertInbox(cfg.Roster.AlertHistory, log)
		if err := alertBus.Subscribe(inbox.EventType(), inbox.Handle); err != nil {
			return fmt.Errorf("failed to subscribe alert inbox: %w", err)
		}
		alerts = inbox

		alerter := eventhandler.NewHighRiskAlerter(alertBus, log)
		defer rosterSync.Attach(alerter.OnSnapshot)()
	}

	if err := rosterSync.Start(ctx, nil); err != nil {
		// Not fatal: the dashboard reports not_synced until the next change.
		log.Error("initial roster sync failed", "error", err)
	}

	if cfg.Scheduler.Enabled {
		sched, err := startScheduler(ctx, cfg.Scheduler, rosterSync, st.sessions, log)
		if err != nil {
			return err
		}
		defer func() { _ = sched.Stop() }()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Face verification
	// ─────────────────────────────────────────────────────────────────────────
	var recognizer face.Recognizer = face.NewLocalRecognizer(st.descriptors)
	if cfg.UseFaceService() {
		faceCfg := face.DefaultClientConfig(cfg.Face.ServiceURL)
		faceCfg.Timeout = cfg.Face.Timeout
		faceCfg.MaxAttempts = cfg.Face.MaxAttempts
		faceCfg.Logger = log
		recognizer = face.NewClient(faceCfg)
	}
	verifier := face.NewVerifier(recognizer, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Use cases
	// ─────────────────────────────────────────────────────────────────────────
	tokens, err := authn.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	model := student.NewScoreModel(nil)
	attendance := command.NewMarkAttendanceHandler(st.roster, model, cfg.Face.AttendanceIncrement, bus, log)

	deps := httpserver.Dependencies{
		Auth: command.NewAuthHandler(command.AuthConfig{
			Profiles:  st.profiles,
			Sessions:  st.sessions,
			Hasher:    authn.NewPasswordHasher(cfg.Auth.BcryptCost),
			Tokens:    tokens,
			Publisher: bus,
			TTL:       cfg.Auth.SessionTTL,
			Logger:    log,
		}),
		Roster:        command.NewRosterHandler(st.roster, model, bus, log),
		Import:        command.NewImportRosterHandler(st.roster, model, bus, log),
		Face:          command.NewFaceAttendanceHandler(verifier, attendance, bus, log),
		Dashboard:     query.NewDashboardHandler(rosterSync, alerts, log),
		Students:      query.NewStudentsHandler(st.roster),
		Predictions:   query.NewPredictionHandler(model),
		Export:        query.NewExportHandler(st.roster),
		Assistant:     query.NewAssistantHandler(rosterSync),
		Features:      cfg.Features,
		HealthChecker: health,
		Logger:        log,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.RequestTimeout = cfg.HTTP.RequestTimeout
	httpCfg.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpCfg.Version = cfg.App.Version

	server := httpserver.NewServer(httpCfg, deps)
	errCh := server.StartAsync()

	log.Info("Student Insight API is running", "address", httpCfg.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 8. Wait & shut down
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("server error", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func runMigrations(ctx context.Context, db *postgres.Connection, log *slog.Logger) error {
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(db)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		log.Warn("failed to get migration status", "error", err)
		return nil
	}
	applied := 0
	for _, m := range status {
		if m.IsApplied {
			applied++
		}
	}
	log.Info("migrations completed", "applied", applied, "total", len(status))
	return nil
}

// startScheduler registers the maintenance jobs. Session purging only runs
// for stores that do not expire entries themselves.
func startScheduler(ctx context.Context, cfg config.SchedulerConfig, rosterSync *messaging.SyncChannel, sessions identity.SessionStore, log *slog.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.New(scheduler.Config{Logger: log})
	sched.OnJobError(func(name string, err error) {
		log.Warn("maintenance job failed", "job", name, "error", err)
	})

	if err := sched.Register(jobs.NewResyncRosterJob(rosterSync, log), scheduler.Every(cfg.ResyncInterval)); err != nil {
		return nil, fmt.Errorf("failed to register job: %w", err)
	}
	if err := sched.Register(jobs.NewRiskDigestJob(rosterSync, log), scheduler.Every(cfg.RiskDigestInterval)); err != nil {
		return nil, fmt.Errorf("failed to register job: %w", err)
	}
	if purger, ok := sessions.(jobs.SessionPurger); ok {
		if err := sched.Register(jobs.NewPurgeSessionsJob(purger, log), scheduler.Every(cfg.SessionPurgeInterval)); err != nil {
			return nil, fmt.Errorf("failed to register job: %w", err)
		}
	}

	if err := sched.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}
	return sched, nil
}

func redisConfig(c config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = c.URL
	rc.Host = c.Host
	rc.Port = c.Port
	rc.Password = c.Password
	rc.DB = c.DB
	rc.PoolSize = c.PoolSize
	rc.MinIdleConns = c.MinIdleConns
	rc.DialTimeout = c.DialTimeout
	rc.ReadTimeout = c.ReadTimeout
	rc.WriteTimeout = c.WriteTimeout
	return rc
}
