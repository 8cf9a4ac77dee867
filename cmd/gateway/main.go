package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/astro-gateway/internal/api/http"
	"github.com/spec-kit/astro-gateway/internal/api/http/handlers"
	"github.com/spec-kit/astro-gateway/internal/auth"
	"github.com/spec-kit/astro-gateway/internal/backend"
	"github.com/spec-kit/astro-gateway/internal/config"
	"github.com/spec-kit/astro-gateway/internal/events"
	"github.com/spec-kit/astro-gateway/internal/guard"
	"github.com/spec-kit/astro-gateway/internal/observability"
	"github.com/spec-kit/astro-gateway/internal/persistence"
	"github.com/spec-kit/astro-gateway/internal/repository"
	"github.com/spec-kit/astro-gateway/internal/service"
	"github.com/spec-kit/astro-gateway/internal/session"
	"github.com/spec-kit/astro-gateway/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartSessionAudit(service.NewSessionAuditService(dispatcher, logger, metrics))

	table := guard.DefaultRouteTable(cfg.Routes)
	if pg.Enabled() && cfg.Postgres.RoutesFromDB {
		rules, err := repository.NewRouteRuleRepository(pg.Pool).ListEnabled(ctx)
		if err != nil {
			logger.Fatal("failed to load route rules", zap.Error(err))
		}
		table = table.Merge(rules)
		logger.Info("loaded persisted route rules", zap.Int("count", len(rules)))
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	if !cfg.Auth.VerifyAdminToken {
		logger.Warn("admin routes accept any admin cookie; set GUARD_VERIFY_ADMIN_TOKEN=true to verify it")
	}
	routeGuard := guard.New(guard.Options{
		Table:         table,
		SessionCookie: cfg.Cookies.Session,
		AdminCookie:   cfg.Cookies.Admin,
		VerifyAdmin:   cfg.Auth.VerifyAdminToken,
	}, tokens)

	registry := session.NewRegistry(cfg.Session.RegistrySize, cfg.Session.QueryCacheSize, cfg.Session.ClientTTL(), dispatcher)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Session: handlers.NewSessionHandler(handlers.SessionDependencies{
			Registry: registry,
			Verifier: backend.NewClient(cfg.Backend, logger),
			Local: func(clientID string) session.LocalStore {
				return session.NewRedisLocalStore(redis.Client, redis.KeyPrefix, clientID, cfg.Session.ClientTTL())
			},
			Cookies:   cfg.Cookies,
			ClientTTL: cfg.Session.ClientTTL(),
			LoginPath: cfg.Routes.Login,
			Recorder:  metrics,
			Logger:    logger,
		}),
		Pages:   handlers.NewPageHandler(cfg.Frontend.UpstreamURL, logger),
		Guard:   auth.NewGuardMiddleware(routeGuard, cfg.Cookies, logger, metrics),
		Metrics: metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
