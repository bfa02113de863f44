package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/campusworks/caseboard-ui-api/config"
	"github.com/campusworks/caseboard-ui-api/internal/bootstrap"
	"github.com/campusworks/caseboard-ui-api/internal/data"
	httpx "github.com/campusworks/caseboard-ui-api/internal/http"
	"github.com/campusworks/caseboard-ui-api/internal/ports"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logStartupInfo(ctx, logger, &cfg)

	redisClient, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		RedisConfig: cfg.Redis,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := redisClient.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close redis failed", "error", cerr)
		}
	}()

	db, auditRepo, err := initAuditStore(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close database failed", "error", cerr)
			}
		}()
	}

	metrics, err := bootstrap.BuildMetrics(cfg.Observability.Metrics, logger)
	if err != nil {
		return err
	}
	defer metrics.Close()

	var auditor ports.LoginAuditor
	if auditRepo != nil {
		auditor = auditRepo
	}

	authSvc, err := bootstrap.BuildAuthService(bootstrap.AuthConfig{
		Auth:        cfg.Auth,
		RedisClient: redisClient,
		Auditor:     auditor,
		Metrics:     metrics,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	var audit httpx.AuditRepository
	if auditRepo != nil {
		audit = auditRepo
	}

	server := bootstrap.StartHTTPServer(&bootstrap.HTTPServerConfig{
		Config:  &cfg,
		Auth:    authSvc,
		Tickets: bootstrap.BuildTicketStore(redisClient, cfg.Auth),
		Audit:   audit,
		Logger:  logger,
	})

	return waitForShutdown(ctx, server, logger)
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting caseboard-ui-api",
		"auth_mode", cfg.Auth.Mode,
		"addr", cfg.HTTP.Addr,
		"audit_enabled", cfg.Postgres.Enabled,
		"dev", cfg.IsDev)
}

// initAuditStore connects the audit database when enabled. Both returns are
// nil when the audit trail is switched off.
func initAuditStore(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, *data.LoginAuditRepo, error) {
	if !cfg.Postgres.Enabled {
		logger.InfoContext(ctx, "audit database disabled; login audit trail is off")
		return nil, nil, nil
	}

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cfg.Postgres,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}

	if cfg.Postgres.RunMigrationsOnStart {
		if err := bootstrap.RunMigrations(ctx, db, logger); err != nil {
			if cerr := db.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("close database: %w", cerr))
			}
			return nil, nil, err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	return db, data.NewLoginAuditRepo(db), nil
}

// waitForShutdown blocks until a termination signal arrives, then drains the
// HTTP server.
func waitForShutdown(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	sig := <-quit
	logger.InfoContext(ctx, "shutdown signal received", "signal", sig.String())

	return bootstrap.ShutdownHTTPServer(bootstrap.ShutdownConfig{
		Context: ctx,
		Server:  server,
		Logger:  logger,
	})
}
