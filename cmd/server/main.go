package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"secretsManagement/internal/access"
	"secretsManagement/internal/config"
	"secretsManagement/internal/db"
	grpcserver "secretsManagement/internal/grpc"
	"secretsManagement/internal/httpapi"
	"secretsManagement/internal/logger"
	"secretsManagement/internal/metrics"
	"secretsManagement/internal/ratelimit"
	"secretsManagement/repository"
)

func main() {
	root := &cli.Command{
		Name:  "secrets",
		Usage: "Secrets management server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML config file (overrides CONFIG_FILE)"},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if path := c.String("config"); path != "" {
				return ctx, os.Setenv("CONFIG_FILE", path)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			rollbackCommand(),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runServer(ctx)
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the REST and gRPC servers (default)",
		Action: func(ctx context.Context, c *cli.Command) error {
			return runServer(ctx)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "reset", Usage: "roll back every migration first; DESTROYS ALL DATA"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return withDB(func(cfg *config.Config, l *zap.Logger, d *sql.DB) error {
				if c.Bool("reset") {
					l.Warn("resetting database", zap.String("path", cfg.Database.Path))
					if err := db.Reset(d); err != nil {
						return fmt.Errorf("reset: %w", err)
					}
				}
				return reportVersions(l, d)
			})
		},
	}
}

func rollbackCommand() *cli.Command {
	return &cli.Command{
		Name:  "rollback",
		Usage: "Roll back the most recently applied migration",
		Action: func(ctx context.Context, c *cli.Command) error {
			return withDB(func(cfg *config.Config, l *zap.Logger, d *sql.DB) error {
				if err := db.RollbackLast(d); err != nil {
					return err
				}
				return reportVersions(l, d)
			})
		},
	}
}

// withDB loads configuration, opens (and migrates) the database and closes it
// after fn returns.
func withDB(fn func(cfg *config.Config, l *zap.Logger, d *sql.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	l, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	d, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			l.Warn("close db", zap.Error(err))
		}
	}()
	return fn(cfg, l, d)
}

func reportVersions(l *zap.Logger, d *sql.DB) error {
	applied, err := db.AppliedVersions(d)
	if err != nil {
		return err
	}
	l.Info("schema ready", zap.Int("applied_migrations", len(applied)))
	return nil
}

func runServer(ctx context.Context) error {
	return withDB(func(cfg *config.Config, l *zap.Logger, d *sql.DB) error {
		l.Info("configuration loaded", zap.Stringer("config", cfg))

		if cfg.Database.ResetOnStart {
			l.Warn("DB_RESET_ON_START is set, resetting database", zap.String("path", cfg.Database.Path))
			if err := db.Reset(d); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
		}

		m := metrics.New()
		store := repository.NewStore(d, repository.WithLogger(l.Named("store")), repository.WithMetrics(m))
		if v, err := store.SQLiteVersion(ctx); err == nil {
			l.Info("store opened", zap.String("path", cfg.Database.Path), zap.String("sqlite_version", v))
		}

		limiterCfg := ratelimit.Config{MaxFailures: cfg.Auth.MaxFailures, Window: cfg.Auth.FailureWindow}
		var limiter ratelimit.FailureLimiter = ratelimit.NewMemoryLimiter(limiterCfg)
		if cfg.Redis.Addr != "" {
			rl, err := ratelimit.NewRedisLimiter(ctx, ratelimit.RedisOptions{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, limiterCfg)
			if err != nil {
				return err
			}
			defer func() { _ = rl.Close() }()
			limiter = rl
		}

		svc := access.NewService(store,
			access.WithLimiter(limiter),
			access.WithLogger(l.Named("access")),
			access.WithMetrics(m),
			access.WithBcryptCost(cfg.Auth.BcryptCost),
			access.WithDefaultExpiryDays(cfg.Secrets.DefaultExpiryDays),
		)

		errCh := make(chan error, 1)
		var httpSrv *http.Server
		if cfg.HTTP.Address != "" {
			httpSrv = &http.Server{
				Addr:              cfg.HTTP.Address,
				Handler:           httpapi.NewRouter(svc, store, m, l.Named("http")),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				l.Info("http server listening", zap.String("addr", cfg.HTTP.Address))
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()
		}

		var grpcShutdown func(context.Context) error
		if cfg.GRPC.Address != "" {
			var err error
			grpcShutdown, err = grpcserver.StartGRPC(cfg.GRPC.Address, svc, l.Named("grpc"))
			if err != nil {
				return fmt.Errorf("start grpc: %w", err)
			}
			l.Info("grpc server listening", zap.String("addr", cfg.GRPC.Address))
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		var runErr error
		select {
		case sig := <-sigCh:
			l.Info("shutting down", zap.String("signal", sig.String()))
		case runErr = <-errCh:
			l.Error("server failed", zap.Error(runErr))
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if httpSrv != nil {
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				l.Warn("http shutdown", zap.Error(err))
			}
		}
		if grpcShutdown != nil {
			if err := grpcShutdown(shutdownCtx); err != nil {
				l.Warn("grpc shutdown", zap.Error(err))
			}
		}
		return runErr
	})
}
