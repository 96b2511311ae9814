package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callguard/internal/audit"
	"callguard/internal/auth"
	"callguard/internal/calls"
	"callguard/internal/config"
	"callguard/internal/gateway"
	"callguard/internal/notify"
	"callguard/internal/presence"
	"callguard/internal/quota"
	"callguard/internal/relay"
	"callguard/internal/reporting"
	"callguard/pkg/logger"
	"callguard/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	var db *sql.DB
	if cfg.NeedsPostgres() {
		db, err = utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	st, err := buildStores(rootCtx, cfg, db, rdb, log)
	if err != nil {
		log.Error("storage init failed", "err", err)
		os.Exit(1)
	}

	ledger := quota.NewService(st.quota, quota.Config{
		LimitSeconds: int64(cfg.Quota.MonthlyLimitSeconds),
		Location:     cfg.QuotaLocation(),
	}, log)

	registry := presence.NewRegistry(log)
	hub := gateway.NewHub(log)
	registry.SetBroadcaster(hub)
	rl := relay.New(registry, hub, relay.Options{BroadcastFallback: cfg.Calls.BroadcastFallback}, log)

	history := reporting.NewService(st.history)
	controller := calls.NewController(calls.NewTable(), calls.Deps{
		Ledger:   ledger,
		Relay:    rl,
		Notifier: notify.NewService(st.publisher, log),
		History:  history,
	}, calls.Config{
		GraceSeconds:    int64(cfg.Calls.GraceSeconds),
		MinStartSeconds: int64(cfg.Calls.MinStartSeconds),
		InviteTimeout:   cfg.Calls.InviteTimeout,
		ActiveSlack:     cfg.Calls.ActiveSlack,
		ReapInterval:    cfg.Calls.ReapInterval,
		LedgerFailOpen:  cfg.Calls.LedgerFailOpen,
	}, log)
	defer controller.Close()

	go controller.Run(rootCtx)

	ws := gateway.NewHandler(hub, registry, authManager, controller, gateway.Options{
		AllowedOrigins: cfg.WS.AllowedOrigins,
	}, log)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		auth:       authManager,
		ledger:     ledger,
		controller: controller,
		registry:   registry,
		history:    history,
		audit:      audit.NewService(st.audit),
		ws:         ws,
		location:   cfg.QuotaLocation(),
		devTokens:  !cfg.IsProduction(),
		ready:      readiness(db, rdb),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening",
			"addr", srv.Addr,
			"env", cfg.App.Env,
			"quota_backend", cfg.Quota.Backend,
			"notify_backend", cfg.Notify.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

type stores struct {
	quota     quota.Store
	history   reporting.Repository
	audit     audit.Repository
	publisher notify.Publisher
}

// buildStores picks the ledger, history and audit persistence and the notification sink.
func buildStores(ctx context.Context, cfg config.Config, db *sql.DB, rdb *redis.Client, log *slog.Logger) (stores, error) {
	st := stores{
		quota:     quota.NewMemoryStore(),
		history:   reporting.NewMemoryRepo(),
		audit:     audit.NewMemoryRepo(),
		publisher: notify.NewLogPublisher(log),
	}

	switch cfg.Quota.Backend {
	case config.BackendRedis:
		st.quota = quota.NewRedisStore(rdb, "callguard:quota", cfg.Quota.KeyTTL)
	case config.BackendPostgres:
		qs := quota.NewPostgresStore(db)
		hs := reporting.NewPostgresRepo(db)
		as := audit.NewPostgresRepo(db)
		for _, m := range []interface{ Migrate(context.Context) error }{qs, hs, as} {
			if err := m.Migrate(ctx); err != nil {
				return stores{}, err
			}
		}
		st.quota, st.history, st.audit = qs, hs, as
	}

	if cfg.Notify.Backend == config.BackendRedis {
		st.publisher = notify.NewRedisPublisher(rdb, cfg.Notify.Stream)
	}
	return st, nil
}

// readiness pings whichever external stores are configured.
func readiness(db *sql.DB, rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if db != nil {
			if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
				return err
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return err
			}
		}
		return nil
	}
}
