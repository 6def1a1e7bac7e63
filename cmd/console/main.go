package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/review-workflow/internal/audit"
	"github.com/xela07ax/review-workflow/internal/connectors"
	"github.com/xela07ax/review-workflow/internal/console/handler"
	"github.com/xela07ax/review-workflow/internal/console/server"
	"github.com/xela07ax/review-workflow/internal/console/service"
	"github.com/xela07ax/review-workflow/internal/engine"
	"github.com/xela07ax/review-workflow/internal/hours"
	"github.com/xela07ax/review-workflow/internal/infra"
	"github.com/xela07ax/review-workflow/internal/infra/auth"
	"github.com/xela07ax/review-workflow/internal/repository/postgres"
	"github.com/xela07ax/review-workflow/internal/timetracking"
	"github.com/xela07ax/review-workflow/internal/workflow"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// Контекст жизненного цикла фоновых горутин: SIGTERM останавливает слушателей
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Инфраструктура и ресурсы
	initCtx, cancel := context.WithTimeout(appCtx, 5*time.Second)
	pool, err := postgres.NewPool(initCtx, cfg.Database)
	cancel()
	if err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("auth public key", zap.Error(err))
	}
	privKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("auth private key", zap.Error(err))
	}

	routing, err := workflow.ParseRoutingPolicy(cfg.Workflow.RegulatoryRouting)
	if err != nil {
		logger.Fatal("workflow config", zap.Error(err))
	}

	wh := cfg.Workflow.WorkingHours
	fallbackHours := hours.Settings{StartHour: wh.StartHour, EndHour: wh.EndHour, WorkingDays: wh.WorkingDays, Timezone: wh.Timezone}
	if _, err := fallbackHours.Parse(); err != nil {
		logger.Fatal("working hours config", zap.Error(err))
	}

	// Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	// 2. Репозитории
	requestRepo := postgres.NewRequestRepo(pool)
	auditRepo := postgres.NewAuditRepo(pool)
	directoryRepo := postgres.NewDirectoryRepo(pool)

	// 3. Каталог ролей и рабочего времени (read-through кэш, L2 в Redis)
	var cacheRedis *redis.Client
	if cfg.Cache.RedisEnabled {
		cacheRedis = rdb
	}
	directory := service.NewDirectoryService(directoryRepo, cacheRedis, cfg.Cache.TTL, fallbackHours, logger)

	go engine.ListenResilient(appCtx, rdb, logger.Named("cache-signals"), infra.RedisChanCacheInvalidate,
		directory.InvalidateAll, directory.HandleInvalidation)

	if err := engine.WarmupCaches(appCtx, cacheRedis, logger, infra.GetWarmupLockKey(service.CacheWorkingHours),
		[]string{"default"}, directory.WarmUp); err != nil {
		// Не фатально: кэш заполнится при первом обращении
		logger.Warn("cache warm-up incomplete", zap.Error(err))
	}

	// 4. Синхронизация прав: HTTP-клиент или встроенная заглушка, обернутые в Reliability
	var permissions engine.PermissionSyncer
	if cfg.PermissionSync.BaseURL != "" {
		permissions = connectors.NewPermissionClient(cfg.PermissionSync.BaseURL, cfg.PermissionSync.Token, &http.Client{})
	} else {
		logger.Warn("permission_sync.base_url is empty, using simulated permission service")
		permissions = connectors.NewSimulatedPermissionService()
	}

	ps := cfg.PermissionSync
	syncer := engine.NewReliablePermissionSyncer(permissions, engine.ReliabilityConfig{
		Retry: engine.RetryPolicy{
			Attempts:       ps.Attempts,
			Backoff:        engine.ExponentialBackoff(ps.InitialBackoff, ps.MaxBackoff),
			Retryable:      connectors.IsRetryable,
			AttemptTimeout: ps.AttemptTimeout,
		},
		RateLimit:     ps.RateLimit,
		RateBurst:     ps.RateBurst,
		CBMaxRequests: ps.CBMaxRequests,
		CBInterval:    ps.CBInterval,
		CBTimeout:     ps.CBTimeout,
	}, metrics)

	// 5. Журнал действий: пачками в Postgres
	trail := audit.NewTrail(auditRepo, audit.Config{
		BufferSize:    cfg.Audit.BufferSize,
		BatchSize:     cfg.Audit.BatchSize,
		FlushInterval: cfg.Audit.FlushInterval,
	}, logger)
	trail.OnBufferFill(func(n int) { metrics.AuditBufferFill.Set(float64(n)) })
	trail.Start()

	// 6. Core (Оркестратор автомата заявки)
	tracking := timetracking.NewEngine(directory, logger)
	orchestrator := engine.NewOrchestrator(requestRepo, syncer, tracking, logger,
		engine.WithPublisher(engine.NewRedisStatusPublisher(rdb)),
		engine.WithIdempotency(engine.NewRedisIdempotencyGuard(rdb, cfg.Workflow.IdempotencyTTL)),
		engine.WithAuditor(trail),
		engine.WithMetrics(metrics),
		engine.WithRoutingPolicy(routing),
	)

	// 7. HTTP Server
	authService := service.NewAuthService(directoryRepo, privKey, cfg.Auth.TokenTTL)
	api := server.NewConsoleServer(logger, auth.NewRS256Validator(pubKey), directory, reg, server.Handlers{
		Auth:     handler.NewAuthHandler(authService, logger),
		Requests: handler.NewRequestHandler(orchestrator, service.NewRequestService(requestRepo, logger), logger),
		Audit:    handler.NewAuditHandler(service.NewAuditService(auditRepo)),
		Settings: handler.NewSettingsHandler(directory, logger),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("review workflow API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// 8. Graceful Shutdown
	<-appCtx.Done()
	logger.Info("review workflow API stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	// После остановки HTTP новых событий нет: дописываем остаток журнала
	trail.Stop()
	logger.Info("review workflow API exited properly")
}
