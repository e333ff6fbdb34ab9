package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/handler"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/repository"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/pkg/cache"
	"github.com/noah-isme/edu-center-api/pkg/config"
	"github.com/noah-isme/edu-center-api/pkg/database"
	"github.com/noah-isme/edu-center-api/pkg/jobs"
	"github.com/noah-isme/edu-center-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/edu-center-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edu-center-api/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, scanner runs without a lock", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	notificationWorker := service.NewNotificationWorker(service.NewLogNotificationSink(logr), metrics, logr)
	notificationQueue := jobs.NewQueue("notifications", notificationWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	notificationQueue.Start(ctx)
	defer notificationQueue.Stop()

	services := buildServices(cfg, db, redisClient, notificationQueue, metrics, validate, logr)

	if cfg.Alerts.Enabled {
		go services.scanner.Run(ctx, cfg.Alerts.ScanInterval)
	}

	router := newRouter(cfg, db, redisClient, services, metrics, logr)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

type appServices struct {
	auth        *service.AuthService
	enrollments *service.EnrollmentService
	bulk        *service.BulkEnrollmentService
	conflicts   *service.ConflictService
	alerts      *service.AlertService
	scanner     *service.LifecycleScanner
	requests    *service.EnrollmentRequestService
}

func buildServices(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, queue *jobs.Queue, metrics *service.MetricsService, validate *validator.Validate, logr *zap.Logger) appServices {
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	requestRepo := repository.NewEnrollmentRequestRepository(db)

	txRunner := database.NewTxRunner(db,
		database.WithMaxAttempts(cfg.Enrollment.TxMaxAttempts),
		database.WithBackoff(cfg.Enrollment.TxRetryBackoff),
		database.WithRetryHook(metrics.RecordTxRetry),
	)

	conflicts := service.NewConflictService(enrollmentRepo, classRepo, validate, logr)
	enrollments := service.NewEnrollmentService(service.EnrollmentServiceParams{
		Enrollments: enrollmentRepo,
		Classes:     classRepo,
		Students:    studentRepo,
		Audits:      auditRepo,
		Tx:          txRunner,
		Conflicts:   conflicts,
		Capacity:    service.NewCapacityService(enrollmentRepo, classRepo, logr),
		Notifier:    service.NewNotificationService(queue, metrics, logr),
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
		Config:      service.EnrollmentServiceConfig{DefaultSemester: cfg.Enrollment.DefaultSemester},
	})
	alerts := service.NewAlertService(alertRepo, metrics, logr, service.AlertServiceConfig{DedupWindow: cfg.Alerts.DedupWindow})

	location, err := time.LoadLocation(cfg.Alerts.Timezone)
	if err != nil {
		logr.Warn("unknown alert timezone, using UTC", zap.String("timezone", cfg.Alerts.Timezone), zap.Error(err))
		location = time.UTC
	}
	scannerCfg := service.LifecycleScannerConfig{
		StartThresholds: cfg.Alerts.StartThresholds,
		EndThresholds:   cfg.Alerts.EndThresholds,
		LockTTL:         cfg.Alerts.ScanLockTTL,
		Location:        location,
	}
	var scanner *service.LifecycleScanner
	if redisClient != nil {
		scanner = service.NewLifecycleScanner(classRepo, alerts, cache.NewLocker(redisClient, "edu-center:lock:"), metrics, logr, scannerCfg)
	} else {
		scanner = service.NewLifecycleScanner(classRepo, alerts, nil, metrics, logr, scannerCfg)
	}

	return appServices{
		auth:        service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}),
		enrollments: enrollments,
		bulk:        service.NewBulkEnrollmentService(enrollments, logr),
		conflicts:   conflicts,
		alerts:      alerts,
		scanner:     scanner,
		requests:    service.NewEnrollmentRequestService(requestRepo, enrollments, alerts, logr),
	}
}

func newRouter(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, svc appServices, metrics *service.MetricsService, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}
	metricsHandler := handler.NewMetricsHandler(metrics.Handler(), checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	enrollmentHandler := handler.NewEnrollmentHandler(svc.enrollments, svc.bulk, svc.conflicts)
	alertHandler := handler.NewAlertHandler(svc.alerts, svc.scanner)
	requestHandler := handler.NewEnrollmentRequestHandler(svc.requests)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(svc.auth))

	staff := api.Group("")
	staff.Use(middleware.RequireRoles(middleware.Staff...))
	staff.GET("/enrollments", enrollmentHandler.List)
	staff.GET("/enrollments/:id", enrollmentHandler.Get)
	staff.POST("/enrollments", enrollmentHandler.Create)
	staff.POST("/enrollments/bulk", enrollmentHandler.BulkCreate)
	staff.POST("/enrollments/conflicts", enrollmentHandler.CheckConflicts)
	staff.PATCH("/enrollments/:id/status", enrollmentHandler.UpdateStatus)
	staff.POST("/enrollments/:id/transfer", enrollmentHandler.Transfer)

	staff.GET("/enrollment-requests", requestHandler.ListPending)
	staff.GET("/enrollment-requests/:id", requestHandler.Get)
	staff.POST("/enrollment-requests/:id/approve", requestHandler.Approve)
	staff.POST("/enrollment-requests/:id/reject", requestHandler.Reject)

	staff.GET("/alerts", alertHandler.List)
	staff.POST("/alerts/:id/read", alertHandler.MarkRead)

	api.POST("/enrollment-requests", requestHandler.Create)

	managers := api.Group("")
	managers.Use(middleware.RequireRoles(middleware.Managers...))
	managers.DELETE("/enrollments/:id", enrollmentHandler.Delete)
	managers.POST("/alerts/scan", alertHandler.Scan)

	return r
}
