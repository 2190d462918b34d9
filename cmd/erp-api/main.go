package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/arjun-mehta/school-erp-api/internal/handler"
	"github.com/arjun-mehta/school-erp-api/internal/middleware"
	"github.com/arjun-mehta/school-erp-api/internal/models"
	"github.com/arjun-mehta/school-erp-api/internal/repository"
	"github.com/arjun-mehta/school-erp-api/internal/service"
	"github.com/arjun-mehta/school-erp-api/pkg/cache"
	"github.com/arjun-mehta/school-erp-api/pkg/config"
	"github.com/arjun-mehta/school-erp-api/pkg/database"
	"github.com/arjun-mehta/school-erp-api/pkg/jobs"
	"github.com/arjun-mehta/school-erp-api/pkg/logger"
	"github.com/arjun-mehta/school-erp-api/pkg/mailer"
	"github.com/arjun-mehta/school-erp-api/pkg/metrics"
	corsmiddleware "github.com/arjun-mehta/school-erp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/arjun-mehta/school-erp-api/pkg/middleware/requestid"
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, unread counts will not be cached", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := metrics.New()
	mail := mailer.New(cfg.Mail, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	emailQueue := jobs.NewQueue("notification-emails", func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(mailer.Message)
		if !ok {
			logr.Warn("unexpected email job payload", zap.String("job_id", job.ID))
			return nil
		}
		if err := mail.Send(ctx, msg); err != nil {
			m.EmailsFailed.Inc()
			return err
		}
		return nil
	}, jobs.Config{
		Workers:    cfg.Notifications.EmailWorkers,
		BufferSize: cfg.Notifications.EmailBufferSize,
		MaxRetries: cfg.Notifications.EmailRetries,
		Logger:     logr,
	})
	emailQueue.Start(ctx)
	defer emailQueue.Stop()

	userRepo := repository.NewUserRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	admitCardRepo := repository.NewAdmitCardRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	auditService := service.NewAuditService(auditRepo, logr, m)
	notificationService := service.NewNotificationService(
		notificationRepo, userRepo, emailQueue, cacheRepo, logr, m,
		service.NotificationConfig{
			FanOutWorkers:  cfg.Notifications.FanOutWorkers,
			UnreadCacheTTL: cfg.Notifications.UnreadCacheTTL,
			AppName:        cfg.Mail.AppName,
			DashboardURL:   cfg.Mail.DashboardURL,
		})
	visibilityService := service.NewVisibilityService(
		timetableRepo, rosterRepo, userRepo, notificationService, auditService, logr, m,
		service.VisibilityConfig{DefaultReportingTime: cfg.AdmitCards.DefaultReportingTime})

	routes := handler.Routes{
		Auth:          handler.NewAuthHandler(authService),
		Timetables:    handler.NewTimetableHandler(visibilityService, admitCardRepo, timetableRepo),
		Notifications: handler.NewNotificationHandler(notificationService),
		Audit:         handler.NewAuditHandler(auditService),
		Authenticated: middleware.JWT(authService),
		AdminOnly:     middleware.RBAC(models.RoleSuperAdmin, models.RoleSchoolAdmin),
		Metrics:       m.Handler(),
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	routes.Register(r, cfg.APIPrefix)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
