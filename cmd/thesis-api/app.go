package main

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/thesis-defense-api/api/swagger"
	"github.com/noah-isme/thesis-defense-api/internal/handler"
	"github.com/noah-isme/thesis-defense-api/internal/middleware"
	"github.com/noah-isme/thesis-defense-api/internal/repository"
	"github.com/noah-isme/thesis-defense-api/internal/service"
	"github.com/noah-isme/thesis-defense-api/pkg/config"
	"github.com/noah-isme/thesis-defense-api/pkg/jobs"
	"github.com/noah-isme/thesis-defense-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/thesis-defense-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/thesis-defense-api/pkg/middleware/requestid"
)

type application struct {
	router *gin.Engine
	events *jobs.Queue
}

// newApplication wires repositories, services and routes. redisClient may be nil.
// The returned event queue is already started.
func newApplication(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) *application {
	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	location := cfg.Scheduler.Location()

	thesisRepo := repository.NewThesisRepository(db)
	scheduleRepo := repository.NewDefenseScheduleRepository(db)
	runRepo := repository.NewAutoScheduleRunRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	panelRepo := repository.NewPanelActionRepository(db)

	var cacheRepo service.CacheRepository
	sinks := []service.EventSink{service.NewLogEventSink(logr)}
	if redisClient != nil {
		redisCache := repository.NewCacheRepository(redisClient, logr)
		cacheRepo = redisCache
		sinks = append(sinks, service.NewRedisEventSink(redisCache, cfg.Events.RedisChannel))
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Panel.OutcomeCacheTTL, logr, cfg.Panel.OutcomeCacheEnabled && cacheRepo != nil)

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiry,
		Issuer:            cfg.JWT.Issuer,
	})
	thesisSvc := service.NewThesisService(thesisRepo, db, metricsSvc, validate, logr)
	detector := service.NewConflictDetector(scheduleRepo, availabilityRepo, location, logr)
	scheduler := service.NewDefenseScheduler(scheduleRepo, runRepo, detector, db, metricsSvc, validate, logr, service.DefenseSchedulerConfig{
		Location:               location,
		WorkStartHour:          cfg.Scheduler.WorkStartHour,
		WorkEndHour:            cfg.Scheduler.WorkEndHour,
		SearchHorizonDays:      cfg.Scheduler.SearchHorizonDays,
		DefaultDurationMinutes: cfg.Scheduler.DefaultDurationMinutes,
	})
	aggregator := service.NewPanelAggregator(panelRepo, scheduler, db, cacheSvc, cfg.Panel.OutcomeCacheTTL, metricsSvc, validate, logr)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, db, validate, logr)
	exportSvc := service.NewExportService(scheduler, location, logr)

	dispatcher := service.NewEventDispatcher(metricsSvc, logr, sinks...)
	eventQueue := jobs.NewQueue("events", dispatcher.Handle, jobs.QueueConfig{
		Workers:    cfg.Events.Workers,
		BufferSize: cfg.Events.BufferSize,
		MaxRetries: cfg.Events.MaxRetries,
		RetryDelay: cfg.Events.RetryDelay,
		Logger:     logr,
	})
	dispatcher.AttachQueue(eventQueue)

	orchestrator := service.NewWorkflowOrchestrator(thesisSvc, scheduler, aggregator, dispatcher, logr)

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handler.RegisterProbes(r, metricsHandler)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(apiPrefix(cfg.APIPrefix)), handler.Handlers{
		Thesis:       handler.NewThesisHandler(orchestrator, thesisSvc, scheduler),
		Defense:      handler.NewDefenseHandler(orchestrator, scheduler),
		Panel:        handler.NewPanelHandler(orchestrator, aggregator),
		Availability: handler.NewAvailabilityHandler(availabilitySvc),
		Export:       handler.NewExportHandler(exportSvc),
		Metrics:      metricsHandler,
	}, authSvc)

	eventQueue.Start(context.Background())
	return &application{router: r, events: eventQueue}
}

func apiPrefix(prefix string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return "/api/v1"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}
