package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/emergency-vehicle-system/service-dispatch/internal/application"
	"github.com/emergency-vehicle-system/service-dispatch/internal/common/database"
	"github.com/emergency-vehicle-system/service-dispatch/internal/common/health"
	"github.com/emergency-vehicle-system/service-dispatch/internal/common/kafka"
	"github.com/emergency-vehicle-system/service-dispatch/internal/common/logger"
	"github.com/emergency-vehicle-system/service-dispatch/internal/common/middleware"
	"github.com/emergency-vehicle-system/service-dispatch/internal/config"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/detection"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/station"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/vehicle"
	dispatchEvents "github.com/emergency-vehicle-system/service-dispatch/internal/events"
	"github.com/emergency-vehicle-system/service-dispatch/internal/handler"
	"github.com/emergency-vehicle-system/service-dispatch/internal/metrics"
	"github.com/emergency-vehicle-system/service-dispatch/internal/repository"
	"github.com/emergency-vehicle-system/service-dispatch/internal/routing"
)

const serviceName = "service-dispatch"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("station_source", cfg.Stations.Source),
		zap.String("resolver_policy", cfg.Stations.ResolverPolicy),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", zap.Error(err))
	}
	defer func() { _ = sqlDB.Close() }()

	if err := db.AutoMigrate(&repository.EmergencyRequestModel{}, &repository.StationModel{}); err != nil {
		log.Fatal("failed to run auto-migration", zap.Error(err))
	}
	log.Info("database migration completed")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Kafka producer
	var producer kafka.Publisher = kafka.NopPublisher{}
	if cfg.MessagingEnabled() {
		kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = kafkaProducer.Close() }()
		producer = kafkaProducer
	} else {
		log.Warn("no kafka brokers configured, events will not be published")
	}

	// Initialize repositories and the station source
	requestRepo := repository.NewGormRequestRepository(db)

	var source station.Source = station.NewStaticSource()
	if cfg.Stations.Source == config.StationSourcePostgres {
		stationRepo := repository.NewGormStationRepository(db)
		n, err := stationRepo.Count(ctx)
		if err != nil {
			log.Fatal("failed to count stations", zap.Error(err))
		}
		if n == 0 {
			if err := stationRepo.Seed(ctx, station.DefaultCatalog()); err != nil {
				log.Fatal("failed to seed stations", zap.Error(err))
			}
			log.Info("seeded station table with default catalog")
		}
		source = stationRepo
	}

	// Initialize domain collaborators
	selection, err := detection.ParseSelection(cfg.Detection.Selection)
	if err != nil {
		log.Fatal("invalid detection selection", zap.Error(err))
	}
	normalizer, err := detection.NewNormalizer(cfg.Detection.Threshold, selection)
	if err != nil {
		log.Fatal("invalid detection threshold", zap.Error(err))
	}
	resolver, err := station.NewResolver(station.Policy(cfg.Stations.ResolverPolicy))
	if err != nil {
		log.Fatal("invalid resolver policy", zap.Error(err))
	}

	var planner routing.Planner = routing.NewDirectPlanner()
	var fallback routing.Planner
	if cfg.Routing.URL != "" {
		planner = routing.NewHTTPPlanner(cfg.Routing.URL, cfg.Routing.Timeout, cfg.Routing.RateLimit, log)
		fallback = routing.NewDirectPlanner()
	}

	m := metrics.New()

	// Initialize application services
	stationService := application.NewStationService(source, station.NewRegistry(), resolver, producer, m, log)
	if _, err := stationService.Refresh(ctx); err != nil {
		log.Fatal("failed to load station directory", zap.Error(err))
	}
	if err := stationService.StartScheduler(cfg.Stations.RefreshInterval); err != nil {
		log.Fatal("failed to schedule station refresh", zap.Error(err))
	}
	defer func() { _ = stationService.StopScheduler() }()

	detectionService := application.NewDetectionService(normalizer, stationService, producer, m, log)
	routeService := application.NewRouteService(stationService, planner, fallback, m, log)
	requestService := application.NewRequestService(requestRepo, stationService, producer, log)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(m.Middleware())

	// Register health check and metrics routes
	health.NewHandler(serviceName, map[string]health.Pinger{"postgres": sqlDB}).RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// Register routes
	handler.NewDetectionHandler(detectionService).RegisterRoutes(&router.RouterGroup)
	handler.NewStationHandler(stationService).RegisterRoutes(&router.RouterGroup)
	handler.NewRouteHandler(routeService).RegisterRoutes(&router.RouterGroup)
	handler.NewRequestHandler(requestService).RegisterRoutes(&router.RouterGroup)
	handler.NewAdminHandler(stationService, requestService).RegisterRoutes(&router.RouterGroup)
	handler.NewVehicleHandler(vehicle.DefaultFleet()).RegisterRoutes(&router.RouterGroup)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Station events keep replicas in step when the directory is edited.
	if cfg.MessagingEnabled() {
		groupID := cfg.KafkaConfig.GroupPrefix + serviceName
		consumer := dispatchEvents.NewStationEventConsumer(cfg.KafkaConfig.Brokers, groupID, stationService, log)
		defer func() { _ = consumer.Close() }()

		g.Go(func() error {
			log.Info("starting station event consumer")
			if err := consumer.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("station event consumer: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down " + serviceName + "...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server forced shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error(serviceName+" exited with error", zap.Error(err))
	}
	log.Info(serviceName + " stopped")
}
