package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/crsacramento/BusTicketsServer/internal/account"
	"github.com/crsacramento/BusTicketsServer/internal/bus"
	"github.com/crsacramento/BusTicketsServer/internal/config"
	"github.com/crsacramento/BusTicketsServer/internal/db"
	"github.com/crsacramento/BusTicketsServer/internal/health"
	"github.com/crsacramento/BusTicketsServer/internal/logger"
	"github.com/crsacramento/BusTicketsServer/internal/messaging"
	"github.com/crsacramento/BusTicketsServer/internal/metrics"
	"github.com/crsacramento/BusTicketsServer/internal/middleware"
	"github.com/crsacramento/BusTicketsServer/internal/telemetry"
	"github.com/crsacramento/BusTicketsServer/internal/ticket"

	"github.com/gin-gonic/gin"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
)

type App struct {
	config    *config.Config
	engine    *gin.Engine
	server    *http.Server
	logger    *slog.Logger
	database  *bun.DB
	telemetry *telemetry.Telemetry
	producer  *messaging.Producer
}

func New() *App {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)

	// Set as default logger so slog.Info() uses the same handler
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	app := &App{
		config: cfg,
		engine: gin.New(),
		logger: slogLogger,
	}
	app.engine.Use(gin.Recovery())
	app.engine.Use(middleware.CORS(cfg.Server.CORSOrigins))

	app.database = db.New(cfg.Database)

	ctx := context.Background()
	if err := db.RunMigrations(ctx, app.database, (*account.User)(nil), (*ticket.Ticket)(nil)); err != nil {
		log.Fatal("failed to run migrations:", err)
	}
	if err := ticket.EnsureIndexes(ctx, app.database); err != nil {
		log.Fatal("failed to create ticket indexes:", err)
	}

	// Telemetry is optional: the service runs without a collector
	tel, err := telemetry.Init(ctx, ServiceName, Version, slogLogger)
	if err != nil {
		slogLogger.Warn("failed to initialize telemetry", "error", err)
	} else {
		app.telemetry = tel
		if err := tel.Metrics.Database.RegisterDB(app.database.DB, otel.Meter(ServiceName)); err != nil {
			slogLogger.Warn("failed to register database metrics", "error", err)
		}
	}

	var m *metrics.Metrics
	var dbMetrics *metrics.DatabaseMetrics
	if app.telemetry != nil {
		m = app.telemetry.Metrics
		dbMetrics = m.Database
	}

	// NATS producer is optional too, same as telemetry
	producer, err := messaging.NewProducer(cfg.NATS.URL, cfg.NATS.SubjectPrefix, slogLogger)
	if err != nil {
		slogLogger.Warn("failed to initialize NATS producer", "error", err)
		producer = nil
	}
	app.producer = producer

	healthHandler := health.NewHandler(app.database)
	healthHandler.RegisterRoutes(app.engine)

	accountRepo := account.NewRepository(app.database, dbMetrics)
	accountService := account.NewService(accountRepo, cfg.Policy)
	accountHandler := account.NewHandler(accountService, slogLogger, m)
	accountHandler.RegisterRoutes(app.engine)

	ticketRepo := ticket.NewRepository(app.database, dbMetrics)
	ticketService := ticket.NewService(ticketRepo, accountRepo, eventPublisher(producer))
	ticketHandler := ticket.NewHandler(ticketService, slogLogger, m)
	ticketHandler.RegisterRoutes(app.engine)

	busService := bus.NewService(ticketRepo, time.Duration(cfg.Bus.DefaultWindowSeconds)*time.Second)
	busHandler := bus.NewHandler(busService, slogLogger, m)
	busHandler.RegisterRoutes(app.engine)

	slogLogger.Info("application initialized successfully")

	return app
}

// eventPublisher avoids handing the service a non-nil interface wrapping a
// nil *Producer.
func eventPublisher(p *messaging.Producer) ticket.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}

func (a *App) Run() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.engine,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	return a.server.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	var serverErr error
	if a.server != nil {
		serverErr = a.server.Shutdown(ctx)
	}

	if a.producer != nil {
		a.producer.Close()
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", "error", err)
	}
	db.Close(a.database)

	return serverErr
}
