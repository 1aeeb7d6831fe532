package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/printops/order-sync-api/internal/clients"
	"github.com/printops/order-sync-api/internal/config"
	"github.com/printops/order-sync-api/internal/docstore"
	"github.com/printops/order-sync-api/internal/enrichment"
	"github.com/printops/order-sync-api/internal/metrics"
	"github.com/printops/order-sync-api/internal/presentation"
	"github.com/printops/order-sync-api/internal/repository"
	"github.com/printops/order-sync-api/internal/service"
	ordersync "github.com/printops/order-sync-api/internal/sync"
	"github.com/printops/order-sync-api/pkg/kafka"
	"github.com/printops/order-sync-api/pkg/logger"
	"github.com/printops/order-sync-api/pkg/middleware"
)

type Server struct {
	config        *config.Config
	logger        logger.Logger
	router        *mux.Router
	httpServer    *http.Server
	store         *docstore.PostgresStore
	orderRepo     *repository.OrderRepository
	manualRepo    *repository.ManualOrderRepository
	overrideRepo  *repository.OverrideRepository
	salesService  *service.SalesService
	decorator     *presentation.Decorator
	reconciler    *ordersync.Reconciler
	syncRunner    *ordersync.Runner
	enrichWorker  *enrichment.Worker
	kafkaProducer *kafka.Producer
	metrics       *metrics.Metrics
}

// NewServer wires the store, repositories, upstream clients, background
// workers, and routes from the given configuration.
func NewServer(cfg *config.Config, logger logger.Logger) *Server {
	r := mux.NewRouter()

	store, err := docstore.NewPostgresStore(cfg, logger)

	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		panic(err)
	}

	if err := store.RunMigrations(); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		panic(err)
	}

	// Repositories
	orderRepo := repository.NewOrderRepository(store, logger)
	manualRepo := repository.NewManualOrderRepository(store, logger)
	overrideRepo := repository.NewOverrideRepository(store, logger)

	// Upstream clients
	cin7 := clients.NewCin7Client(cfg.Cin7, logger)
	printavo := clients.NewPrintavoClient(cfg.Printavo, logger)

	// Event publishing is optional: no brokers configured means no producer
	var kafkaProducer *kafka.Producer
	var publisher ordersync.EventPublisher

	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err = kafka.NewProducer(cfg.Kafka.Brokers, logger)

		if err != nil {
			logger.Error("Failed to create Kafka producer, continuing without events", "error", err)
		} else {
			publisher = ordersync.NewKafkaPublisher(kafkaProducer, cfg.Kafka.OrdersTopic, logger)
		}
	}

	m := metrics.New()

	// Reconciliation engine and its periodic runner
	reconciler := ordersync.NewReconciler(cin7, printavo, orderRepo, publisher, logger)
	syncRunner := ordersync.NewRunner(reconciler, cfg.Sync.Interval, logger)
	syncRunner.OnCycle(func(res *ordersync.CycleResult) {
		m.RecordCycle(res.Discovered, res.Deactivated, res.Cin7Failed, res.PrintavoFailed)
	})

	// Detail enrichment worker
	enrichWorker := enrichment.NewWorker(cin7, orderRepo, enrichment.Config{
		Interval:   cfg.Sync.EnrichmentInterval,
		BatchSize:  cfg.Sync.EnrichmentBatchSize,
		MinSpacing: cfg.Sync.EnrichmentSpacing,
	}, logger)
	enrichWorker.OnFetch(m.RecordDetailFetch)

	salesService := service.NewSalesService(orderRepo, manualRepo, overrideRepo, logger)
	decorator := presentation.NewDecorator(cfg.Sync.VIPCustomerMatch)

	server := &Server{
		config: cfg,
		logger: logger,
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:         store,
		orderRepo:     orderRepo,
		manualRepo:    manualRepo,
		overrideRepo:  overrideRepo,
		salesService:  salesService,
		decorator:     decorator,
		reconciler:    reconciler,
		syncRunner:    syncRunner,
		enrichWorker:  enrichWorker,
		kafkaProducer: kafkaProducer,
		metrics:       m,
	}

	server.setupRoutes()

	syncRunner.Start()
	enrichWorker.Start()

	return server
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the background workers and drains the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.syncRunner.Stop()
	s.enrichWorker.Stop()

	if s.kafkaProducer != nil {
		if err := s.kafkaProducer.Close(); err != nil {
			s.logger.Error("Error closing Kafka producer", "error", err)
		}
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("Error closing database connection", "error", err)
	}

	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all the routes for our API
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		MaxTokens:  100,
		RefillRate: 50,
	}, s.logger)
	s.router.Use(rateLimiter.Middleware)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	// Sales endpoints
	api.HandleFunc("/sales", s.getSalesHandler).Methods(http.MethodGet)
	api.HandleFunc("/sales/add-order", s.addOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/sales/update-order", s.updateOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/sales/delete-order", s.deleteOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/sales/update-print-date", s.updatePrintDateHandler).Methods(http.MethodPost)

	// Admin API for monitoring and management
	admin := s.router.PathPrefix("/api/v1/admin").Subrouter()
	admin.HandleFunc("/sync", s.triggerSyncHandler).Methods(http.MethodPost)

	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
}

// Middleware for logging requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Info("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr,
		)
	})
}
