package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/events"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/handler"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/repository"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/service"
	"github.com/pharmstock/pharmstock-backend/internal/warehouse/settings"
	"github.com/pharmstock/pharmstock-backend/pkg/config"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("warehouse-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("warehouse-service", cfg.Server.Environment)
	log.Info().Msg("starting Warehouse Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewWarehouseEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	drugRepo := repository.NewDrugRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	inboundRepo := repository.NewInboundRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	outboundRepo := repository.NewOutboundRepository(db)
	adjustmentRepo := repository.NewAdjustmentRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	// Initialize services
	settingsProvider := settings.NewProvider(settingRepo, cfg.Inventory, log)
	sequencer := service.NewDocumentSequencer(sequenceRepo, cfg.Inventory.SequencerAttempts, cfg.Inventory.SequencerBackoff, log)
	admission := service.NewAdmissionService(settingsProvider)
	gate := service.NewApprovalGate(drugRepo)

	inboundService := service.NewInboundService(db, inboundRepo, batchRepo, orderRepo, drugRepo, sequencer, admission, gate, publisher, log)
	outboundService := service.NewOutboundService(db, outboundRepo, batchRepo, drugRepo, sequencer, gate, publisher, log)
	adjustmentService := service.NewAdjustmentService(db, adjustmentRepo, batchRepo, drugRepo, sequencer, gate, publisher, log)
	inventoryService := service.NewInventoryService(batchRepo, drugRepo, settingsProvider, log)

	// Initialize handlers
	inboundHandler := handler.NewInboundHandler(inboundService, log)
	outboundHandler := handler.NewOutboundHandler(outboundService, log)
	adjustmentHandler := handler.NewAdjustmentHandler(adjustmentService, log)
	inventoryHandler := handler.NewInventoryHandler(inventoryService, settingsProvider, log)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS for the warehouse frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Operator-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "warehouse-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/warehouse", func(r chi.Router) {
		// Inbound routes
		r.Route("/inbound", func(r chi.Router) {
			r.Get("/", inboundHandler.List)
			r.Post("/", inboundHandler.ReceiveTemporary)
			r.Get("/{documentNumber}", inboundHandler.Get)
		})
		r.Route("/orders/{orderID}/receipts", func(r chi.Router) {
			r.Get("/", inboundHandler.ListByOrder)
			r.Post("/", inboundHandler.ReceiveFromOrder)
			r.Get("/received", inboundHandler.ReceivedQuantity)
		})

		// Outbound routes
		r.Route("/outbound", func(r chi.Router) {
			r.Get("/", outboundHandler.List)
			r.Post("/", outboundHandler.Create)
			r.Get("/{id}", outboundHandler.Get)
			r.Post("/{id}/approve", outboundHandler.Approve)
			r.Post("/{id}/reject", outboundHandler.Reject)
			r.Post("/{id}/cancel", outboundHandler.Cancel)
			r.Post("/{id}/execute", outboundHandler.Execute)
		})

		// Adjustment routes
		r.Post("/adjustments", adjustmentHandler.Create)
		r.Get("/drugs/{drugID}/adjustments", adjustmentHandler.ListByDrug)

		// Ledger read routes
		r.Get("/overview", inventoryHandler.GetOverview)
		r.Get("/drugs", inventoryHandler.ListDrugs)
		r.Get("/drugs/{drugID}/batches", inventoryHandler.ListBatches)
		r.Get("/drugs/{drugID}/batches/available", inventoryHandler.ListAvailableBatches)

		// Runtime settings
		r.Put("/settings/{key}", inventoryHandler.UpdateSetting)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
