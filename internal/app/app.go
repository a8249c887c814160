package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"sentinel/internal/config"
	"sentinel/internal/logger"
	"sentinel/internal/model"
	"sentinel/internal/repository/sqlite"
	"sentinel/internal/route"
	"sentinel/internal/service/ai"
	"sentinel/internal/service/analysis"
	"sentinel/internal/service/ingest"
	"sentinel/internal/service/metrics"
	"sentinel/internal/service/privacy"
	"sentinel/internal/service/storage"
	"sentinel/internal/service/websocket"
	"sentinel/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	config           *config.Config
	logger           *logger.Logger
	db               *sqlite.DB
	detectorServices []*ai.DetectorService
	hubService       *websocket.HubService
	manager          *analysis.Manager
	broadcaster      *metrics.Broadcaster
	subscriber       *ingest.Subscriber
	router           http.Handler
}

// NewApp loads the configuration and wires every service.
func NewApp() (*App, error) {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	uploadRepo := sqlite.NewUploadRepository(db)
	anomalyRepo := sqlite.NewAnomalyRepository(db)
	roundRepo := sqlite.NewRoundRepository(db)
	deviceRepo := sqlite.NewDeviceRepository(db)

	files, err := storage.NewFileStore(cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	instruments := telemetry.New()
	hub := websocket.NewHubService(log, instruments)

	// One detector per worker: DNN nets are not shared between goroutines.
	detectorServices := make([]*ai.DetectorService, 0, cfg.ProcessingWorkers)
	detectors := make([]analysis.Detector, 0, cfg.ProcessingWorkers)
	for i := 0; i < cfg.ProcessingWorkers; i++ {
		ds := ai.NewDetectorService(cfg, log)
		detectorServices = append(detectorServices, ds)
		detectors = append(detectors, ds)
	}

	fusion := analysis.NewFusionEngine(cfg.AnomalyClasses, cfg.DetectionThreshold,
		model.PrivacyImpact{Epsilon: cfg.InferenceEpsilon, Delta: cfg.InferenceDelta})
	manager := analysis.NewManager(cfg, detectors, fusion, uploadRepo, anomalyRepo, files, hub, instruments, log)

	accountant := privacy.NewAccountant(cfg.PrivacyBudgetCeiling, roundRepo, log)
	collector := metrics.NewCollector(deviceRepo, roundRepo, anomalyRepo, accountant, cfg.DeviceOnlineWindow, cfg.AnomalyWindow)
	broadcaster, err := metrics.NewBroadcaster(collector, hub, cfg.MetricsSchedule, log)
	if err != nil {
		manager.Stop()
		db.Close()
		return nil, err
	}
	ingestor := ingest.NewIngestor(accountant, deviceRepo, broadcaster, log)

	var subscriber *ingest.Subscriber
	if cfg.MQTTBroker != "" {
		subscriber, err = ingest.NewSubscriber(cfg, ingestor, log)
		if err != nil {
			// Ingest over HTTP keeps working without the broker.
			log.Error("MQTT ingest disabled: %v", err)
			subscriber = nil
		}
	}

	router := route.SetupRoutes(&route.Services{
		Uploads:     uploadRepo,
		Anomalies:   anomalyRepo,
		Rounds:      roundRepo,
		Devices:     deviceRepo,
		Files:       files,
		Manager:     manager,
		Hub:         hub,
		Collector:   collector,
		Ingestor:    ingestor,
		Instruments: instruments,
	}, cfg, log)

	return &App{
		config:           cfg,
		logger:           log,
		db:               db,
		detectorServices: detectorServices,
		hubService:       hub,
		manager:          manager,
		broadcaster:      broadcaster,
		subscriber:       subscriber,
		router:           router,
	}, nil
}

// Run serves HTTP until SIGINT or SIGTERM, then shuts everything down.
func (a *App) Run() error {
	go a.hubService.Run()
	a.broadcaster.Start()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("Sentinel server listening on http://localhost:%d", a.config.Port)
		a.logger.Info("Uploads: %s, database: %s, model: %s", a.config.UploadDirectory, a.config.DatabasePath, a.config.ModelPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("failed to serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP shutdown failed: %v", err)
	}

	a.close()
	return runErr
}

func (a *App) close() {
	a.broadcaster.Stop()
	if a.subscriber != nil {
		a.subscriber.Close()
	}
	a.manager.Stop()
	a.hubService.Stop()
	for _, ds := range a.detectorServices {
		ds.Close()
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database: %v", err)
	}
	a.logger.Info("Server stopped")
}
