package route

import (
	"net/http"

	"github.com/gorilla/mux"

	"sentinel/internal/config"
	"sentinel/internal/handler"
	"sentinel/internal/logger"
	"sentinel/internal/middleware"
	"sentinel/internal/repository"
	"sentinel/internal/service/analysis"
	"sentinel/internal/service/ingest"
	"sentinel/internal/service/metrics"
	"sentinel/internal/service/storage"
	"sentinel/internal/service/websocket"
	"sentinel/internal/telemetry"
)

// Services are the dependencies the HTTP handlers are built from.
type Services struct {
	Uploads     repository.UploadRepository
	Anomalies   repository.AnomalyRepository
	Rounds      repository.RoundRepository
	Devices     repository.DeviceRepository
	Files       *storage.FileStore
	Manager     *analysis.Manager
	Hub         *websocket.HubService
	Collector   *metrics.Collector
	Ingestor    *ingest.Ingestor
	Instruments *telemetry.Instruments
}

// SetupRoutes registers the API, push channel, log and auth endpoints,
// and wraps the router with the authentication middleware.
func SetupRoutes(s *Services, cfg *config.Config, logger *logger.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.AuthMiddleware(cfg.APIToken))

	// API endpoints
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", handler.StatusHandler(s.Collector, logger)).Methods(http.MethodGet)
	api.HandleFunc("/privacy/budgets", handler.PrivacyBudgetsHandler(s.Rounds, logger)).Methods(http.MethodGet)
	api.HandleFunc("/anomalies", handler.AnomaliesHandler(s.Anomalies, logger)).Methods(http.MethodGet)
	api.HandleFunc("/upload", handler.UploadHandler(cfg, s.Files, s.Uploads, s.Manager, s.Instruments, logger)).Methods(http.MethodPost)
	api.HandleFunc("/uploads", handler.UploadsHandler(s.Uploads, logger)).Methods(http.MethodGet)
	api.HandleFunc("/uploads/{id}", handler.UploadByIDHandler(s.Uploads, logger)).Methods(http.MethodGet)
	api.HandleFunc("/uploads/{id}/file", handler.UploadFileHandler(s.Uploads, s.Files, logger)).Methods(http.MethodGet)
	api.HandleFunc("/ai/status", handler.AIStatusHandler(s.Manager, logger)).Methods(http.MethodGet)
	api.HandleFunc("/fl/rounds", handler.RoundReportHandler(s.Ingestor, logger)).Methods(http.MethodPost)
	api.HandleFunc("/devices/heartbeat", handler.HeartbeatHandler(s.Ingestor, logger)).Methods(http.MethodPost)
	api.HandleFunc("/devices", handler.DevicesHandler(s.Devices, logger)).Methods(http.MethodGet)

	// Push channel
	router.HandleFunc("/ws", handler.PushHandler(s.Hub, logger)).Methods(http.MethodGet)

	// Operations
	router.Handle("/metrics", s.Instruments.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", handler.HealthHandler).Methods(http.MethodGet)

	// Log endpoints
	router.HandleFunc("/logs/{level}", handler.ShowLogsHandler(logger)).Methods(http.MethodGet)
	router.HandleFunc("/logs/{level}/clear", handler.ClearLogsHandler(logger)).Methods(http.MethodPost)

	// Auth endpoints
	router.HandleFunc("/auth/login", handler.LoginHandler(cfg, logger)).Methods(http.MethodPost)
	router.HandleFunc("/auth/logout", handler.LogoutHandler).Methods(http.MethodGet)

	return router
}
