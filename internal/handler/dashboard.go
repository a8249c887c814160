package handler

import (
	"net/http"

	"sentinel/internal/logger"
	"sentinel/internal/model"
	"sentinel/internal/repository"
	"sentinel/internal/service/analysis"
	"sentinel/internal/service/metrics"
)

// StatusHandler serves the current metrics snapshot.
func StatusHandler(collector *metrics.Collector, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := collector.Snapshot()
		if err != nil {
			logger.Error("Error building metrics snapshot: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "failed to load metrics")
			return
		}
		writeJSON(w, logger, http.StatusOK, snapshot)
	}
}

// PrivacyBudgetsHandler returns per-round privacy metrics, newest first.
func PrivacyBudgetsHandler(rounds repository.RoundRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := rounds.GetAll(limitParam(r, 20, 500))
		if err != nil {
			logger.Error("Error querying rounds: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "failed to load privacy budgets")
			return
		}

		budgets := make([]model.PrivacyMetrics, 0, len(all))
		for _, round := range all {
			budgets = append(budgets, round.Privacy())
		}
		writeJSON(w, logger, http.StatusOK, budgets)
	}
}

// AnomaliesHandler returns the most recent anomalies, newest first.
func AnomaliesHandler(anomalies repository.AnomalyRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recent, err := anomalies.GetRecent(limitParam(r, 10, 200))
		if err != nil {
			logger.Error("Error querying anomalies: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "failed to load anomalies")
			return
		}
		writeJSON(w, logger, http.StatusOK, recent)
	}
}

// AIStatusHandler reports the availability of the inference pipeline.
func AIStatusHandler(manager *analysis.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, manager.Status())
	}
}

// HealthHandler answers liveness probes.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}
