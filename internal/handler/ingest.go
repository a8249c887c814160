package handler

import (
	"errors"
	"io"
	"net/http"

	"sentinel/internal/logger"
	"sentinel/internal/repository"
	"sentinel/internal/service/ingest"
	"sentinel/internal/service/privacy"
)

// RoundReportHandler records a FL round report posted by the coordinator.
func RoundReportHandler(ingestor *ingest.Ingestor, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
		if err != nil {
			writeError(w, logger, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}

		round, err := ingestor.HandleRoundReport(body)
		if err != nil {
			logger.Warning("Rejected round report: %v", err)
			writeError(w, logger, ingestErrorStatus(err), err.Error())
			return
		}
		writeJSON(w, logger, http.StatusCreated, round)
	}
}

// HeartbeatHandler refreshes the presence of an edge device.
func HeartbeatHandler(ingestor *ingest.Ingestor, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
		if err != nil {
			writeError(w, logger, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}

		device, err := ingestor.HandleHeartbeat(body)
		if err != nil {
			writeError(w, logger, ingestErrorStatus(err), err.Error())
			return
		}
		writeJSON(w, logger, http.StatusOK, device)
	}
}

// DevicesHandler lists known edge devices.
func DevicesHandler(devices repository.DeviceRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := devices.GetAll()
		if err != nil {
			logger.Error("Error querying devices: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "failed to load devices")
			return
		}
		writeJSON(w, logger, http.StatusOK, all)
	}
}

func ingestErrorStatus(err error) int {
	switch {
	case errors.Is(err, ingest.ErrInvalidPayload), errors.Is(err, privacy.ErrInvalidReport):
		return http.StatusBadRequest
	case errors.Is(err, privacy.ErrBudgetExhausted), errors.Is(err, privacy.ErrStaleRound),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
