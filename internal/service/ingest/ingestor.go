package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sentinel/internal/dto"
	"sentinel/internal/logger"
	"sentinel/internal/model"
	"sentinel/internal/repository"
)

// ErrInvalidPayload is returned for reports that are not valid JSON or lack required fields.
var ErrInvalidPayload = errors.New("invalid payload")

// RoundRecorder charges a FL round against the privacy budget.
type RoundRecorder interface {
	RecordRound(report dto.RoundReport) (*model.Round, error)
}

// MetricsPublisher pushes a fresh metrics snapshot to dashboards.
type MetricsPublisher interface {
	Publish() error
}

// Ingestor records FL round reports and device heartbeats arriving over HTTP or MQTT.
type Ingestor struct {
	rounds    RoundRecorder
	devices   repository.DeviceRepository
	publisher MetricsPublisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewIngestor creates an Ingestor. publisher may be nil.
func NewIngestor(rounds RoundRecorder, devices repository.DeviceRepository, publisher MetricsPublisher, logger *logger.Logger) *Ingestor {
	return &Ingestor{
		rounds:    rounds,
		devices:   devices,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleRoundReport decodes and records a round report, then publishes updated metrics.
func (i *Ingestor) HandleRoundReport(payload []byte) (*model.Round, error) {
	var report dto.RoundReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("failed to decode round report: %w: %v", ErrInvalidPayload, err)
	}

	round, err := i.rounds.RecordRound(report)
	if err != nil {
		return nil, err
	}

	i.publish()
	return round, nil
}

// HandleHeartbeat decodes a heartbeat and refreshes the device's last-seen time.
func (i *Ingestor) HandleHeartbeat(payload []byte) (*model.Device, error) {
	var heartbeat dto.Heartbeat
	if err := json.Unmarshal(payload, &heartbeat); err != nil {
		return nil, fmt.Errorf("failed to decode heartbeat: %w: %v", ErrInvalidPayload, err)
	}

	deviceID := strings.TrimSpace(heartbeat.DeviceID)
	if deviceID == "" {
		return nil, fmt.Errorf("heartbeat without deviceId: %w", ErrInvalidPayload)
	}

	device := &model.Device{
		ID:       deviceID,
		Name:     strings.TrimSpace(heartbeat.Name),
		LastSeen: i.now().UTC(),
	}
	if err := i.devices.Upsert(device); err != nil {
		return nil, err
	}

	i.publish()
	return device, nil
}

func (i *Ingestor) publish() {
	if i.publisher == nil {
		return
	}
	if err := i.publisher.Publish(); err != nil {
		i.logger.Warning("Failed to publish metrics after ingest: %v", err)
	}
}
