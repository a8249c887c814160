package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/config"
	"sentinel/internal/logger"
	"sentinel/internal/model"
	"sentinel/internal/repository"
	"sentinel/internal/telemetry"
)

// Version is reported by the AI status endpoint.
const Version = "1.0.0"

var (
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("analysis queue full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("analysis manager stopped")
)

// Broadcaster publishes push messages to dashboard clients.
type Broadcaster interface {
	Broadcast(msgType string, data any) error
}

// FileLocator resolves a stored upload filename to a path on disk.
type FileLocator interface {
	Path(filename string) (string, error)
}

// Manager runs uploaded media through the detectors on a pool of workers and
// moves each upload through uploaded -> processing -> analyzed | error.
type Manager struct {
	detectors   []Detector
	fusion      *FusionEngine
	uploads     repository.UploadRepository
	anomalies   repository.AnomalyRepository
	files       FileLocator
	hub         Broadcaster
	instruments *telemetry.Instruments
	logger      *logger.Logger

	processingQueue chan string
	timeout         time.Duration
	now             func() time.Time

	stateMu sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewManager starts one worker per detector. instruments may be nil.
func NewManager(cfg *config.Config, detectors []Detector, fusion *FusionEngine,
	uploads repository.UploadRepository, anomalies repository.AnomalyRepository,
	files FileLocator, hub Broadcaster, instruments *telemetry.Instruments, logger *logger.Logger) *Manager {
	queueSize := cfg.ProcessingQueue
	if queueSize <= 0 {
		queueSize = 1
	}
	timeout := cfg.AnalysisTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}

	manager := &Manager{
		detectors:       detectors,
		fusion:          fusion,
		uploads:         uploads,
		anomalies:       anomalies,
		files:           files,
		hub:             hub,
		instruments:     instruments,
		logger:          logger,
		processingQueue: make(chan string, queueSize),
		timeout:         timeout,
		now:             time.Now,
	}

	for i := range detectors {
		manager.wg.Add(1)
		go manager.processingWorker(i)
	}

	manager.logger.Info("Analysis manager started with %d worker(s), queue size %d", len(detectors), queueSize)
	return manager
}

// Submit queues an upload for analysis. When the queue is full the upload is
// marked as failed and ErrQueueFull is returned.
func (m *Manager) Submit(id string) error {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	if m.stopped {
		return ErrStopped
	}

	select {
	case m.processingQueue <- id:
		m.logger.Info("Upload %s queued for analysis", id)
		return nil
	default:
		m.logger.Warning("Processing queue full - upload %s not analyzed", id)
		if err := m.uploads.UpdateStatus(id, model.StatusError, nil, ErrQueueFull.Error()); err != nil {
			m.logger.Error("Failed to mark upload %s as failed: %v", id, err)
		}
		m.finished(model.StatusError, 0)
		return ErrQueueFull
	}
}

// Status reports the availability of the inference pipeline.
func (m *Manager) Status() model.AIStatus {
	if len(m.detectors) == 0 {
		return model.AIStatus{
			Status:       model.AIStatusOffline,
			FusionEngine: FusionEngineName,
			Version:      Version,
		}
	}

	status := m.detectors[0].Status()
	status.FusionEngine = FusionEngineName
	status.Version = Version
	return status
}

// Stop stops accepting uploads and waits for queued work to finish.
func (m *Manager) Stop() {
	m.stateMu.Lock()
	if m.stopped {
		m.stateMu.Unlock()
		return
	}
	m.stopped = true
	close(m.processingQueue)
	m.stateMu.Unlock()

	m.wg.Wait()
	m.logger.Info("All analysis workers stopped")
}

// processingWorker analyzes queued uploads with its own detector.
func (m *Manager) processingWorker(workerID int) {
	defer m.wg.Done()

	m.logger.Info("Analysis worker %d started", workerID)

	for id := range m.processingQueue {
		m.process(workerID, id)
	}

	m.logger.Info("Analysis worker %d stopped", workerID)
}

func (m *Manager) process(workerID int, id string) {
	start := m.now()

	upload, err := m.uploads.GetByID(id)
	if err != nil {
		m.logger.Error("Failed to load upload %s: %v", id, err)
		return
	}
	if upload == nil {
		m.logger.Warning("Upload %s disappeared before analysis", id)
		return
	}

	if err := m.uploads.UpdateStatus(id, model.StatusProcessing, nil, ""); err != nil {
		m.logger.Error("Failed to mark upload %s as processing: %v", id, err)
		return
	}

	path, err := m.files.Path(upload.Filename)
	if err != nil {
		m.fail(id, err, start)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	out, err := m.detectors[workerID].Analyze(ctx, path, upload.MimeType)
	cancel()
	if err != nil {
		m.fail(id, err, start)
		return
	}

	elapsed := m.now().Sub(start)
	result := m.fusion.Fuse(out, elapsed)
	if err := m.uploads.UpdateStatus(id, model.StatusAnalyzed, result, ""); err != nil {
		m.logger.Error("Failed to store analysis of %s: %v", id, err)
		return
	}
	m.finished(model.StatusAnalyzed, elapsed)
	m.logger.Info("Worker %d analyzed %s: %d box(es), anomaly=%t", workerID, id, len(result.BoundingBoxes), result.IsAnomaly)

	if result.IsAnomaly {
		m.recordAnomaly(upload, result)
	}
}

func (m *Manager) fail(id string, cause error, start time.Time) {
	m.logger.Error("Analysis of %s failed: %v", id, cause)
	if err := m.uploads.UpdateStatus(id, model.StatusError, nil, cause.Error()); err != nil {
		m.logger.Error("Failed to mark upload %s as failed: %v", id, err)
	}
	m.finished(model.StatusError, m.now().Sub(start))
}

func (m *Manager) recordAnomaly(upload *model.UploadedFile, result *model.AnomalyResult) {
	box, _ := PrimaryAnomaly(result)

	flagged := 0
	for _, b := range result.BoundingBoxes {
		if b.IsAnomaly {
			flagged++
		}
	}

	anomaly := &model.Anomaly{
		ID:          uuid.NewString(),
		Type:        box.ClassName,
		Confidence:  result.AnomalyScore,
		Severity:    result.Severity,
		Description: fmt.Sprintf("%d anomalous object(s) in %s", flagged, upload.OriginalName),
		DetectedAt:  m.now().UTC(),
		ImageURL:    upload.ImageURL,
		UploadID:    upload.ID,
	}
	if err := m.anomalies.Insert(anomaly); err != nil {
		m.logger.Error("Failed to store anomaly for %s: %v", upload.ID, err)
		return
	}
	if m.instruments != nil {
		m.instruments.AnomalyDetected(anomaly.Severity)
	}
	if err := m.hub.Broadcast(model.MessageAnomalyDetected, anomaly); err != nil {
		m.logger.Warning("Failed to broadcast anomaly %s: %v", anomaly.ID, err)
	}
}

func (m *Manager) finished(status model.UploadStatus, elapsed time.Duration) {
	if m.instruments != nil {
		m.instruments.AnalysisFinished(string(status), elapsed)
	}
}
