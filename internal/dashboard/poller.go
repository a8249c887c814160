package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"sentinel/internal/logger"
	"sentinel/internal/model"
)

// StatusSource fetches the metrics snapshot.
type StatusSource interface {
	Status(ctx context.Context) (*model.MetricsSnapshot, error)
}

// MetricsPoller holds the live metrics: one fetch, then metrics_update pushes
// replace the snapshot wholesale.
type MetricsPoller struct {
	source StatusSource
	logger *logger.Logger

	mu       sync.RWMutex
	snapshot model.MetricsSnapshot
	loaded   bool
	// pushes counts applied pushes; a fetch that started before a push is stale.
	pushes uint64
}

func NewMetricsPoller(source StatusSource, logger *logger.Logger) *MetricsPoller {
	return &MetricsPoller{source: source, logger: logger}
}

// Load fetches the snapshot once. The result is discarded if a push was
// applied while the request was in flight.
func (p *MetricsPoller) Load(ctx context.Context) error {
	p.mu.RLock()
	seen := p.pushes
	p.mu.RUnlock()

	snapshot, err := p.source.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to load metrics: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pushes != seen {
		p.logger.Info("Discarding metrics fetched before a newer push")
		return nil
	}
	p.snapshot = *snapshot
	p.loaded = true
	return nil
}

// HandlePush applies a metrics_update message and reports whether the state changed.
// Other message types are ignored; undecodable payloads are dropped and logged.
func (p *MetricsPoller) HandlePush(msg model.PushMessage) bool {
	if msg.Type != model.MessageMetricsUpdate {
		return false
	}

	if bytes.Equal(bytes.TrimSpace(msg.Data), []byte("null")) {
		p.logger.Warning("Dropping metrics_update without data")
		return false
	}
	var snapshot model.MetricsSnapshot
	if err := msg.Decode(&snapshot); err != nil {
		p.logger.Warning("Dropping malformed metrics_update: %v", err)
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = snapshot
	p.loaded = true
	p.pushes++
	return true
}

// Snapshot returns the current metrics and whether any data has arrived yet.
func (p *MetricsPoller) Snapshot() (model.MetricsSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot, p.loaded
}
