package dashboard

import (
	"context"
	"sync"
	"time"

	"sentinel/internal/model"
)

// DefaultAIStatusInterval is how often the AI status is refreshed.
const DefaultAIStatusInterval = 10 * time.Second

// AIStatusSource fetches the inference pipeline status.
type AIStatusSource interface {
	AIStatus(ctx context.Context) (*model.AIStatus, error)
}

// AIStatusMonitor polls the AI status on a fixed interval.
type AIStatusMonitor struct {
	source   AIStatusSource
	interval time.Duration

	mu      sync.RWMutex
	status  model.AIStatus
	err     error
	updated time.Time
}

func NewAIStatusMonitor(source AIStatusSource, interval time.Duration) *AIStatusMonitor {
	if interval <= 0 {
		interval = DefaultAIStatusInterval
	}
	return &AIStatusMonitor{
		source:   source,
		interval: interval,
		status:   model.AIStatus{Status: model.AIStatusOffline},
	}
}

// Refresh fetches the status once. On failure the last known status is kept
// and the error is reported by Status.
func (m *AIStatusMonitor) Refresh(ctx context.Context) error {
	status, err := m.source.AIStatus(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	if err != nil {
		return err
	}
	m.status = *status
	m.updated = time.Now()
	return nil
}

// Run refreshes immediately and then every interval until ctx is done,
// calling onRefresh after each attempt.
func (m *AIStatusMonitor) Run(ctx context.Context, onRefresh func()) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.Refresh(ctx)
		if ctx.Err() != nil {
			return
		}
		if onRefresh != nil {
			onRefresh()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// AIStatusView is the monitor's current knowledge.
type AIStatusView struct {
	Status  model.AIStatus
	Err     error     // error of the latest refresh, if it failed
	Updated time.Time // time of the last successful refresh
}

// Current returns the last known status.
func (m *AIStatusMonitor) Current() AIStatusView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return AIStatusView{Status: m.status, Err: m.err, Updated: m.updated}
}
