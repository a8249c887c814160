package metrics

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"sentinel/internal/logger"
	"sentinel/internal/model"
)

// Publisher sends push messages to connected dashboards.
type Publisher interface {
	Broadcast(msgType string, data any) error
}

// Broadcaster pushes metrics_update messages on a schedule and on demand.
type Broadcaster struct {
	collector     *Collector
	hub           Publisher
	cronScheduler *cron.Cron
	logger        *logger.Logger
}

// NewBroadcaster schedules a metrics broadcast with a cron spec such as "@every 5s".
func NewBroadcaster(collector *Collector, hub Publisher, schedule string, logger *logger.Logger) (*Broadcaster, error) {
	b := &Broadcaster{
		collector:     collector,
		hub:           hub,
		cronScheduler: cron.New(),
		logger:        logger,
	}

	if _, err := b.cronScheduler.AddFunc(schedule, b.tick); err != nil {
		return nil, fmt.Errorf("failed to schedule metrics broadcast %q: %w", schedule, err)
	}
	return b, nil
}

// Start begins the scheduled broadcasts.
func (b *Broadcaster) Start() {
	b.cronScheduler.Start()
}

// Stop halts the schedule and waits for a running broadcast to finish.
func (b *Broadcaster) Stop() {
	<-b.cronScheduler.Stop().Done()
}

// Publish broadcasts the current snapshot immediately.
func (b *Broadcaster) Publish() error {
	snapshot, err := b.collector.Snapshot()
	if err != nil {
		return err
	}
	if err := b.hub.Broadcast(model.MessageMetricsUpdate, snapshot); err != nil {
		return fmt.Errorf("failed to broadcast metrics: %w", err)
	}
	return nil
}

func (b *Broadcaster) tick() {
	if err := b.Publish(); err != nil {
		b.logger.Warning("Scheduled metrics broadcast failed: %v", err)
	}
}
