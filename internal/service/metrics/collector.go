package metrics

import (
	"fmt"
	"time"

	"sentinel/internal/model"
	"sentinel/internal/repository"
)

// BudgetSource reports the remaining privacy budget.
type BudgetSource interface {
	Remaining() (float64, error)
}

// Collector assembles the dashboard metrics snapshot from the repositories.
type Collector struct {
	devices      repository.DeviceRepository
	rounds       repository.RoundRepository
	anomalies    repository.AnomalyRepository
	budget       BudgetSource
	onlineWindow time.Duration
	recentWindow time.Duration
	now          func() time.Time
}

// NewCollector creates a Collector. Devices seen within onlineWindow count as
// online and anomalies detected within recentWindow count as recent.
func NewCollector(devices repository.DeviceRepository, rounds repository.RoundRepository,
	anomalies repository.AnomalyRepository, budget BudgetSource, onlineWindow, recentWindow time.Duration) *Collector {
	return &Collector{
		devices:      devices,
		rounds:       rounds,
		anomalies:    anomalies,
		budget:       budget,
		onlineWindow: onlineWindow,
		recentWindow: recentWindow,
		now:          time.Now,
	}
}

// Snapshot returns the current metrics.
func (c *Collector) Snapshot() (*model.MetricsSnapshot, error) {
	now := c.now().UTC()
	snapshot := &model.MetricsSnapshot{}

	total, err := c.devices.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count devices: %w", err)
	}
	online, err := c.devices.CountSeenSince(now.Add(-c.onlineWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count online devices: %w", err)
	}
	snapshot.Devices.Total = total
	snapshot.Devices.Online = online

	latest, err := c.rounds.GetLatest()
	if err != nil {
		return nil, fmt.Errorf("failed to get latest round: %w", err)
	}
	if latest != nil {
		snapshot.Performance.Accuracy = latest.Accuracy
		snapshot.FL.CurrentRound = latest.Round
	}

	recent, err := c.anomalies.CountSince(now.Add(-c.recentWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count anomalies: %w", err)
	}
	snapshot.Security.RecentAnomalies = recent

	remaining, err := c.budget.Remaining()
	if err != nil {
		return nil, fmt.Errorf("failed to get remaining budget: %w", err)
	}
	snapshot.Security.PrivacyBudgetRemaining = remaining

	return snapshot, nil
}
