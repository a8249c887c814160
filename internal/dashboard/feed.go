package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"sentinel/internal/logger"
	"sentinel/internal/model"
)

const (
	// FeedCapacity is how many anomalies the feed retains.
	FeedCapacity = 10
	// FeedVisible is how many anomalies are displayed.
	FeedVisible = 5
)

// AnomalySource fetches recent anomalies, newest first.
type AnomalySource interface {
	Anomalies(ctx context.Context) ([]model.Anomaly, error)
}

// AnomalyFeed merges fetched anomaly history with pushed anomaly_detected events.
// Entries are newest first and unique by id.
type AnomalyFeed struct {
	source AnomalySource
	logger *logger.Logger

	mu    sync.RWMutex
	items []model.Anomaly
}

func NewAnomalyFeed(source AnomalySource, logger *logger.Logger) *AnomalyFeed {
	return &AnomalyFeed{source: source, logger: logger}
}

// Load fetches the history once. Entries already in the feed, including pushes
// received while the request was in flight, stay ahead of the fetched history.
func (f *AnomalyFeed) Load(ctx context.Context) error {
	history, err := f.source.Anomalies(ctx)
	if err != nil {
		return fmt.Errorf("failed to load anomalies: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = mergeAnomalies(f.items, history)
	return nil
}

// HandlePush prepends an anomaly_detected event and reports whether the feed changed.
func (f *AnomalyFeed) HandlePush(msg model.PushMessage) bool {
	if msg.Type != model.MessageAnomalyDetected {
		return false
	}

	if bytes.Equal(bytes.TrimSpace(msg.Data), []byte("null")) {
		f.logger.Warning("Dropping anomaly_detected without data")
		return false
	}
	var anomaly model.Anomaly
	if err := msg.Decode(&anomaly); err != nil {
		f.logger.Warning("Dropping malformed anomaly_detected: %v", err)
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if anomaly.ID != "" && indexOf(f.items, anomaly.ID) >= 0 {
		return false
	}
	f.items = mergeAnomalies([]model.Anomaly{anomaly}, f.items)
	return true
}

// Items returns every retained anomaly, newest first.
func (f *AnomalyFeed) Items() []model.Anomaly {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]model.Anomaly(nil), f.items...)
}

// Visible returns the anomalies to display.
func (f *AnomalyFeed) Visible() []model.Anomaly {
	items := f.Items()
	if len(items) > FeedVisible {
		items = items[:FeedVisible]
	}
	return items
}

// mergeAnomalies concatenates head and tail, drops repeated ids and caps the result.
func mergeAnomalies(head, tail []model.Anomaly) []model.Anomaly {
	merged := make([]model.Anomaly, 0, FeedCapacity)
	seen := make(map[string]bool, len(head)+len(tail))

	for _, list := range [][]model.Anomaly{head, tail} {
		for _, a := range list {
			if len(merged) == FeedCapacity {
				return merged
			}
			if a.ID != "" {
				if seen[a.ID] {
					continue
				}
				seen[a.ID] = true
			}
			merged = append(merged, a)
		}
	}
	return merged
}

func indexOf(items []model.Anomaly, id string) int {
	for i, a := range items {
		if a.ID == id {
			return i
		}
	}
	return -1
}
