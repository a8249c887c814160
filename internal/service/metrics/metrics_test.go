package metrics

import (
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/logger"
	"sentinel/internal/model"
	"sentinel/internal/repository/sqlite"
)

type fixedBudget struct {
	remaining float64
	err       error
}

func (b fixedBudget) Remaining() (float64, error) { return b.remaining, b.err }

type recordingHub struct {
	mu       sync.Mutex
	messages []model.PushMessage
}

func (h *recordingHub) Broadcast(msgType string, data any) error {
	msg, err := model.NewPushMessage(msgType, data)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
	return nil
}

func (h *recordingHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

type fixture struct {
	db        *sqlite.DB
	devices   *sqlite.DeviceRepository
	rounds    *sqlite.RoundRepository
	anomalies *sqlite.AnomalyRepository
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &fixture{
		db:        db,
		devices:   sqlite.NewDeviceRepository(db),
		rounds:    sqlite.NewRoundRepository(db),
		anomalies: sqlite.NewAnomalyRepository(db),
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) collector(budget BudgetSource) *Collector {
	c := NewCollector(f.devices, f.rounds, f.anomalies, budget, 2*time.Minute, time.Hour)
	c.now = func() time.Time { return f.now }
	return c
}

func TestCollector_Snapshot(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.devices.Upsert(&model.Device{ID: "cam-1", LastSeen: f.now.Add(-30 * time.Second)}))
	require.NoError(t, f.devices.Upsert(&model.Device{ID: "cam-2", LastSeen: f.now.Add(-10 * time.Minute)}))
	require.NoError(t, f.devices.Upsert(&model.Device{ID: "cam-3", LastSeen: f.now.Add(-time.Minute)}))

	require.NoError(t, f.rounds.Insert(&model.Round{Round: 1, Accuracy: 0.81, Epsilon: 0.5, Delta: 1e-5, RemainingBudget: 5.5, RecordedAt: f.now.Add(-time.Hour)}))
	require.NoError(t, f.rounds.Insert(&model.Round{Round: 2, Accuracy: 0.87, Epsilon: 0.5, Delta: 1e-5, RemainingBudget: 5.0, RecordedAt: f.now}))

	require.NoError(t, f.anomalies.Insert(&model.Anomaly{ID: "a1", Type: "person", Severity: "high", DetectedAt: f.now.Add(-5 * time.Minute)}))
	require.NoError(t, f.anomalies.Insert(&model.Anomaly{ID: "a2", Type: "person", Severity: "high", DetectedAt: f.now.Add(-3 * time.Hour)}))

	snapshot, err := f.collector(fixedBudget{remaining: 5.0}).Snapshot()
	require.NoError(t, err)

	assert.Equal(t, 3, snapshot.Devices.Total)
	assert.Equal(t, 2, snapshot.Devices.Online)
	assert.Equal(t, 0.87, snapshot.Performance.Accuracy)
	assert.Equal(t, 2, snapshot.FL.CurrentRound)
	assert.Equal(t, 1, snapshot.Security.RecentAnomalies)
	assert.Equal(t, 5.0, snapshot.Security.PrivacyBudgetRemaining)
}

func TestCollector_Snapshot_Empty(t *testing.T) {
	f := newFixture(t)

	snapshot, err := f.collector(fixedBudget{remaining: 6.0}).Snapshot()
	require.NoError(t, err)

	assert.Equal(t, model.MetricsSnapshot{
		Security: model.SecurityMetrics{PrivacyBudgetRemaining: 6.0},
	}, *snapshot)
}

func TestCollector_Snapshot_BudgetError(t *testing.T) {
	f := newFixture(t)

	_, err := f.collector(fixedBudget{err: errors.New("boom")}).Snapshot()
	assert.ErrorContains(t, err, "remaining budget")
}

func TestBroadcaster_Publish(t *testing.T) {
	f := newFixture(t)
	hub := &recordingHub{}

	b, err := NewBroadcaster(f.collector(fixedBudget{remaining: 4.2}), hub, "@every 1h", logger.NewConsoleLogger(io.Discard))
	require.NoError(t, err)

	require.NoError(t, b.Publish())
	require.Equal(t, 1, hub.count())

	msg := hub.messages[0]
	assert.Equal(t, model.MessageMetricsUpdate, msg.Type)

	var snapshot model.MetricsSnapshot
	require.NoError(t, json.Unmarshal(msg.Data, &snapshot))
	assert.Equal(t, 4.2, snapshot.Security.PrivacyBudgetRemaining)
}

func TestBroadcaster_Schedule(t *testing.T) {
	f := newFixture(t)
	hub := &recordingHub{}

	b, err := NewBroadcaster(f.collector(fixedBudget{remaining: 6.0}), hub, "@every 1s", logger.NewConsoleLogger(io.Discard))
	require.NoError(t, err)

	b.Start()
	defer b.Stop()

	assert.Eventually(t, func() bool { return hub.count() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestBroadcaster_InvalidSchedule(t *testing.T) {
	f := newFixture(t)

	_, err := NewBroadcaster(f.collector(fixedBudget{}), &recordingHub{}, "not a schedule", logger.NewConsoleLogger(io.Discard))
	assert.Error(t, err)
}
