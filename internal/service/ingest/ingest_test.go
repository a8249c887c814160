package ingest

import (
	"io"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/logger"
	"sentinel/internal/repository/sqlite"
	"sentinel/internal/service/privacy"
)

type countingPublisher struct {
	calls atomic.Int32
}

func (p *countingPublisher) Publish() error {
	p.calls.Add(1)
	return nil
}

type fakeMessage struct {
	topic   string
	payload []byte
	acked   bool
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              { m.acked = true }

type fixture struct {
	ingestor  *Ingestor
	publisher *countingPublisher
	devices   *sqlite.DeviceRepository
	rounds    *sqlite.RoundRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewConsoleLogger(io.Discard)
	rounds := sqlite.NewRoundRepository(db)
	devices := sqlite.NewDeviceRepository(db)
	publisher := &countingPublisher{}

	ingestor := NewIngestor(privacy.NewAccountant(6.0, rounds, log), devices, publisher, log)
	ingestor.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	return &fixture{ingestor: ingestor, publisher: publisher, devices: devices, rounds: rounds}
}

func TestIngestor_HandleRoundReport(t *testing.T) {
	f := newFixture(t)

	round, err := f.ingestor.HandleRoundReport([]byte(`{"round":3,"accuracy":0.9,"participants":5,"epsilon":1.8,"delta":0.00001}`))
	require.NoError(t, err)
	assert.Equal(t, 3, round.Round)
	assert.InDelta(t, 4.2, round.RemainingBudget, 1e-9)
	assert.EqualValues(t, 1, f.publisher.calls.Load())

	latest, err := f.rounds.GetLatest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 5, latest.Participants)
}

func TestIngestor_HandleRoundReport_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		target  error
	}{
		{name: "malformed json", payload: `{"round":`, target: ErrInvalidPayload},
		{name: "invalid round", payload: `{"round":0,"epsilon":0.1}`, target: privacy.ErrInvalidReport},
		{name: "overdraw", payload: `{"round":1,"epsilon":7,"delta":0.00001}`, target: privacy.ErrBudgetExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.ingestor.HandleRoundReport([]byte(tt.payload))
			assert.ErrorIs(t, err, tt.target)
			assert.Zero(t, f.publisher.calls.Load())
		})
	}
}

func TestIngestor_HandleHeartbeat(t *testing.T) {
	f := newFixture(t)

	device, err := f.ingestor.HandleHeartbeat([]byte(`{"deviceId":" cam-7 ","name":"Gate"}`))
	require.NoError(t, err)
	assert.Equal(t, "cam-7", device.ID)
	assert.EqualValues(t, 1, f.publisher.calls.Load())

	// A heartbeat without a name keeps the stored one.
	_, err = f.ingestor.HandleHeartbeat([]byte(`{"deviceId":"cam-7"}`))
	require.NoError(t, err)

	devices, err := f.devices.GetAll()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "Gate", devices[0].Name)
}

func TestIngestor_HandleHeartbeat_Invalid(t *testing.T) {
	f := newFixture(t)

	_, err := f.ingestor.HandleHeartbeat([]byte(`{"name":"no id"}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = f.ingestor.HandleHeartbeat([]byte(`nope`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestSubscriber_MessageHandler(t *testing.T) {
	f := newFixture(t)
	s := &Subscriber{
		ingestor:       f.ingestor,
		roundsTopic:    "fl/rounds",
		heartbeatTopic: "devices/heartbeat",
		logger:         logger.NewConsoleLogger(io.Discard),
	}

	heartbeat := &fakeMessage{topic: "devices/heartbeat", payload: []byte(`{"deviceId":"cam-1"}`)}
	s.messageHandler(nil, heartbeat)
	assert.True(t, heartbeat.acked)

	round := &fakeMessage{topic: "fl/rounds", payload: []byte(`{"round":1,"accuracy":0.7,"epsilon":0.5,"delta":0.00001}`)}
	s.messageHandler(nil, round)

	bad := &fakeMessage{topic: "fl/rounds", payload: []byte(`garbage`)}
	s.messageHandler(nil, bad)
	assert.True(t, bad.acked)

	other := &fakeMessage{topic: "elsewhere", payload: []byte(`{}`)}
	s.messageHandler(nil, other)

	count, err := f.devices.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	latest, err := f.rounds.GetLatest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 1, latest.Round)
	assert.EqualValues(t, 2, f.publisher.calls.Load())
}
