package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"sentinel/internal/logger"
	"sentinel/internal/model"
)

var errNetwork = errors.New("connection refused")

func testLogger() *logger.Logger {
	return logger.NewConsoleLogger(io.Discard)
}

func pushMessage(t *testing.T, msgType string, data any) model.PushMessage {
	t.Helper()
	msg, err := model.NewPushMessage(msgType, data)
	if err != nil {
		t.Fatalf("failed to build push message: %v", err)
	}
	return msg
}

func rawPush(msgType, data string) model.PushMessage {
	return model.PushMessage{Type: msgType, Data: json.RawMessage(data)}
}

// fakeAPI serves canned responses for every dashboard component.
type fakeAPI struct {
	mu sync.Mutex

	status    *model.MetricsSnapshot
	statusErr error
	budgets   []model.PrivacyMetrics
	anomalies []model.Anomaly
	aiStatus  *model.AIStatus
	aiErr     error

	// uploads
	uploadResponse *model.UploadedFile
	uploadErr      error
	uploaded       []string
	pollResponses  [][]model.UploadedFile // consumed one per poll; the last one repeats
	pollErr        error
	polls          int

	pushes       []model.PushMessage
	subscribeErr error
}

func (f *fakeAPI) Status(ctx context.Context) (*model.MetricsSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	s := *f.status
	return &s, nil
}

func (f *fakeAPI) PrivacyBudgets(ctx context.Context) ([]model.PrivacyMetrics, error) {
	return f.budgets, nil
}

func (f *fakeAPI) Anomalies(ctx context.Context) ([]model.Anomaly, error) {
	return f.anomalies, nil
}

func (f *fakeAPI) AIStatus(ctx context.Context) (*model.AIStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.aiErr != nil {
		return nil, f.aiErr
	}
	s := *f.aiStatus
	return &s, nil
}

func (f *fakeAPI) Upload(ctx context.Context, filename, mimeType string, content io.Reader, uploadedBy string) (*model.UploadedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, filename)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	u := *f.uploadResponse
	return &u, nil
}

func (f *fakeAPI) Uploads(ctx context.Context) ([]model.UploadedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if len(f.pollResponses) == 0 {
		return nil, nil
	}
	resp := f.pollResponses[0]
	if len(f.pollResponses) > 1 {
		f.pollResponses = f.pollResponses[1:]
	}
	return resp, nil
}

func (f *fakeAPI) Subscribe(ctx context.Context, handler func(model.PushMessage)) error {
	for _, msg := range f.pushes {
		handler(msg)
	}
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	<-ctx.Done()
	return nil
}

func (f *fakeAPI) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}
