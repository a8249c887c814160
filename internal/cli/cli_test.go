package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/config"
	"sentinel/internal/dashboard"
	"sentinel/internal/model"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// syncBuffer is written by the logger and the notifier from several goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func dashboardRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, model.MetricsSnapshot{
			Devices:     model.DeviceMetrics{Total: 5, Online: 3},
			Performance: model.PerformanceMetrics{Accuracy: 0.873},
			Security:    model.SecurityMetrics{RecentAnomalies: 2, PrivacyBudgetRemaining: 3.5},
			FL:          model.FLMetrics{CurrentRound: 12},
		})
	})
	r.HandleFunc("/api/privacy/budgets", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []model.PrivacyMetrics{})
	})
	r.HandleFunc("/api/anomalies", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []model.Anomaly{{
			ID: "a1", Type: "person", Severity: "High", Confidence: 0.91, DeviceID: "cam-1",
		}})
	})
	r.HandleFunc("/api/ai/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, model.AIStatus{
			Status: model.AIStatusOnline, YoloAvailable: true, FusionEngine: "watchlist-fusion/v1", Version: "1.0.0",
		})
	})
	return r
}

func testConfig(serverURL string) *config.DashboardConfig {
	return &config.DashboardConfig{
		ServerURL:        serverURL,
		UploadedBy:       "tester",
		PollInterval:     10 * time.Millisecond,
		MaxPolls:         5,
		AIStatusInterval: time.Second,
		BudgetCeiling:    config.DefaultBudgetCeiling,
		RequestTimeout:   5 * time.Second,
	}
}

func execute(t *testing.T, cfg *config.DashboardConfig, args ...string) (string, string, error) {
	t.Helper()

	var stdout bytes.Buffer
	stderr := &syncBuffer{}

	cmd := NewRootCmd(cfg)
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(stderr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestStatusCmd(t *testing.T) {
	srv := httptest.NewServer(dashboardRouter())
	defer srv.Close()

	out, _, err := execute(t, testConfig(srv.URL), "status")
	require.NoError(t, err)

	assert.Contains(t, out, "3/5 online")
	assert.Contains(t, out, "87.3%")
	assert.Contains(t, out, "4.2 / 6.0 (70%)")
	assert.Contains(t, out, "placeholder values")
	assert.Contains(t, out, "HIGH")
	assert.Contains(t, out, "cam-1")
	assert.Contains(t, out, "AI service online v1.0.0")
	assert.Contains(t, out, "fusion:watchlist-fusion/v1")
}

func TestStatusCmd_PartialFailure(t *testing.T) {
	// the first matching route wins, so the failing handler goes in front
	fresh := mux.NewRouter()
	fresh.HandleFunc("/api/anomalies", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database unavailable"})
	})
	fresh.PathPrefix("/").Handler(dashboardRouter())

	srv := httptest.NewServer(fresh)
	defer srv.Close()

	out, errOut, err := execute(t, testConfig(srv.URL), "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anomalies")

	assert.Contains(t, out, "3/5 online")
	assert.Contains(t, out, "Recent anomalies")
	assert.Contains(t, errOut, "Failed to load anomalies")
	assert.Contains(t, errOut, "database unavailable")
}

func TestStatusCmd_ServerFlag(t *testing.T) {
	srv := httptest.NewServer(dashboardRouter())
	defer srv.Close()

	out, _, err := execute(t, testConfig("http://127.0.0.1:1"), "status", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "3/5 online")
}

func TestStatusCmd_TokenFlag(t *testing.T) {
	var mu sync.Mutex
	var auth []string

	r := dashboardRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			mu.Lock()
			auth = append(auth, req.Header.Get("Authorization"))
			mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	_, _, err := execute(t, testConfig(srv.URL), "status", "--token", "s3cret")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, auth)
	for _, h := range auth {
		assert.Equal(t, "Bearer s3cret", h)
	}
}

func TestRootCmd_InvalidServer(t *testing.T) {
	_, _, err := execute(t, testConfig("ftp://example.com"), "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported server URL scheme")
}

// requestCounter counts requests per path.
type requestCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *requestCounter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		c.mu.Lock()
		c.counts[req.URL.Path]++
		c.mu.Unlock()
		next.ServeHTTP(w, req)
	})
}

func (c *requestCounter) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[path]
}

func TestWatchCmd_RedrawsOnPush(t *testing.T) {
	upgrader := websocket.Upgrader{}
	counter := &requestCounter{counts: make(map[string]int)}

	r := dashboardRouter()
	r.Use(counter.middleware)
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// push only after the initial load has been served
		deadline := time.Now().Add(5 * time.Second)
		for (counter.count("/api/status") == 0 || counter.count("/api/privacy/budgets") == 0 ||
			counter.count("/api/anomalies") == 0) && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}

		msg, err := model.NewPushMessage(model.MessageAnomalyDetected, model.Anomaly{
			ID: "a2", Type: "knife", Severity: "critical", Confidence: 0.97,
		})
		if err != nil {
			return
		}
		conn.WriteJSON(msg)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	out, errOut, err := execute(t, testConfig(srv.URL), "watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push channel")

	assert.Contains(t, out, "knife")
	assert.Contains(t, out, "CRITICAL")
	assert.Contains(t, errOut, "Anomaly detected")
	assert.Contains(t, errOut, "Push channel lost")

	assert.Equal(t, 1, counter.count("/api/status"))
	assert.Equal(t, 1, counter.count("/api/privacy/budgets"))
	assert.Equal(t, 1, counter.count("/api/anomalies"))
	assert.LessOrEqual(t, counter.count("/api/ai/status"), 1)
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func analyzedUpload(id string) model.UploadedFile {
	return model.UploadedFile{
		ID:           id,
		OriginalName: "frame.png",
		MimeType:     "image/png",
		Status:       model.StatusAnalyzed,
		ImageURL:     "/api/uploads/" + id + "/file",
		AnalysisResults: &model.AnomalyResult{
			IsAnomaly:    true,
			AnomalyScore: 0.92,
			Severity:     "high",
			BoundingBoxes: []model.BoundingBox{{
				ClassName: "person", Confidence: 0.92, BBox: [4]float64{10, 10, 40, 40}, IsAnomaly: true, Priority: "high",
			}},
			Metadata: model.ResultMetadata{ProcessingTimeMs: 12, FrameWidth: 64, FrameHeight: 48},
		},
	}
}

func TestUploadCmd_AnalyzedWithAnnotation(t *testing.T) {
	img := encodePNG(t, 64, 48)

	var polls int
	var mu sync.Mutex
	r := mux.NewRouter()
	r.HandleFunc("/api/upload", func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseMultipartForm(1 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if req.FormValue("uploadedBy") != "night-shift" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unexpected uploader"})
			return
		}
		writeJSON(w, http.StatusCreated, model.UploadedFile{
			ID: "u1", OriginalName: "frame.png", MimeType: "image/png", Status: model.StatusProcessing,
		})
	}).Methods(http.MethodPost)
	r.HandleFunc("/api/uploads", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		polls++
		mu.Unlock()
		writeJSON(w, http.StatusOK, []model.UploadedFile{analyzedUpload("u1")})
	})
	r.HandleFunc("/api/uploads/u1/file", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(img)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "frame.png")
	require.NoError(t, os.WriteFile(path, img, 0644))
	annotateDir := filepath.Join(dir, "out")

	out, errOut, err := execute(t, testConfig(srv.URL), "upload",
		"--uploaded-by", "night-shift", "--annotate-dir", annotateDir, "--poll-interval", "10ms", path)
	require.NoError(t, err, errOut)

	assert.Contains(t, out, "frame.png analyzed u1")
	assert.Contains(t, out, "anomaly HIGH score 0.92")
	assert.Contains(t, out, "person")
	assert.Contains(t, errOut, "Analysis complete")

	annotated, err := os.ReadFile(filepath.Join(annotateDir, "u1-annotated.png"))
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(annotated))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), decoded.Bounds())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, polls)
}

func TestUploadCmd_AnnotationFailureIsNotified(t *testing.T) {
	img := encodePNG(t, 64, 48)

	r := mux.NewRouter()
	r.HandleFunc("/api/upload", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, analyzedUpload("u2"))
	}).Methods(http.MethodPost)
	r.HandleFunc("/api/uploads/u2/file", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "file missing"})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "frame.png")
	require.NoError(t, os.WriteFile(path, img, 0644))
	annotateDir := filepath.Join(dir, "out")

	out, errOut, err := execute(t, testConfig(srv.URL), "upload", "--annotate-dir", annotateDir, path)
	require.NoError(t, err, errOut)

	assert.Contains(t, out, "frame.png analyzed u2")
	assert.Contains(t, errOut, "[warn] Annotation failed: frame.png:")
	assert.Contains(t, errOut, "file missing")
	assert.NoFileExists(t, filepath.Join(annotateDir, "u2-annotated.png"))
}

func TestUploadCmd_Rejected(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not media"), 0644))

	out, errOut, err := execute(t, testConfig(srv.URL), "upload", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 file(s) were not analyzed")
	assert.Contains(t, out, "notes.txt rejected")
	assert.Contains(t, errOut, "File rejected")
	assert.False(t, called)
}

func TestUploadCmd_MissingFile(t *testing.T) {
	_, _, err := execute(t, testConfig("http://127.0.0.1:1"), "upload", filepath.Join(t.TempDir(), "missing.jpg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat")
}

func TestUploadCmd_RequiresFiles(t *testing.T) {
	_, _, err := execute(t, testConfig("http://127.0.0.1:1"), "upload")
	require.Error(t, err)
}

func TestBudgetBar(t *testing.T) {
	tests := []struct {
		percent float64
		want    string
	}{
		{percent: 0, want: strings.Repeat("-", 10)},
		{percent: 50, want: "#####-----"},
		{percent: 100, want: strings.Repeat("#", 10)},
		{percent: 150, want: strings.Repeat("#", 10)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, budgetBar(tt.percent, 10))
	}
}

func TestConsoleNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := &consoleNotifier{w: &buf}

	n.Notify(dashboard.Notification{Level: dashboard.LevelWarning, Title: "Anomaly detected", Message: "knife"})
	n.Notify(dashboard.Notification{Level: dashboard.LevelSuccess, Title: "Analysis complete", Message: "done"})

	assert.Equal(t, "[warn] Anomaly detected: knife\n[ok] Analysis complete: done\n", buf.String())
}

func TestSeverityColor(t *testing.T) {
	assert.Equal(t, "CRITICAL", severityColor("Critical"))
	assert.Equal(t, "LOW", severityColor(" low "))
	assert.Equal(t, "UNKNOWN", severityColor("bogus"))
}
