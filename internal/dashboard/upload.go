package dashboard

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"sentinel/internal/logger"
	"sentinel/internal/media"
	"sentinel/internal/model"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxPolls     = 30
)

// Outcome is how a file's upload and analysis ended.
type Outcome string

const (
	OutcomeAnalyzed  Outcome = "analyzed"
	OutcomeFailed    Outcome = "failed"    // upload request failed or analysis reported error
	OutcomeTimedOut  Outcome = "timed_out" // still pending after the last poll
	OutcomeAborted   Outcome = "aborted"   // a poll request failed
	OutcomeRejected  Outcome = "rejected"  // failed client-side validation, never uploaded
	OutcomeCancelled Outcome = "cancelled"
)

// UploadAPI is the part of the server API used by the workflow.
type UploadAPI interface {
	Upload(ctx context.Context, filename, mimeType string, content io.Reader, uploadedBy string) (*model.UploadedFile, error)
	Uploads(ctx context.Context) ([]model.UploadedFile, error)
}

// UploadFile is a file selected for upload.
type UploadFile struct {
	Name     string
	MimeType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// FileFromPath describes a local file, deriving its MIME type from the extension.
func FileFromPath(path string) (UploadFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return UploadFile{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return UploadFile{}, fmt.Errorf("%s is a directory", path)
	}
	return UploadFile{
		Name:     filepath.Base(path),
		MimeType: media.TypeByExtension(path),
		Size:     info.Size(),
		Open:     func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// UploadResult is the final state of one file.
type UploadResult struct {
	File    string
	Upload  *model.UploadedFile // last known server record; nil if never uploaded
	Outcome Outcome
	Polls   int
	Err     error
}

// UploadWorkflow uploads files and polls each one until its analysis finishes.
type UploadWorkflow struct {
	api        UploadAPI
	notifier   Notifier
	logger     *logger.Logger
	uploadedBy string
	interval   time.Duration
	maxPolls   int
}

// NewUploadWorkflow creates a workflow. Non-positive interval or maxPolls select the defaults.
func NewUploadWorkflow(api UploadAPI, uploadedBy string, interval time.Duration, maxPolls int,
	notifier Notifier, logger *logger.Logger) *UploadWorkflow {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}
	return &UploadWorkflow{
		api:        api,
		notifier:   notifier,
		logger:     logger,
		uploadedBy: uploadedBy,
		interval:   interval,
		maxPolls:   maxPolls,
	}
}

// Run uploads every valid file and polls each one concurrently. Results are in
// input order. A batch with too many files is rejected as a whole.
// Cancelling ctx stops all poll loops.
func (w *UploadWorkflow) Run(ctx context.Context, files []UploadFile) ([]UploadResult, error) {
	if err := media.ValidateBatch(len(files)); err != nil {
		notify(w.notifier, LevelError, "Upload rejected", err.Error())
		return nil, err
	}

	results := make([]UploadResult, len(files))
	var g errgroup.Group
	for i, file := range files {
		if err := media.Validate(file.Name, file.MimeType, file.Size); err != nil {
			results[i] = UploadResult{File: file.Name, Outcome: OutcomeRejected, Err: err}
			notify(w.notifier, LevelError, "File rejected", err.Error())
			continue
		}

		i, file := i, file
		g.Go(func() error {
			results[i] = w.process(ctx, file)
			return nil
		})
	}
	g.Wait()

	return results, nil
}

func (w *UploadWorkflow) process(ctx context.Context, file UploadFile) UploadResult {
	result := UploadResult{File: file.Name}

	upload, err := w.upload(ctx, file)
	if err != nil {
		result.Outcome, result.Err = OutcomeFailed, err
		if ctx.Err() != nil {
			result.Outcome = OutcomeCancelled
		}
		notify(w.notifier, LevelError, "Upload failed", fmt.Sprintf("%s: %v", file.Name, err))
		return result
	}
	result.Upload = upload
	notify(w.notifier, LevelInfo, "Upload complete", fmt.Sprintf("%s uploaded, analysis started", file.Name))

	w.poll(ctx, &result)
	w.report(result)
	return result
}

func (w *UploadWorkflow) upload(ctx context.Context, file UploadFile) (*model.UploadedFile, error) {
	content, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer content.Close()

	return w.api.Upload(ctx, file.Name, file.MimeType, content, w.uploadedBy)
}

// poll lists uploads every interval until the record leaves the pending states,
// maxPolls is reached, a request fails or ctx is done.
func (w *UploadWorkflow) poll(ctx context.Context, result *UploadResult) {
	if outcome, done := finalOutcome(result.Upload); done {
		result.Outcome = outcome
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for result.Polls < w.maxPolls {
		select {
		case <-ctx.Done():
			result.Outcome, result.Err = OutcomeCancelled, ctx.Err()
			return
		case <-ticker.C:
		}

		result.Polls++
		uploads, err := w.api.Uploads(ctx)
		if err != nil {
			result.Outcome, result.Err = OutcomeAborted, err
			if ctx.Err() != nil {
				result.Outcome = OutcomeCancelled
			}
			return
		}

		for i := range uploads {
			if uploads[i].ID == result.Upload.ID {
				result.Upload = &uploads[i]
				break
			}
		}

		if outcome, done := finalOutcome(result.Upload); done {
			result.Outcome = outcome
			return
		}
	}

	result.Outcome = OutcomeTimedOut
	result.Err = fmt.Errorf("analysis still %s after %d polls", result.Upload.Status, result.Polls)
}

func finalOutcome(upload *model.UploadedFile) (Outcome, bool) {
	switch upload.Status {
	case model.StatusAnalyzed:
		return OutcomeAnalyzed, true
	case model.StatusError:
		return OutcomeFailed, true
	}
	return "", false
}

func (w *UploadWorkflow) report(result UploadResult) {
	switch result.Outcome {
	case OutcomeAnalyzed:
		notify(w.notifier, LevelSuccess, "Analysis complete", summarize(result.File, result.Upload.AnalysisResults))
	case OutcomeFailed:
		message := result.Upload.Error
		if message == "" {
			message = "analysis failed"
		}
		notify(w.notifier, LevelError, "Analysis failed", fmt.Sprintf("%s: %s", result.File, message))
	case OutcomeTimedOut:
		notify(w.notifier, LevelWarning, "Analysis timed out", fmt.Sprintf("%s: %v", result.File, result.Err))
	case OutcomeAborted:
		notify(w.notifier, LevelError, "Status check failed", fmt.Sprintf("%s: %v", result.File, result.Err))
	}
	w.logger.Info("Upload %s finished: %s after %d poll(s)", result.File, result.Outcome, result.Polls)
}

func summarize(name string, results *model.AnomalyResult) string {
	if results == nil {
		return name + ": no results"
	}
	if results.IsAnomaly {
		return fmt.Sprintf("%s: anomaly detected (%s, score %.2f), %d object(s)",
			name, results.Severity, results.AnomalyScore, len(results.BoundingBoxes))
	}
	return fmt.Sprintf("%s: no anomaly, %d object(s)", name, len(results.BoundingBoxes))
}
