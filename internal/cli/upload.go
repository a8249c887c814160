package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"sentinel/internal/dashboard"
	"sentinel/internal/media"
)

// NewUploadCmd uploads media files and waits for their analysis.
func NewUploadCmd(e *env) *cobra.Command {
	var (
		uploadedBy   string
		annotateDir  string
		pollInterval time.Duration
		maxPolls     int
	)

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload media for analysis",
		Long: fmt.Sprintf(`Upload up to %d images or videos, wait for the server to analyze each one
and print the detections.

Examples:
  # Analyze two frames
  sentinel-dashboard upload cam1.jpg cam2.png

  # Save copies with the detections drawn on them
  sentinel-dashboard upload --annotate-dir ./out cam1.jpg`, media.MaxFilesPerBatch),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			files := make([]dashboard.UploadFile, 0, len(args))
			for _, path := range args {
				file, err := dashboard.FileFromPath(path)
				if err != nil {
					return err
				}
				files = append(files, file)
			}

			notifier := &consoleNotifier{w: cmd.ErrOrStderr()}
			workflow := dashboard.NewUploadWorkflow(e.api, uploadedBy, pollInterval, maxPolls, notifier, e.logger)

			results, err := workflow.Run(cmd.Context(), files)
			if err != nil {
				return err
			}

			failed := 0
			for _, result := range results {
				renderUploadResult(out, result)
				if result.Outcome != dashboard.OutcomeAnalyzed {
					failed++
					continue
				}
				if annotateDir != "" {
					if err := annotate(cmd, e, annotateDir, result, out); err != nil {
						notifier.Notify(dashboard.Notification{
							Level:   dashboard.LevelWarning,
							Title:   "Annotation failed",
							Message: fmt.Sprintf("%s: %v", result.File, err),
							Time:    time.Now(),
						})
					}
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d file(s) were not analyzed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&uploadedBy, "uploaded-by", e.cfg.UploadedBy, "uploader name recorded with each file")
	cmd.Flags().StringVar(&annotateDir, "annotate-dir", "", "write annotated PNG copies of analyzed images to this directory")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", e.cfg.PollInterval, "delay between analysis status checks")
	cmd.Flags().IntVar(&maxPolls, "max-polls", e.cfg.MaxPolls, "status checks before giving up on a file")
	return cmd
}

// annotate fetches the stored image and writes it with its bounding boxes drawn.
// Videos are skipped.
func annotate(cmd *cobra.Command, e *env, dir string, result dashboard.UploadResult, out io.Writer) error {
	upload := result.Upload
	if upload == nil || upload.AnalysisResults == nil || upload.ImageURL == "" || media.IsVideo(upload.MimeType) {
		return nil
	}

	src, err := e.api.Fetch(cmd.Context(), upload.ImageURL)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", upload.ImageURL, err)
	}

	annotated, err := dashboard.Annotate(src, upload.MimeType, upload.AnalysisResults)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, upload.ID+"-annotated.png")
	if err := os.WriteFile(path, annotated, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Fprintf(out, "  annotated: %s\n", path)
	return nil
}
