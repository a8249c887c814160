package analysis

import (
	"context"

	"sentinel/internal/model"
)

// Detection is a single labelled region in source-frame pixel coordinates.
type Detection struct {
	Label      string
	Confidence float64
	X1, Y1     float64
	X2, Y2     float64
}

// Output is what a detector produces for one media file.
type Output struct {
	Detections     []Detection
	FrameWidth     int
	FrameHeight    int
	FramesAnalyzed int
	Models         []string
}

// Detector runs inference over a stored media file. Implementations are not
// required to be safe for concurrent use; the Manager gives each worker its own.
type Detector interface {
	Analyze(ctx context.Context, path, mimeType string) (*Output, error)
	Status() model.AIStatus
}
