package analysis

import (
	"sort"
	"strings"
	"time"

	"sentinel/internal/model"
)

// FusionEngineName identifies the fusion rules in the AI status report.
const FusionEngineName = "watchlist-fusion/v1"

// FusionEngine turns raw detections into an AnomalyResult using a class watch-list.
type FusionEngine struct {
	watchlist map[string]model.Severity
	threshold float64
	impact    model.PrivacyImpact
}

// NewFusionEngine creates a FusionEngine. watchlist maps class names to a priority
// (critical/high/medium/low); detections of watched classes at or above threshold are anomalies.
func NewFusionEngine(watchlist map[string]string, threshold float64, impact model.PrivacyImpact) *FusionEngine {
	normalized := make(map[string]model.Severity, len(watchlist))
	for class, priority := range watchlist {
		normalized[strings.ToLower(class)] = model.ClassifySeverity(priority)
	}
	return &FusionEngine{
		watchlist: normalized,
		threshold: threshold,
		impact:    impact,
	}
}

// Fuse builds the analysis result for out. Boxes are sorted by confidence, highest first.
func (f *FusionEngine) Fuse(out *Output, elapsed time.Duration) *model.AnomalyResult {
	result := &model.AnomalyResult{
		Severity:      string(model.SeverityLow),
		BoundingBoxes: make([]model.BoundingBox, 0, len(out.Detections)),
		Metadata: model.ResultMetadata{
			ProcessingTimeMs: float64(elapsed.Microseconds()) / 1000,
			FrameWidth:       out.FrameWidth,
			FrameHeight:      out.FrameHeight,
			FramesAnalyzed:   out.FramesAnalyzed,
			Models:           out.Models,
			PrivacyImpact:    f.impact,
		},
	}

	top := model.SeverityUnknown
	for _, det := range out.Detections {
		priority, watched := f.watchlist[strings.ToLower(det.Label)]
		if !watched {
			priority = model.SeverityLow
		}
		anomalous := watched && det.Confidence >= f.threshold

		result.BoundingBoxes = append(result.BoundingBoxes, model.BoundingBox{
			ClassName:  det.Label,
			Confidence: det.Confidence,
			BBox:       [4]float64{det.X1, det.Y1, det.X2, det.Y2},
			IsAnomaly:  anomalous,
			Priority:   string(priority),
		})

		if !anomalous {
			continue
		}
		result.IsAnomaly = true
		if det.Confidence > result.AnomalyScore {
			result.AnomalyScore = det.Confidence
		}
		if priority.Rank() > top.Rank() {
			top = priority
		}
	}

	if result.IsAnomaly {
		result.Severity = string(top)
	}
	sort.SliceStable(result.BoundingBoxes, func(i, j int) bool {
		return result.BoundingBoxes[i].Confidence > result.BoundingBoxes[j].Confidence
	})
	return result
}

// PrimaryAnomaly returns the most confident anomalous box, if any.
func PrimaryAnomaly(result *model.AnomalyResult) (model.BoundingBox, bool) {
	var (
		best  model.BoundingBox
		found bool
	)
	for _, box := range result.BoundingBoxes {
		if box.IsAnomaly && (!found || box.Confidence > best.Confidence) {
			best, found = box, true
		}
	}
	return best, found
}
