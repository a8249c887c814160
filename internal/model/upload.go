package model

import "time"

// UploadStatus is the analysis state of an uploaded file.
type UploadStatus string

const (
	StatusUploaded   UploadStatus = "uploaded"
	StatusProcessing UploadStatus = "processing"
	StatusAnalyzed   UploadStatus = "analyzed"
	StatusError      UploadStatus = "error"
)

// IsPending reports whether the analysis has not reached a final state yet.
func (s UploadStatus) IsPending() bool {
	return s == StatusUploaded || s == StatusProcessing
}

// UploadedFile is a media file submitted for analysis.
type UploadedFile struct {
	ID              string         `json:"id"`
	Filename        string         `json:"filename"`
	OriginalName    string         `json:"originalName"`
	MimeType        string         `json:"mimeType"`
	Size            int64          `json:"size"`
	Status          UploadStatus   `json:"status"`
	AnalysisResults *AnomalyResult `json:"analysisResults,omitempty"`
	UploadedAt      time.Time      `json:"uploadedAt"`
	ImageURL        string         `json:"imageUrl,omitempty"`
	UploadedBy      string         `json:"uploadedBy,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// AnomalyResult is the fused inference output for one upload.
type AnomalyResult struct {
	IsAnomaly     bool           `json:"is_anomaly"`
	AnomalyScore  float64        `json:"anomaly_score"`
	Severity      string         `json:"severity"`
	BoundingBoxes []BoundingBox  `json:"bounding_boxes"`
	Metadata      ResultMetadata `json:"metadata"`
}

// BoundingBox is a detection in source-frame pixel coordinates, BBox = [x1, y1, x2, y2].
type BoundingBox struct {
	ClassName  string     `json:"class_name"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
	IsAnomaly  bool       `json:"is_anomaly"`
	Priority   string     `json:"priority"`
}

type ResultMetadata struct {
	ProcessingTimeMs float64       `json:"processing_time_ms"`
	FrameWidth       int           `json:"frame_width,omitempty"`
	FrameHeight      int           `json:"frame_height,omitempty"`
	FramesAnalyzed   int           `json:"frames_analyzed,omitempty"`
	Models           []string      `json:"models,omitempty"`
	PrivacyImpact    PrivacyImpact `json:"privacy_impact"`
}

// PrivacyImpact is the (epsilon, delta) attributed to a single inference.
type PrivacyImpact struct {
	Epsilon float64 `json:"epsilon"`
	Delta   float64 `json:"delta"`
}
