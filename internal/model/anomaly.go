package model

import (
	"strings"
	"time"
)

// Anomaly is a flagged event shown in the anomaly feed.
type Anomaly struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Confidence  float64   `json:"confidence"`
	Severity    string    `json:"severity"`
	DeviceID    string    `json:"deviceId,omitempty"`
	Description string    `json:"description,omitempty"`
	DetectedAt  time.Time `json:"detectedAt"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	UploadID    string    `json:"uploadId,omitempty"`
}

// Severity is the normalized severity bucket.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityUnknown  Severity = "unknown"
)

// ClassifySeverity maps free-text severity case-insensitively onto a bucket.
func ClassifySeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityUnknown
	}
}

// Rank orders buckets, higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}
