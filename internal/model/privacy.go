package model

import "time"

// PrivacyMetrics is the differential-privacy budget state after a federated-learning round.
type PrivacyMetrics struct {
	Round           int       `json:"round"`
	Epsilon         float64   `json:"epsilon"`
	Delta           float64   `json:"delta"`
	RemainingBudget float64   `json:"remainingBudget"`
	RecordedAt      time.Time `json:"recordedAt"`
}

// Round is a recorded federated-learning round report.
type Round struct {
	Round           int       `json:"round"`
	Accuracy        float64   `json:"accuracy"`
	Participants    int       `json:"participants"`
	Epsilon         float64   `json:"epsilon"`
	Delta           float64   `json:"delta"`
	RemainingBudget float64   `json:"remainingBudget"`
	RecordedAt      time.Time `json:"recordedAt"`
}

// Privacy returns the privacy budget view of the round.
func (r Round) Privacy() PrivacyMetrics {
	return PrivacyMetrics{
		Round:           r.Round,
		Epsilon:         r.Epsilon,
		Delta:           r.Delta,
		RemainingBudget: r.RemainingBudget,
		RecordedAt:      r.RecordedAt,
	}
}
