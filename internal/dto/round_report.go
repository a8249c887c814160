package dto

// RoundReport is posted by the FL coordinator after each aggregation round.
type RoundReport struct {
	Round        int     `json:"round"`
	Accuracy     float64 `json:"accuracy"`
	Participants int     `json:"participants,omitempty"`
	Epsilon      float64 `json:"epsilon"`
	Delta        float64 `json:"delta"`
}
