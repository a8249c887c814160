package model

// AI service states.
const (
	AIStatusOnline   = "online"
	AIStatusDegraded = "degraded"
	AIStatusOffline  = "offline"
)

// AIStatus describes the availability of the inference pipeline.
type AIStatus struct {
	Status               string `json:"status"`
	TimesformerAvailable bool   `json:"timesformerAvailable"`
	YoloAvailable        bool   `json:"yoloAvailable"`
	FusionEngine         string `json:"fusionEngine,omitempty"`
	Version              string `json:"version,omitempty"`
}
