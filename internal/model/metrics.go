package model

// MetricsSnapshot is the dashboard's live metrics payload served by /api/status
// and pushed as metrics_update. Missing sections decode to zero values.
type MetricsSnapshot struct {
	Devices     DeviceMetrics      `json:"devices"`
	Performance PerformanceMetrics `json:"performance"`
	Security    SecurityMetrics    `json:"security"`
	FL          FLMetrics          `json:"fl"`
}

type DeviceMetrics struct {
	Total  int `json:"total"`
	Online int `json:"online"`
}

type PerformanceMetrics struct {
	Accuracy float64 `json:"accuracy"`
}

type SecurityMetrics struct {
	RecentAnomalies        int     `json:"recentAnomalies"`
	PrivacyBudgetRemaining float64 `json:"privacyBudgetRemaining"`
}

type FLMetrics struct {
	CurrentRound int `json:"currentRound"`
}
