package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultMaxUploadSize is the largest accepted upload (50 MB).
	DefaultMaxUploadSize = 50 << 20
	// DefaultBudgetCeiling is the total privacy budget (epsilon) available across FL rounds.
	DefaultBudgetCeiling = 6.0
)

// Config holds the server configuration.
type Config struct {
	Port      int
	Password  string
	APIToken  string
	ModelPath string
	// ConfigPath is the DNN graph description paired with ModelPath.
	ConfigPath         string
	UploadDirectory    string
	DatabasePath       string
	LogDirectory       string
	MaxUploadSize      int64
	ProcessingWorkers  int
	ProcessingQueue    int
	AnalysisTimeout    time.Duration
	DetectionThreshold float64
	AnomalyClasses     map[string]string // class name -> priority
	VideoFrameStride   int               // analyze every Nth video frame
	VideoMaxFrames     int
	MotionThreshold    int

	PrivacyBudgetCeiling float64
	InferenceEpsilon     float64
	InferenceDelta       float64

	MetricsSchedule    string
	DeviceOnlineWindow time.Duration
	AnomalyWindow      time.Duration

	MQTTBroker         string
	MQTTClientID       string
	MQTTUsername       string
	MQTTPassword       string
	MQTTRoundsTopic    string
	MQTTHeartbeatTopic string
	MQTTQoS            int
	MQTTTimeout        time.Duration
}

// DashboardConfig holds the dashboard client configuration.
type DashboardConfig struct {
	ServerURL        string
	APIToken         string
	UploadedBy       string
	PollInterval     time.Duration
	MaxPolls         int
	AIStatusInterval time.Duration
	BudgetCeiling    float64
	RequestTimeout   time.Duration
}

// Load reads the server configuration from the environment, after applying an optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:               getEnvAsInt("PORT", 8080),
		Password:           getEnv("PASSWORD", ""),
		APIToken:           getEnv("API_TOKEN", ""),
		ModelPath:          getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:         getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		UploadDirectory:    getEnv("UPLOAD_DIR", filepath.Join(".", "uploads")),
		DatabasePath:       getEnv("DATABASE_PATH", filepath.Join(".", "data", "sentinel.db")),
		LogDirectory:       getEnv("LOG_DIR", filepath.Join(".", "logs")),
		MaxUploadSize:      getEnvAsInt64("MAX_UPLOAD_SIZE", DefaultMaxUploadSize),
		ProcessingWorkers:  getEnvAsInt("PROCESSING_WORKERS", 2),
		ProcessingQueue:    getEnvAsInt("PROCESSING_QUEUE", 100),
		AnalysisTimeout:    getEnvAsDuration("ANALYSIS_TIMEOUT", 45*time.Second),
		DetectionThreshold: getEnvAsFloat("DETECTION_THRESHOLD", 0.6),
		AnomalyClasses: getEnvAsMap("ANOMALY_CLASSES", map[string]string{
			"person":     "high",
			"knife":      "critical",
			"car":        "medium",
			"truck":      "medium",
			"motorcycle": "medium",
			"dog":        "low",
		}),
		VideoFrameStride: getEnvAsInt("VIDEO_FRAME_STRIDE", 15),
		VideoMaxFrames:   getEnvAsInt("VIDEO_MAX_FRAMES", 20),
		MotionThreshold:  getEnvAsInt("MOTION_THRESHOLD", 10000),

		PrivacyBudgetCeiling: getEnvAsFloat("PRIVACY_BUDGET_CEILING", DefaultBudgetCeiling),
		InferenceEpsilon:     getEnvAsFloat("INFERENCE_EPSILON", 0.01),
		InferenceDelta:       getEnvAsFloat("INFERENCE_DELTA", 1e-5),

		MetricsSchedule:    getEnv("METRICS_SCHEDULE", "@every 5s"),
		DeviceOnlineWindow: getEnvAsDuration("DEVICE_ONLINE_WINDOW", 2*time.Minute),
		AnomalyWindow:      getEnvAsDuration("ANOMALY_WINDOW", 24*time.Hour),

		MQTTBroker:         getEnv("MQTT_BROKER", ""),
		MQTTClientID:       getEnv("MQTT_CLIENT_ID", "sentinel-server"),
		MQTTUsername:       getEnv("MQTT_USERNAME", ""),
		MQTTPassword:       getEnv("MQTT_PASSWORD", ""),
		MQTTRoundsTopic:    getEnv("MQTT_ROUNDS_TOPIC", "fl/rounds"),
		MQTTHeartbeatTopic: getEnv("MQTT_HEARTBEAT_TOPIC", "devices/heartbeat"),
		MQTTQoS:            getEnvAsInt("MQTT_QOS", 1),
		MQTTTimeout:        getEnvAsDuration("MQTT_TIMEOUT", 10*time.Second),
	}
}

// LoadDashboard reads the dashboard client configuration.
func LoadDashboard() *DashboardConfig {
	_ = godotenv.Load()

	return &DashboardConfig{
		ServerURL:        getEnv("DASHBOARD_SERVER_URL", "http://localhost:8080"),
		APIToken:         getEnv("DASHBOARD_API_TOKEN", ""),
		UploadedBy:       getEnv("DASHBOARD_UPLOADED_BY", "dashboard"),
		PollInterval:     getEnvAsDuration("DASHBOARD_POLL_INTERVAL", 2*time.Second),
		MaxPolls:         getEnvAsInt("DASHBOARD_MAX_POLLS", 30),
		AIStatusInterval: getEnvAsDuration("DASHBOARD_AI_STATUS_INTERVAL", 10*time.Second),
		BudgetCeiling:    getEnvAsFloat("DASHBOARD_BUDGET_CEILING", DefaultBudgetCeiling),
		RequestTimeout:   getEnvAsDuration("DASHBOARD_REQUEST_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsMap parses "key:value,key:value". Malformed pairs are skipped.
func getEnvAsMap(key string, defaultValue map[string]string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	result := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(pair, ":")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		result[strings.ToLower(k)] = strings.ToLower(v)
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
