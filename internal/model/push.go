package model

import (
	"encoding/json"
	"fmt"
)

// Push message types delivered over the push channel.
const (
	MessageMetricsUpdate   = "metrics_update"
	MessageAnomalyDetected = "anomaly_detected"
)

// PushMessage is the {type, data} envelope sent over the push channel.
type PushMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewPushMessage marshals data into an envelope of the given type.
func NewPushMessage(msgType string, data any) (PushMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return PushMessage{}, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	return PushMessage{Type: msgType, Data: raw}, nil
}

// Decode unmarshals the envelope payload into v.
func (m PushMessage) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("empty %s payload", m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", m.Type, err)
	}
	return nil
}
