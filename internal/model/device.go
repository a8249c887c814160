package model

import "time"

// Device is an edge device reporting heartbeats.
type Device struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	LastSeen time.Time `json:"lastSeen"`
}
