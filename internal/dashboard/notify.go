// Package dashboard holds the client-side state of the monitoring dashboard:
// live metrics, the privacy budget, the anomaly feed, AI status and the upload workflow.
package dashboard

import (
	"sync"
	"time"
)

// Level is the importance of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a transient message surfaced to the operator.
type Notification struct {
	Level   Level
	Title   string
	Message string
	Time    time.Time
}

// Notifier receives notifications. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

func notify(n Notifier, level Level, title, message string) {
	if n == nil {
		return
	}
	n.Notify(Notification{Level: level, Title: title, Message: message, Time: time.Now()})
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// Notifications returns the recorded notifications in arrival order.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}
