package model

// Notifier defines a generic interface for delivering triggered alerts.
type Notifier interface {
	Send(runID string, alerts []Alert) error
	Close()
}
