// Package event emits job lifecycle notifications for external observers
// (dashboards, alerting). Notifications are best-effort: the tick processor
// never blocks or fails on them.
package event

import "context"

const (
	JobCreated  = "job.created"
	JobFinished = "job.finished"
)

type Event struct {
	Type   string `json:"type"`
	JobID  string `json:"job_id"`
	Status string `json:"status,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, e Event)
	Close() error
}

// Noop is used when no broker is configured.
type Noop struct{}

func (Noop) Notify(ctx context.Context, e Event) {}
func (Noop) Close() error                        { return nil }
