package models

import "time"

const (
	NotifySuccess = "success"
	NotifyInfo    = "info"
	NotifyWarning = "warning"
	NotifyError   = "error"
)

// Notification is handed to the notification emitter; delivery is someone else's job.
type Notification struct {
	UserID         int64     `json:"user_id"`
	Kind           string    `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	RelatedEventID *int64    `json:"related_event_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
