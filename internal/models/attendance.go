package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ScanStatus string

const (
	ScanValid     ScanStatus = "valid"
	ScanDuplicate ScanStatus = "duplicate"
	ScanInvalid   ScanStatus = "invalid"
)

// AttendanceLog is one gate presentation of a ticket. Rows are append-only.
type AttendanceLog struct {
	bun.BaseModel `bun:"table:attendance_logs"`

	ID           int64      `json:"id" bun:"id,pk,autoincrement"`
	TicketID     int64      `json:"ticket_id" bun:"ticket_id,notnull"`
	EventID      int64      `json:"event_id" bun:"event_id,notnull"`
	UserID       int64      `json:"user_id" bun:"user_id,notnull"`
	StartTime    time.Time  `json:"start_time" bun:"start_time,notnull"`
	Gate         string     `json:"gate" bun:"gate,notnull"`
	Status       ScanStatus `json:"status" bun:"status,notnull"`
	ReEntryCount int        `json:"re_entry_count" bun:"re_entry_count,notnull,default:0"`
}

// AttendanceStats aggregates the attendance log of one event.
type AttendanceStats struct {
	TotalScans     int64 `json:"total_scans"`
	ValidScans     int64 `json:"valid_scans"`
	DuplicateScans int64 `json:"duplicate_scans"`
}

type EventAttendance struct {
	EventID        int64            `json:"event_id"`
	EventTitle     string           `json:"event_title"`
	Capacity       int              `json:"capacity"`
	TicketsSold    int              `json:"tickets_sold"`
	CheckedIn      int64            `json:"checked_in"`
	DuplicateScans int64            `json:"duplicate_scans"`
	RecentScans    []*AttendanceLog `json:"recent_scans"`
}
