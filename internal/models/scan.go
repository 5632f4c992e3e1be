package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScanResult is returned by every check-in path. Invalid scans are results, not errors.
type ScanResult struct {
	Status           ScanStatus `json:"status"`
	Message          string     `json:"message"`
	TicketID         *int64     `json:"ticket_id"`
	EventID          *int64     `json:"event_id"`
	TicketNumber     string     `json:"ticket_number,omitempty"`
	AttendeeName     string     `json:"attendee_name,omitempty"`
	AttendeeEmail    string     `json:"attendee_email,omitempty"`
	EventTitle       string     `json:"event_title,omitempty"`
	EventStart       *time.Time `json:"event_start"`
	EventEnd         *time.Time `json:"event_end"`
	Gate             string     `json:"gate"`
	ReEntryCount     int        `json:"re_entry_count"`
	AlreadyCheckedIn bool       `json:"already_checked_in"`
	ScannedAt        time.Time  `json:"scanned_at"`
	PreviousScanAt   *time.Time `json:"previous_scan_at"`
}

type BulkCheckInSummary struct {
	Total      int           `json:"total"`
	Successful int           `json:"successful"`
	Duplicate  int           `json:"duplicate"`
	Invalid    int           `json:"invalid"`
	Results    []*ScanResult `json:"results"`
}

type BookingRequest struct {
	EventID       int64            `json:"event_id" binding:"required"`
	UserID        int64            `json:"user_id" binding:"required"`
	Quantity      int              `json:"quantity"`
	TicketType    string           `json:"ticket_type"`
	TicketPrice   *decimal.Decimal `json:"ticket_price,omitempty"`
	PaymentMethod string           `json:"payment_method"`
}

type ScanRequest struct {
	QRCode string `json:"qr_code" binding:"required"`
	Gate   string `json:"gate"`
}

type ManualVerificationRequest struct {
	TicketNumber string `json:"ticket_number" binding:"required"`
	EventID      *int64 `json:"event_id,omitempty"`
	Gate         string `json:"gate"`
}

type BulkCheckInRequest struct {
	TicketNumbers []string `json:"ticket_numbers"`
	EventID       *int64   `json:"event_id,omitempty"`
	Gate          string   `json:"gate"`
}

// TicketView is a ticket together with its printable number.
type TicketView struct {
	*Ticket
	TicketNumber string `json:"ticket_number"`
}
