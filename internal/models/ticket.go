package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketActive    TicketStatus = "ACTIVE"
	TicketCheckedIn TicketStatus = "CHECKED_IN"
	// TicketUsed is written by external processes only. It counts as checked in.
	TicketUsed TicketStatus = "USED"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID           int64           `json:"ticket_id" bun:"id,pk,autoincrement"`
	EventID      int64           `json:"event_id" bun:"event_id,notnull"`
	UserID       int64           `json:"user_id" bun:"user_id,notnull"`
	TicketType   string          `json:"ticket_type" bun:"ticket_type,notnull"`
	QRCode       string          `json:"qr_code" bun:"qr_code,notnull,unique"`
	Price        decimal.Decimal `json:"price" bun:"price,type:decimal(12,2),notnull"`
	PurchaseDate time.Time       `json:"purchase_date" bun:"purchase_date,notnull"`
	Status       TicketStatus    `json:"status" bun:"status,notnull"`
}

// CheckedIn reports whether the ticket has already been used for entry.
func (t *Ticket) CheckedIn() bool {
	s := string(t.Status)
	return strings.EqualFold(s, string(TicketCheckedIn)) || strings.EqualFold(s, string(TicketUsed))
}
