package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Event is owned by the event catalogue; this service only reads it and
// moves its capacity counters.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          int64           `json:"event_id" bun:"id,pk,autoincrement"`
	Name        string          `json:"name" bun:"name,notnull"`
	Location    string          `json:"location" bun:"location"`
	StartDate   time.Time       `json:"start_date" bun:"start_date"`
	EndDate     time.Time       `json:"end_date" bun:"end_date"`
	Capacity    int             `json:"capacity" bun:"capacity,notnull"`
	TicketsSold int             `json:"tickets_sold" bun:"tickets_sold,notnull,default:0"`
	TicketPrice decimal.Decimal `json:"ticket_price" bun:"ticket_price,type:decimal(12,2),notnull"`
}

// Remaining is the number of tickets that can still be sold.
func (e *Event) Remaining() int {
	if r := e.Capacity - e.TicketsSold; r > 0 {
		return r
	}
	return 0
}

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID    int64  `json:"user_id" bun:"id,pk,autoincrement"`
	Name  string `json:"name" bun:"name,notnull"`
	Email string `json:"email" bun:"email,notnull"`
}
