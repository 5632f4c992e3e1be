package storage

import (
	"context"
	"errors"

	"ticketing-engine/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Store persists users, events, tickets, attendance logs and payments.
// Methods called on the Store passed to RunInTx's callback take part in that
// transaction; nothing is visible to other callers until the callback returns nil.
type Store interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)

	SaveEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	// GetEventForUpdate locks the event row until the surrounding transaction ends.
	GetEventForUpdate(ctx context.Context, id int64) (*models.Event, error)
	UpdateTicketsSold(ctx context.Context, eventID int64, sold int) error

	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicket(ctx context.Context, id int64) (*models.Ticket, error)
	GetTicketForUpdate(ctx context.Context, id int64) (*models.Ticket, error)
	GetTicketByQRCode(ctx context.Context, qrCode string) (*models.Ticket, error)
	UpdateTicketStatus(ctx context.Context, id int64, status models.TicketStatus) error
	ListTickets(ctx context.Context, eventID int64) ([]*models.Ticket, error)

	CreateAttendanceLog(ctx context.Context, log *models.AttendanceLog) error
	// LatestAttendanceLog returns the entry with the greatest start time,
	// ties broken by the greatest id.
	LatestAttendanceLog(ctx context.Context, ticketID int64) (*models.AttendanceLog, error)
	RecentAttendance(ctx context.Context, eventID int64, limit int) ([]*models.AttendanceLog, error)
	AttendanceStats(ctx context.Context, eventID int64) (*models.AttendanceStats, error)

	SavePayment(ctx context.Context, payment *models.Payment) error
	ListPayments(ctx context.Context, eventID int64) ([]*models.Payment, error)

	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// newerLog reports whether a sorts after b in attendance order.
func newerLog(a, b *models.AttendanceLog) bool {
	if !a.StartTime.Equal(b.StartTime) {
		return a.StartTime.After(b.StartTime)
	}
	return a.ID > b.ID
}
