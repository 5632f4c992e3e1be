package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticketing-engine/internal/lock"
	"ticketing-engine/internal/logger"
	"ticketing-engine/internal/models"
	"ticketing-engine/internal/storage"
	"ticketing-engine/internal/ticketcode"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrEventNotFound    = fmt.Errorf("event %w", ErrNotFound)
	ErrTicketNotFound   = fmt.Errorf("ticket %w", ErrNotFound)
	ErrCapacityExceeded = errors.New("not enough tickets left for this event")
	ErrInvalidInput     = errors.New("invalid input")
)

const (
	DefaultGate          = "Main Gate"
	DefaultTicketType    = "REGULAR"
	DefaultPaymentMethod = "GCASH"

	recentScanLimit = 25
)

// Notifier hands notifications to whatever delivers them. Failures are
// logged by the caller and never undo the operation that triggered them.
type Notifier interface {
	PublishNotification(ctx context.Context, n *models.Notification) error
}

type Options struct {
	DefaultGate          string
	DefaultPaymentMethod string
	// BulkWorkers above 1 checks bulk items in parallel.
	BulkWorkers int
}

type TicketService struct {
	store    storage.Store
	locks    lock.Locker
	notifier Notifier
	log      *logger.Logger
	opts     Options

	now func() time.Time
}

func NewTicketService(store storage.Store, locks lock.Locker, notifier Notifier, log *logger.Logger, opts Options) *TicketService {
	if strings.TrimSpace(opts.DefaultGate) == "" {
		opts.DefaultGate = DefaultGate
	}
	if strings.TrimSpace(opts.DefaultPaymentMethod) == "" {
		opts.DefaultPaymentMethod = DefaultPaymentMethod
	}
	if opts.BulkWorkers < 1 {
		opts.BulkWorkers = 1
	}
	return &TicketService{
		store:    store,
		locks:    locks,
		notifier: notifier,
		log:      log,
		opts:     opts,
		now:      time.Now,
	}
}

func (s *TicketService) resolveGate(gate string) string {
	if g := strings.TrimSpace(gate); g != "" {
		return g
	}
	return s.opts.DefaultGate
}

func resolveTicketType(ticketType string) string {
	if t := strings.TrimSpace(ticketType); t != "" {
		return t
	}
	return DefaultTicketType
}

func (s *TicketService) resolvePaymentMethod(method string) string {
	if m := strings.TrimSpace(method); m != "" {
		return m
	}
	return s.opts.DefaultPaymentMethod
}

func (s *TicketService) notify(ctx context.Context, n *models.Notification) {
	if s.notifier == nil {
		return
	}
	n.CreatedAt = s.now()
	if err := s.notifier.PublishNotification(ctx, n); err != nil {
		s.log.Warn("NOTIFY", fmt.Sprintf("Failed to publish %q for user %d: %v", n.Title, n.UserID, err))
	}
}

// GetTicket returns a ticket with its printable number.
func (s *TicketService) GetTicket(ctx context.Context, id int64) (*models.TicketView, error) {
	ticket, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrTicketNotFound, id)
	}
	return &models.TicketView{Ticket: ticket, TicketNumber: ticketcode.Encode(ticket.ID, ticket.TicketType)}, nil
}

func (s *TicketService) EventTickets(ctx context.Context, eventID int64) ([]*models.TicketView, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, mapNotFound(err, ErrEventNotFound, eventID)
	}

	tickets, err := s.store.ListTickets(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	views := make([]*models.TicketView, 0, len(tickets))
	for _, t := range tickets {
		views = append(views, &models.TicketView{Ticket: t, TicketNumber: ticketcode.Encode(t.ID, t.TicketType)})
	}
	return views, nil
}

func (s *TicketService) EventPayments(ctx context.Context, eventID int64) ([]*models.Payment, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, mapNotFound(err, ErrEventNotFound, eventID)
	}

	payments, err := s.store.ListPayments(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// EventAttendance summarizes check-ins for the organizer view.
func (s *TicketService) EventAttendance(ctx context.Context, eventID int64) (*models.EventAttendance, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, mapNotFound(err, ErrEventNotFound, eventID)
	}

	stats, err := s.store.AttendanceStats(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance stats: %w", err)
	}

	recent, err := s.store.RecentAttendance(ctx, eventID, recentScanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent scans: %w", err)
	}
	if recent == nil {
		recent = []*models.AttendanceLog{}
	}

	return &models.EventAttendance{
		EventID:        event.ID,
		EventTitle:     event.Name,
		Capacity:       event.Capacity,
		TicketsSold:    event.TicketsSold,
		CheckedIn:      stats.ValidScans,
		DuplicateScans: stats.DuplicateScans,
		RecentScans:    recent,
	}, nil
}

// mapNotFound turns a storage miss into the given domain error.
func mapNotFound(err, target error, id int64) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %d", target, id)
	}
	return err
}
