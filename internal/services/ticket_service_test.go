package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketing-engine/internal/lock"
	"ticketing-engine/internal/logger"
	"ticketing-engine/internal/models"
	"ticketing-engine/internal/storage"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*models.Notification
	err  error
}

func (n *recordingNotifier) PublishNotification(ctx context.Context, msg *models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.sent {
		out = append(out, m.Title)
	}
	return out
}

type fixture struct {
	store    *storage.InMemoryStore
	notifier *recordingNotifier
	svc      *TicketService
	user     *models.User
	event    *models.Event
}

func newFixture(t *testing.T, capacity int, price int64) *fixture {
	t.Helper()
	ctx := context.Background()

	store := storage.NewInMemoryStore()
	user := &models.User{Name: "Maria Santos", Email: "maria@example.com"}
	require.NoError(t, store.SaveUser(ctx, user))
	event := &models.Event{
		Name:        "Summer Fest",
		StartDate:   time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 6, 1, 23, 0, 0, 0, time.UTC),
		Capacity:    capacity,
		TicketPrice: decimal.NewFromInt(price),
	}
	require.NoError(t, store.SaveEvent(ctx, event))

	notifier := &recordingNotifier{}
	svc := NewTicketService(store, lock.NewKeyedMutex(), notifier, logger.Nop(), Options{})
	return &fixture{store: store, notifier: notifier, svc: svc, user: user, event: event}
}

func (f *fixture) book(t *testing.T, quantity int) []*models.Ticket {
	t.Helper()
	tickets, err := f.svc.BookTickets(context.Background(), &models.BookingRequest{
		EventID:  f.event.ID,
		UserID:   f.user.ID,
		Quantity: quantity,
	})
	require.NoError(t, err)
	return tickets
}

func (f *fixture) sold(t *testing.T) int {
	t.Helper()
	e, err := f.store.GetEvent(context.Background(), f.event.ID)
	require.NoError(t, err)
	return e.TicketsSold
}

func TestResolvers(t *testing.T) {
	svc := NewTicketService(storage.NewInMemoryStore(), lock.NewKeyedMutex(), nil, logger.Nop(), Options{})

	assert.Equal(t, "Main Gate", svc.resolveGate("  "))
	assert.Equal(t, "North", svc.resolveGate(" North "))
	assert.Equal(t, "REGULAR", resolveTicketType(""))
	assert.Equal(t, "VIP", resolveTicketType("VIP"))
	assert.Equal(t, "GCASH", svc.resolvePaymentMethod(""))
	assert.Equal(t, "CARD", svc.resolvePaymentMethod("CARD"))

	custom := NewTicketService(storage.NewInMemoryStore(), lock.NewKeyedMutex(), nil, logger.Nop(),
		Options{DefaultGate: "Gate A", DefaultPaymentMethod: "CASH"})
	assert.Equal(t, "Gate A", custom.resolveGate(""))
	assert.Equal(t, "CASH", custom.resolvePaymentMethod(""))
}

func TestGetTicket(t *testing.T) {
	f := newFixture(t, 5, 100)
	tickets := f.book(t, 1)

	view, err := f.svc.GetTicket(context.Background(), tickets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "REGULAR-000001", view.TicketNumber)
	assert.Equal(t, tickets[0].QRCode, view.QRCode)

	_, err = f.svc.GetTicket(context.Background(), 999)
	assert.ErrorIs(t, err, ErrTicketNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEventTicketsAndPayments(t *testing.T) {
	f := newFixture(t, 5, 100)
	f.book(t, 2)

	views, err := f.svc.EventTickets(context.Background(), f.event.ID)
	require.NoError(t, err)
	assert.Len(t, views, 2)

	payments, err := f.svc.EventPayments(context.Background(), f.event.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.True(t, decimal.NewFromInt(200).Equal(payments[0].Amount))

	_, err = f.svc.EventTickets(context.Background(), 404)
	assert.ErrorIs(t, err, ErrEventNotFound)
	_, err = f.svc.EventPayments(context.Background(), 404)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestEventAttendance(t *testing.T) {
	f := newFixture(t, 10, 100)
	ctx := context.Background()
	tickets := f.book(t, 2)

	for _, qr := range []string{tickets[0].QRCode, tickets[0].QRCode, tickets[1].QRCode} {
		_, err := f.svc.ScanTicket(ctx, qr, "")
		require.NoError(t, err)
	}
	_, err := f.svc.ScanTicket(ctx, "unknown", "")
	require.NoError(t, err)

	att, err := f.svc.EventAttendance(ctx, f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Summer Fest", att.EventTitle)
	assert.Equal(t, 10, att.Capacity)
	assert.Equal(t, 2, att.TicketsSold)
	assert.Equal(t, int64(2), att.CheckedIn)
	assert.Equal(t, int64(1), att.DuplicateScans)
	assert.Len(t, att.RecentScans, 3)

	_, err = f.svc.EventAttendance(ctx, 77)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestNotifierFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t, 5, 100)
	f.notifier.err = errors.New("broker down")

	tickets := f.book(t, 1)
	assert.Len(t, tickets, 1)
	assert.Equal(t, 1, f.sold(t))
}
