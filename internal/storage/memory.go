package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ticketing-engine/internal/lock"
	"ticketing-engine/internal/models"
)

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*memTx)(nil)
)

// InMemoryStore keeps everything in maps. Transactions buffer their writes
// until commit; the *ForUpdate reads take a row lock held until the
// transaction ends, so only transactions touching the same row wait.
type InMemoryStore struct {
	mutex sync.RWMutex
	rows  *lock.KeyedMutex

	users    map[int64]*models.User
	events   map[int64]*models.Event
	tickets  map[int64]*models.Ticket
	qrIndex  map[string]int64
	logs     []*models.AttendanceLog
	payments map[int64]*models.Payment
	refIndex map[string]int64

	userSeq, eventSeq, ticketSeq, logSeq, paymentSeq int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rows:     lock.NewKeyedMutex(),
		users:    make(map[int64]*models.User),
		events:   make(map[int64]*models.Event),
		tickets:  make(map[int64]*models.Ticket),
		qrIndex:  make(map[string]int64),
		payments: make(map[int64]*models.Payment),
		refIndex: make(map[string]int64),
	}
}

func (s *InMemoryStore) nextID(seq *int64, requested int64) int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if requested > 0 {
		if requested > *seq {
			*seq = requested
		}
		return requested
	}
	*seq++
	return *seq
}

func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	tx := newMemTx(s)
	tx.held = make(map[string]func())
	defer tx.releaseRows()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *InMemoryStore) write(ctx context.Context, fn func(tx Store) error) error {
	return s.RunInTx(ctx, func(_ context.Context, tx Store) error { return fn(tx) })
}

func (s *InMemoryStore) commit(tx *memTx) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// Unique keys are re-checked here since another transaction may have
	// committed the same key after this one checked it.
	for id, t := range tx.tickets {
		if owner, ok := s.qrIndex[t.QRCode]; ok && owner != id {
			return fmt.Errorf("ticket qr code: %w", ErrDuplicate)
		}
	}
	for _, p := range tx.payments {
		if owner, ok := s.refIndex[p.TransactionReference]; ok && owner != p.ID {
			return fmt.Errorf("transaction reference %s: %w", p.TransactionReference, ErrDuplicate)
		}
	}

	for id, u := range tx.users {
		s.users[id] = u
	}
	for id, e := range tx.events {
		s.events[id] = e
	}
	for id, t := range tx.tickets {
		s.tickets[id] = t
		s.qrIndex[t.QRCode] = id
	}
	s.logs = append(s.logs, tx.logs...)
	for _, p := range tx.payments {
		s.payments[p.ID] = p
		s.refIndex[p.TransactionReference] = p.ID
	}
	return nil
}

func (s *InMemoryStore) SaveUser(ctx context.Context, user *models.User) error {
	return s.write(ctx, func(tx Store) error { return tx.SaveUser(ctx, user) })
}

func (s *InMemoryStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return newMemTx(s).GetUser(ctx, id)
}

func (s *InMemoryStore) SaveEvent(ctx context.Context, event *models.Event) error {
	return s.write(ctx, func(tx Store) error { return tx.SaveEvent(ctx, event) })
}

func (s *InMemoryStore) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	return newMemTx(s).GetEvent(ctx, id)
}

func (s *InMemoryStore) GetEventForUpdate(ctx context.Context, id int64) (*models.Event, error) {
	return newMemTx(s).GetEvent(ctx, id)
}

func (s *InMemoryStore) UpdateTicketsSold(ctx context.Context, eventID int64, sold int) error {
	return s.write(ctx, func(tx Store) error { return tx.UpdateTicketsSold(ctx, eventID, sold) })
}

func (s *InMemoryStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	return s.write(ctx, func(tx Store) error { return tx.CreateTicket(ctx, ticket) })
}

func (s *InMemoryStore) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	return newMemTx(s).GetTicket(ctx, id)
}

func (s *InMemoryStore) GetTicketForUpdate(ctx context.Context, id int64) (*models.Ticket, error) {
	return newMemTx(s).GetTicket(ctx, id)
}

func (s *InMemoryStore) GetTicketByQRCode(ctx context.Context, qrCode string) (*models.Ticket, error) {
	return newMemTx(s).GetTicketByQRCode(ctx, qrCode)
}

func (s *InMemoryStore) UpdateTicketStatus(ctx context.Context, id int64, status models.TicketStatus) error {
	return s.write(ctx, func(tx Store) error { return tx.UpdateTicketStatus(ctx, id, status) })
}

func (s *InMemoryStore) ListTickets(ctx context.Context, eventID int64) ([]*models.Ticket, error) {
	return newMemTx(s).ListTickets(ctx, eventID)
}

func (s *InMemoryStore) CreateAttendanceLog(ctx context.Context, log *models.AttendanceLog) error {
	return s.write(ctx, func(tx Store) error { return tx.CreateAttendanceLog(ctx, log) })
}

func (s *InMemoryStore) LatestAttendanceLog(ctx context.Context, ticketID int64) (*models.AttendanceLog, error) {
	return newMemTx(s).LatestAttendanceLog(ctx, ticketID)
}

func (s *InMemoryStore) RecentAttendance(ctx context.Context, eventID int64, limit int) ([]*models.AttendanceLog, error) {
	return newMemTx(s).RecentAttendance(ctx, eventID, limit)
}

func (s *InMemoryStore) AttendanceStats(ctx context.Context, eventID int64) (*models.AttendanceStats, error) {
	return newMemTx(s).AttendanceStats(ctx, eventID)
}

func (s *InMemoryStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	return s.write(ctx, func(tx Store) error { return tx.SavePayment(ctx, payment) })
}

func (s *InMemoryStore) ListPayments(ctx context.Context, eventID int64) ([]*models.Payment, error) {
	return newMemTx(s).ListPayments(ctx, eventID)
}

func (s *InMemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

// memTx overlays pending writes on top of the committed maps. A memTx built
// outside RunInTx is a plain read view and takes no row locks.
type memTx struct {
	parent *InMemoryStore
	held   map[string]func()

	users    map[int64]*models.User
	events   map[int64]*models.Event
	tickets  map[int64]*models.Ticket
	qrIndex  map[string]int64
	logs     []*models.AttendanceLog
	payments []*models.Payment
}

func newMemTx(parent *InMemoryStore) *memTx {
	return &memTx{
		parent:  parent,
		users:   make(map[int64]*models.User),
		events:  make(map[int64]*models.Event),
		tickets: make(map[int64]*models.Ticket),
		qrIndex: make(map[string]int64),
	}
}

// lockRow blocks until the row is free, then keeps it until the transaction ends.
func (t *memTx) lockRow(ctx context.Context, key string) error {
	if t.held == nil {
		return nil
	}
	if _, ok := t.held[key]; ok {
		return nil
	}
	unlock, err := t.parent.rows.Lock(ctx, key)
	if err != nil {
		return err
	}
	t.held[key] = unlock
	return nil
}

func (t *memTx) releaseRows() {
	for key, unlock := range t.held {
		unlock()
		delete(t.held, key)
	}
}

func (t *memTx) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return fn(ctx, t)
}

func (t *memTx) HealthCheck(ctx context.Context) error { return nil }

func (t *memTx) Close() error { return nil }

func (t *memTx) SaveUser(ctx context.Context, user *models.User) error {
	user.ID = t.parent.nextID(&t.parent.userSeq, user.ID)
	c := *user
	t.users[c.ID] = &c
	return nil
}

func (t *memTx) GetUser(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := t.users[id]; ok {
		c := *u
		return &c, nil
	}

	t.parent.mutex.RLock()
	defer t.parent.mutex.RUnlock()

	u, ok := t.parent.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	c := *u
	return &c, nil
}

func (t *memTx) SaveEvent(ctx context.Context, event *models.Event) error {
	event.ID = t.parent.nextID(&t.parent.eventSeq, event.ID)
	c := *event
	t.events[c.ID] = &c
	return nil
}

func (t *memTx) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	if e, ok := t.events[id]; ok {
		c := *e
		return &c, nil
	}

	t.parent.mutex.RLock()
	defer t.parent.mutex.RUnlock()

	e, ok := t.parent.events[id]
	if !ok {
		return nil, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	c := *e
	return &c, nil
}

func (t *memTx) GetEventForUpdate(ctx context.Context, id int64) (*models.Event, error) {
	if err := t.lockRow(ctx, lock.EventKey(id)); err != nil {
		return nil, err
	}
	return t.GetEvent(ctx, id)
}

func (t *memTx) UpdateTicketsSold(ctx context.Context, eventID int64, sold int) error {
	e, err := t.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	e.TicketsSold = sold
	t.events[eventID] = e
	return nil
}

func (t *memTx) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	if _, err := t.GetTicketByQRCode(ctx, ticket.QRCode); err == nil {
		return fmt.Errorf("ticket qr code: %w", ErrDuplicate)
	}
	ticket.ID = t.parent.nextID(&t.parent.ticketSeq, ticket.ID)
	c := *ticket
	t.tickets[c.ID] = &c
	t.qrIndex[c.QRCode] = c.ID
	return nil
}

func (t *memTx) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	if tk, ok := t.tickets[id]; ok {
		c := *tk
		return &c, nil
	}

	t.parent.mutex.RLock()
	defer t.parent.mutex.RUnlock()

	tk, ok := t.parent.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %d: %w", id, ErrNotFound)
	}
	c := *tk
	return &c, nil
}

func (t *memTx) GetTicketForUpdate(ctx context.Context, id int64) (*models.Ticket, error) {
	if err := t.lockRow(ctx, lock.TicketKey(id)); err != nil {
		return nil, err
	}
	return t.GetTicket(ctx, id)
}

func (t *memTx) GetTicketByQRCode(ctx context.Context, qrCode string) (*models.Ticket, error) {
	if id, ok := t.qrIndex[qrCode]; ok {
		return t.GetTicket(ctx, id)
	}

	t.parent.mutex.RLock()
	id, ok := t.parent.qrIndex[qrCode]
	t.parent.mutex.RUnlock()

	if !ok {
		return nil, fmt.Errorf("ticket with qr code: %w", ErrNotFound)
	}
	return t.GetTicket(ctx, id)
}

func (t *memTx) UpdateTicketStatus(ctx context.Context, id int64, status models.TicketStatus) error {
	tk, err := t.GetTicket(ctx, id)
	if err != nil {
		return err
	}
	tk.Status = status
	t.tickets[id] = tk
	return nil
}

func (t *memTx) ListTickets(ctx context.Context, eventID int64) ([]*models.Ticket, error) {
	seen := make(map[int64]bool)
	var out []*models.Ticket

	for id, tk := range t.tickets {
		if tk.EventID == eventID {
			c := *tk
			out = append(out, &c)
		}
		seen[id] = true
	}

	t.parent.mutex.RLock()
	for id, tk := range t.parent.tickets {
		if tk.EventID == eventID && !seen[id] {
			c := *tk
			out = append(out, &c)
		}
	}
	t.parent.mutex.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) CreateAttendanceLog(ctx context.Context, log *models.AttendanceLog) error {
	log.ID = t.parent.nextID(&t.parent.logSeq, 0)
	c := *log
	t.logs = append(t.logs, &c)
	return nil
}

// allLogs returns copies of committed and pending logs that match keep.
func (t *memTx) allLogs(keep func(*models.AttendanceLog) bool) []*models.AttendanceLog {
	var out []*models.AttendanceLog

	t.parent.mutex.RLock()
	for _, l := range t.parent.logs {
		if keep(l) {
			c := *l
			out = append(out, &c)
		}
	}
	t.parent.mutex.RUnlock()

	for _, l := range t.logs {
		if keep(l) {
			c := *l
			out = append(out, &c)
		}
	}
	return out
}

func (t *memTx) LatestAttendanceLog(ctx context.Context, ticketID int64) (*models.AttendanceLog, error) {
	var latest *models.AttendanceLog
	for _, l := range t.allLogs(func(l *models.AttendanceLog) bool { return l.TicketID == ticketID }) {
		if latest == nil || newerLog(l, latest) {
			latest = l
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("attendance for ticket %d: %w", ticketID, ErrNotFound)
	}
	return latest, nil
}

func (t *memTx) RecentAttendance(ctx context.Context, eventID int64, limit int) ([]*models.AttendanceLog, error) {
	logs := t.allLogs(func(l *models.AttendanceLog) bool { return l.EventID == eventID })
	sort.Slice(logs, func(i, j int) bool { return newerLog(logs[i], logs[j]) })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (t *memTx) AttendanceStats(ctx context.Context, eventID int64) (*models.AttendanceStats, error) {
	stats := &models.AttendanceStats{}
	for _, l := range t.allLogs(func(l *models.AttendanceLog) bool { return l.EventID == eventID }) {
		stats.TotalScans++
		switch l.Status {
		case models.ScanValid:
			stats.ValidScans++
		case models.ScanDuplicate:
			stats.DuplicateScans++
		}
	}
	return stats, nil
}

func (t *memTx) SavePayment(ctx context.Context, payment *models.Payment) error {
	t.parent.mutex.RLock()
	_, taken := t.parent.refIndex[payment.TransactionReference]
	t.parent.mutex.RUnlock()
	for _, p := range t.payments {
		if p.TransactionReference == payment.TransactionReference {
			taken = true
		}
	}
	if taken {
		return fmt.Errorf("transaction reference %s: %w", payment.TransactionReference, ErrDuplicate)
	}

	payment.ID = t.parent.nextID(&t.parent.paymentSeq, payment.ID)
	c := *payment
	t.payments = append(t.payments, &c)
	return nil
}

func (t *memTx) ListPayments(ctx context.Context, eventID int64) ([]*models.Payment, error) {
	var out []*models.Payment

	t.parent.mutex.RLock()
	for _, p := range t.parent.payments {
		if p.EventID == eventID {
			c := *p
			out = append(out, &c)
		}
	}
	t.parent.mutex.RUnlock()

	for _, p := range t.payments {
		if p.EventID == eventID {
			c := *p
			out = append(out, &c)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
