package services

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketing-engine/internal/lock"
	"ticketing-engine/internal/logger"
	"ticketing-engine/internal/models"
	"ticketing-engine/internal/storage"
)

func TestScanTicketFirstEntryThenReEntries(t *testing.T) {
	f := newFixture(t, 5, 100)
	ctx := context.Background()
	ticket := f.book(t, 1)[0]

	first, err := f.svc.ScanTicket(ctx, ticket.QRCode, "")
	require.NoError(t, err)
	assert.Equal(t, models.ScanValid, first.Status)
	assert.Equal(t, "Ticket verified successfully.", first.Message)
	assert.Equal(t, 0, first.ReEntryCount)
	assert.False(t, first.AlreadyCheckedIn)
	assert.Nil(t, first.PreviousScanAt)
	assert.Equal(t, "Main Gate", first.Gate)
	assert.Equal(t, "REGULAR-000001", first.TicketNumber)
	assert.Equal(t, "Maria Santos", first.AttendeeName)
	assert.Equal(t, "maria@example.com", first.AttendeeEmail)
	assert.Equal(t, "Summer Fest", first.EventTitle)
	require.NotNil(t, first.EventStart)
	assert.True(t, f.event.StartDate.Equal(*first.EventStart))
	require.NotNil(t, first.TicketID)
	assert.Equal(t, ticket.ID, *first.TicketID)

	stored, err := f.store.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketCheckedIn, stored.Status)

	second, err := f.svc.ScanTicket(ctx, ticket.QRCode, "East")
	require.NoError(t, err)
	assert.Equal(t, models.ScanDuplicate, second.Status)
	assert.Equal(t, "Ticket was already checked in.", second.Message)
	assert.Equal(t, 1, second.ReEntryCount)
	assert.True(t, second.AlreadyCheckedIn)
	require.NotNil(t, second.PreviousScanAt)
	assert.True(t, first.ScannedAt.Equal(*second.PreviousScanAt))

	third, err := f.svc.VerifyTicketByNumber(ctx, "REGULAR-000001", nil, "")
	require.NoError(t, err)
	assert.Equal(t, models.ScanDuplicate, third.Status)
	assert.Equal(t, 2, third.ReEntryCount)

	// Purchase plus one check-in; duplicates never notify.
	assert.Equal(t, []string{"Ticket Purchased", "Checked In"}, f.notifier.titles())
	assert.Equal(t, `You've been checked in to "Summer Fest" at Main Gate. Enjoy the event!`, f.notifier.sent[1].Message)

	stats, err := f.store.AttendanceStats(ctx, f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStats{TotalScans: 3, ValidScans: 1, DuplicateScans: 2}, *stats)
}

func TestScanTicketUsedStatusCountsAsCheckedIn(t *testing.T) {
	f := newFixture(t, 5, 100)
	ctx := context.Background()
	ticket := f.book(t, 1)[0]
	require.NoError(t, f.store.UpdateTicketStatus(ctx, ticket.ID, "used"))

	res, err := f.svc.ScanTicket(ctx, ticket.QRCode, "")
	require.NoError(t, err)
	assert.Equal(t, models.ScanDuplicate, res.Status)
	assert.Equal(t, 1, res.ReEntryCount)
	assert.Nil(t, res.PreviousScanAt)

	stored, err := f.store.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatus("used"), stored.Status)
}

func TestScanTicketInvalidCodes(t *testing.T) {
	f := newFixture(t, 5, 100)
	ctx := context.Background()
	f.book(t, 1)

	for code, msg := range map[string]string{
		"   ":          "QR code must not be empty.",
		"not-a-ticket": "No ticket matches the scanned code.",
	} {
		res, err := f.svc.ScanTicket(ctx, code, "West")
		require.NoError(t, err)
		assert.Equal(t, models.ScanInvalid, res.Status)
		assert.Equal(t, msg, res.Message)
		assert.Nil(t, res.TicketID)
		assert.Nil(t, res.EventID)
		assert.Equal(t, 0, res.ReEntryCount)
		assert.False(t, res.AlreadyCheckedIn)
		assert.Equal(t, "West", res.Gate)
		assert.False(t, res.ScannedAt.IsZero())
	}

	stats, err := f.store.AttendanceStats(ctx, f.event.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalScans)
}

func TestVerifyTicketByNumberInvalidCases(t *testing.T) {
	f := newFixture(t, 5, 100)
	ctx := context.Background()
	f.book(t, 1)

	orphan := &models.Ticket{QRCode: "orphan", Status: models.TicketActive}
	require.NoError(t, f.store.CreateTicket(ctx, orphan))

	otherEvent := f.event.ID + 1
	tests := []struct {
		name    string
		number  string
		eventID *int64
		message string
	}{
		{"undecodable", "BOGUS", nil, "Ticket number is invalid."},
		{"blank", "  ", nil, "Ticket number is invalid."},
		{"unknown id", "REGULAR-000999", nil, "Ticket number not found."},
		{"no event", "X-" + itoa(orphan.ID), nil, "Ticket is not linked to an event."},
		{"wrong event", "REGULAR-000001", &otherEvent, "Ticket belongs to a different event."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.VerifyTicketByNumber(ctx, tt.number, tt.eventID, "")
			require.NoError(t, err)
			assert.Equal(t, models.ScanInvalid, res.Status)
			assert.Equal(t, tt.message, res.Message)
		})
	}

	// The wrong-event attempt left the ticket untouched.
	stored, err := f.store.GetTicket(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.TicketActive, stored.Status)

	eventID := f.event.ID
	res, err := f.svc.VerifyTicketByNumber(ctx, "regular-000001", &eventID, "Side")
	require.NoError(t, err)
	assert.Equal(t, models.ScanValid, res.Status)
	assert.Equal(t, "Side", res.Gate)
}

func TestConcurrentScansYieldExactlyOneValid(t *testing.T) {
	f := newFixture(t, 5, 100)
	ctx := context.Background()
	ticket := f.book(t, 1)[0]

	const scanners = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		valid   int
		reEntry []int
	)
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.ScanTicket(ctx, ticket.QRCode, "")
			require.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if res.Status == models.ScanValid {
				valid++
				return
			}
			reEntry = append(reEntry, res.ReEntryCount)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, valid)
	sort.Ints(reEntry)
	for i, n := range reEntry {
		assert.Equal(t, i+1, n)
	}
}

func TestBulkCheckInMixedBatch(t *testing.T) {
	f := newFixture(t, 5, 100)
	f.svc.opts.BulkWorkers = 1
	f.book(t, 1)

	summary, err := f.svc.BulkCheckIn(context.Background(), &models.BulkCheckInRequest{
		TicketNumbers: []string{"T-000001", "BOGUS", "T-000001"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 1, summary.Duplicate)
	assert.Equal(t, 1, summary.Invalid)
	assert.Equal(t, summary.Total, summary.Successful+summary.Duplicate+summary.Invalid)

	require.Len(t, summary.Results, 3)
	assert.Equal(t, models.ScanValid, summary.Results[0].Status)
	assert.Equal(t, models.ScanInvalid, summary.Results[1].Status)
	assert.Equal(t, models.ScanDuplicate, summary.Results[2].Status)
}

func TestBulkCheckInParallelWorkers(t *testing.T) {
	f := newFixture(t, 10, 100)
	f.svc.opts.BulkWorkers = 4
	f.book(t, 3)

	summary, err := f.svc.BulkCheckIn(context.Background(), &models.BulkCheckInRequest{
		TicketNumbers: []string{"T-000001", "T-000002", "T-000003", "T-000001", "T-000002", "nope", " "},
		Gate:          "VIP Lane",
	})
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Total)
	assert.Equal(t, 3, summary.Successful)
	assert.Equal(t, 2, summary.Duplicate)
	assert.Equal(t, 1, summary.Invalid)
	for _, r := range summary.Results {
		assert.Equal(t, "VIP Lane", r.Gate)
	}
}

func TestBulkCheckInEmpty(t *testing.T) {
	f := newFixture(t, 5, 100)

	summary, err := f.svc.BulkCheckIn(context.Background(), &models.BulkCheckInRequest{TicketNumbers: []string{"", "  "}})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, 0, summary.Successful+summary.Duplicate+summary.Invalid)
	assert.NotNil(t, summary.Results)
	assert.Empty(t, summary.Results)
}

// flakyStore fails ticket lookups for one id.
type flakyStore struct {
	storage.Store
	failID int64
}

func (s *flakyStore) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	if id == s.failID {
		return nil, errors.New("connection reset")
	}
	return s.Store.GetTicket(ctx, id)
}

func TestBulkCheckInItemFailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t, 5, 100)
	f.book(t, 2)

	svc := NewTicketService(&flakyStore{Store: f.store, failID: 1}, lock.NewKeyedMutex(), nil, logger.Nop(), Options{})
	summary, err := svc.BulkCheckIn(context.Background(), &models.BulkCheckInRequest{
		TicketNumbers: []string{"T-000001", "T-000002"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 1, summary.Invalid)
	assert.Equal(t, "Ticket could not be processed.", summary.Results[0].Message)

	_, err = svc.VerifyTicketByNumber(context.Background(), "T-000001", nil, "")
	assert.Error(t, err)
}

func TestScanTimestampsComeFromClock(t *testing.T) {
	f := newFixture(t, 5, 100)
	ticket := f.book(t, 1)[0]

	at := time.Date(2026, 6, 1, 19, 30, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return at }

	res, err := f.svc.ScanTicket(context.Background(), ticket.QRCode, "")
	require.NoError(t, err)
	assert.True(t, at.Equal(res.ScannedAt))

	latest, err := f.store.LatestAttendanceLog(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.True(t, at.Equal(latest.StartTime))
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
