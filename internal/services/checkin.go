package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticketing-engine/internal/lock"
	"ticketing-engine/internal/models"
	"ticketing-engine/internal/monitoring"
	"ticketing-engine/internal/storage"
	"ticketing-engine/internal/ticketcode"
)

const (
	msgBlankQR         = "QR code must not be empty."
	msgUnknownQR       = "No ticket matches the scanned code."
	msgBadNumber       = "Ticket number is invalid."
	msgNumberNotFound  = "Ticket number not found."
	msgNoEvent         = "Ticket is not linked to an event."
	msgWrongEvent      = "Ticket belongs to a different event."
	msgCheckedIn       = "Ticket verified successfully."
	msgAlreadyIn       = "Ticket was already checked in."
	msgProcessingError = "Ticket could not be processed."
)

const (
	methodQR     = "qr"
	methodManual = "manual"
	methodBulk   = "bulk"
)

// ScanTicket checks a ticket in by its QR code. Unknown or blank codes give
// an invalid result, not an error.
func (s *TicketService) ScanTicket(ctx context.Context, qrCode, gate string) (*models.ScanResult, error) {
	gate = s.resolveGate(gate)
	scannedAt := s.now()

	code := strings.TrimSpace(qrCode)
	if code == "" {
		return s.invalid(methodQR, gate, scannedAt, msgBlankQR), nil
	}

	ticket, err := s.store.GetTicketByQRCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return s.invalid(methodQR, gate, scannedAt, msgUnknownQR), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up qr code: %w", err)
	}

	return s.checkIn(ctx, methodQR, ticket.ID, gate)
}

// VerifyTicketByNumber checks a ticket in by its printed number. When eventID
// is set the ticket must belong to that event.
func (s *TicketService) VerifyTicketByNumber(ctx context.Context, ticketNumber string, eventID *int64, gate string) (*models.ScanResult, error) {
	return s.verifyByNumber(ctx, methodManual, ticketNumber, eventID, s.resolveGate(gate))
}

func (s *TicketService) verifyByNumber(ctx context.Context, method, ticketNumber string, eventID *int64, gate string) (*models.ScanResult, error) {
	scannedAt := s.now()

	id, ok := ticketcode.Decode(ticketNumber)
	if !ok {
		return s.invalid(method, gate, scannedAt, msgBadNumber), nil
	}

	ticket, err := s.store.GetTicket(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return s.invalid(method, gate, scannedAt, msgNumberNotFound), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up ticket %d: %w", id, err)
	}

	if ticket.EventID == 0 {
		return s.invalid(method, gate, scannedAt, msgNoEvent), nil
	}
	if eventID != nil && *eventID != ticket.EventID {
		return s.invalid(method, gate, scannedAt, msgWrongEvent), nil
	}

	return s.checkIn(ctx, method, ticket.ID, gate)
}

func (s *TicketService) invalid(method, gate string, scannedAt time.Time, message string) *models.ScanResult {
	monitoring.RecordScan(method, string(models.ScanInvalid))
	s.log.LogCheckin(string(models.ScanInvalid), gate, message)
	return &models.ScanResult{
		Status:    models.ScanInvalid,
		Message:   message,
		Gate:      gate,
		ScannedAt: scannedAt,
	}
}

// checkIn records one presentation of a resolved ticket. The first
// presentation flips the ticket to CHECKED_IN; every later one is logged as a
// duplicate with the next re-entry count.
func (s *TicketService) checkIn(ctx context.Context, method string, ticketID int64, gate string) (*models.ScanResult, error) {
	unlock, err := s.locks.Lock(ctx, lock.TicketKey(ticketID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock ticket: %w", err)
	}
	defer unlock()

	// Taken under the lock so log order matches start-time order.
	scannedAt := s.now()

	var (
		result *models.ScanResult
		event  *models.Event
		userID int64
	)
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Store) error {
		ticket, err := tx.GetTicketForUpdate(ctx, ticketID)
		if err != nil {
			return mapNotFound(err, ErrTicketNotFound, ticketID)
		}
		userID = ticket.UserID
		alreadyCheckedIn := ticket.CheckedIn()

		latest, err := tx.LatestAttendanceLog(ctx, ticket.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		entry := &models.AttendanceLog{
			TicketID:  ticket.ID,
			EventID:   ticket.EventID,
			UserID:    ticket.UserID,
			StartTime: scannedAt,
			Gate:      gate,
			Status:    models.ScanValid,
		}
		if alreadyCheckedIn {
			entry.Status = models.ScanDuplicate
			entry.ReEntryCount = 1
			if latest != nil {
				entry.ReEntryCount = latest.ReEntryCount + 1
			}
		} else if err := tx.UpdateTicketStatus(ctx, ticket.ID, models.TicketCheckedIn); err != nil {
			return err
		}
		if err := tx.CreateAttendanceLog(ctx, entry); err != nil {
			return err
		}

		result = &models.ScanResult{
			Status:           entry.Status,
			Message:          msgCheckedIn,
			TicketID:         &ticket.ID,
			EventID:          &ticket.EventID,
			TicketNumber:     ticketcode.Encode(ticket.ID, ticket.TicketType),
			Gate:             gate,
			ReEntryCount:     entry.ReEntryCount,
			AlreadyCheckedIn: alreadyCheckedIn,
			ScannedAt:        scannedAt,
		}
		if alreadyCheckedIn {
			result.Message = msgAlreadyIn
		}
		if latest != nil {
			prev := latest.StartTime
			result.PreviousScanAt = &prev
		}

		// Attendee and event details are decoration; a missing row does not fail the scan.
		if user, err := tx.GetUser(ctx, ticket.UserID); err == nil {
			result.AttendeeName = user.Name
			result.AttendeeEmail = user.Email
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if ev, err := tx.GetEvent(ctx, ticket.EventID); err == nil {
			event = ev
			result.EventTitle = ev.Name
			startDate, endDate := ev.StartDate, ev.EndDate
			result.EventStart = &startDate
			result.EventEnd = &endDate
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		s.log.Error("CHECKIN", fmt.Sprintf("Failed to check in ticket %d: %v", ticketID, err))
		return nil, err
	}

	monitoring.RecordScan(method, string(result.Status))
	s.log.LogCheckin(string(result.Status), gate, fmt.Sprintf("Ticket %s re-entry %d", result.TicketNumber, result.ReEntryCount))

	if result.Status == models.ScanValid {
		s.notify(ctx, checkInNotification(userID, event, *result.EventID, gate))
	}
	return result, nil
}

func checkInNotification(userID int64, event *models.Event, eventID int64, gate string) *models.Notification {
	title := "the event"
	if event != nil {
		title = event.Name
	}
	return &models.Notification{
		UserID:         userID,
		Kind:           models.NotifySuccess,
		Title:          "Checked In",
		Message:        fmt.Sprintf("You've been checked in to \"%s\" at %s. Enjoy the event!", title, gate),
		RelatedEventID: &eventID,
	}
}
