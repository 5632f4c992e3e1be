package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ticketing-engine/internal/lock"
	"ticketing-engine/internal/models"
	"ticketing-engine/internal/monitoring"
	"ticketing-engine/internal/storage"
	"ticketing-engine/internal/utils"
)

// BookTickets issues req.Quantity tickets against the event's remaining
// capacity. Either every ticket (and the payment, when the total is positive)
// is created, or nothing is.
func (s *TicketService) BookTickets(ctx context.Context, req *models.BookingRequest) ([]*models.Ticket, error) {
	start := time.Now()

	if req.TicketPrice != nil && req.TicketPrice.IsNegative() {
		return nil, fmt.Errorf("%w: ticket_price must not be negative", ErrInvalidInput)
	}

	quantity := req.Quantity
	if quantity < 1 {
		quantity = 1
	}
	ticketType := resolveTicketType(req.TicketType)

	s.log.LogBooking("INIT", req.EventID, fmt.Sprintf("User %d requests %d %s ticket(s)", req.UserID, quantity, ticketType))

	unlock, err := s.locks.Lock(ctx, lock.EventKey(req.EventID))
	if err != nil {
		monitoring.RecordBooking(monitoring.BookingFailed, quantity, time.Since(start))
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}
	defer unlock()

	var (
		tickets []*models.Ticket
		event   *models.Event
	)
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if _, err := tx.GetUser(ctx, req.UserID); err != nil {
			return mapNotFound(err, ErrUserNotFound, req.UserID)
		}

		var err error
		event, err = tx.GetEventForUpdate(ctx, req.EventID)
		if err != nil {
			return mapNotFound(err, ErrEventNotFound, req.EventID)
		}

		sold := event.TicketsSold
		if sold+quantity > event.Capacity {
			return fmt.Errorf("%w: requested %d, %d remaining", ErrCapacityExceeded, quantity, event.Remaining())
		}
		if err := tx.UpdateTicketsSold(ctx, event.ID, sold+quantity); err != nil {
			return err
		}
		event.TicketsSold = sold + quantity

		price := event.TicketPrice
		if req.TicketPrice != nil {
			price = *req.TicketPrice
		}

		now := s.now()
		tickets = make([]*models.Ticket, 0, quantity)
		for i := 0; i < quantity; i++ {
			ticket := &models.Ticket{
				EventID:      event.ID,
				UserID:       req.UserID,
				TicketType:   ticketType,
				QRCode:       utils.GenerateQRCode(),
				Price:        price,
				PurchaseDate: now,
				Status:       models.TicketActive,
			}
			if err := tx.CreateTicket(ctx, ticket); err != nil {
				return err
			}
			tickets = append(tickets, ticket)
		}

		total := price.Mul(decimal.NewFromInt(int64(quantity)))
		if !total.IsPositive() {
			return nil
		}
		return tx.SavePayment(ctx, &models.Payment{
			UserID:               req.UserID,
			EventID:              event.ID,
			Amount:               total,
			PaymentMethod:        s.resolvePaymentMethod(req.PaymentMethod),
			PaymentStatus:        models.PaymentCompleted,
			TransactionReference: utils.GenerateTransactionReference(),
			PaymentDate:          now,
		})
	})
	if err != nil {
		outcome := monitoring.BookingFailed
		if isRejection(err) {
			outcome = monitoring.BookingRejected
		}
		monitoring.RecordBooking(outcome, quantity, time.Since(start))
		s.log.LogBooking("REJECTED", req.EventID, err.Error())
		return nil, err
	}

	monitoring.RecordBooking(monitoring.BookingConfirmed, quantity, time.Since(start))
	s.log.LogBooking("CONFIRMED", req.EventID, fmt.Sprintf("%d ticket(s) issued to user %d, %d/%d sold", quantity, req.UserID, event.TicketsSold, event.Capacity))

	s.notify(ctx, bookingNotification(req.UserID, event, quantity, ticketType))
	return tickets, nil
}

func isRejection(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrCapacityExceeded)
}

func bookingNotification(userID int64, event *models.Event, quantity int, ticketType string) *models.Notification {
	noun, verb := "ticket", "has"
	if quantity != 1 {
		noun, verb = "tickets", "have"
	}
	eventID := event.ID
	return &models.Notification{
		UserID:         userID,
		Kind:           models.NotifySuccess,
		Title:          "Ticket Purchased",
		Message:        fmt.Sprintf("Your %d %s %s for \"%s\" %s been confirmed!", quantity, ticketType, noun, event.Name, verb),
		RelatedEventID: &eventID,
	}
}
