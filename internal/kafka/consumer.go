package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/IBM/sarama"

	"ticketing-engine/internal/logger"
	"ticketing-engine/internal/models"
)

// ScanMessage is a gate scan forwarded by a scanner device. Either QRCode or
// TicketNumber must be set; QRCode wins when both are.
type ScanMessage struct {
	QRCode       string `json:"qr_code"`
	TicketNumber string `json:"ticket_number"`
	EventID      *int64 `json:"event_id,omitempty"`
	Gate         string `json:"gate"`
}

type ScanProcessor interface {
	ScanTicket(ctx context.Context, qrCode, gate string) (*models.ScanResult, error)
	VerifyTicketByNumber(ctx context.Context, ticketNumber string, eventID *int64, gate string) (*models.ScanResult, error)
}

type ScanConsumer struct {
	consumer sarama.ConsumerGroup
	topics   []string
	log      *logger.Logger
}

func NewScanConsumer(brokers []string, groupID, topic string, log *logger.Logger) (*ScanConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	consumer, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	log.LogKafka("CONNECTED", topic, fmt.Sprintf("Consumer group %s joined", groupID))
	return &ScanConsumer{consumer: consumer, topics: []string{topic}, log: log}, nil
}

// Run consumes scans until ctx is cancelled.
func (c *ScanConsumer) Run(ctx context.Context, processor ScanProcessor) error {
	handler := &ScanHandler{Processor: processor, Log: c.log}

	for {
		if err := c.consumer.Consume(ctx, c.topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.log.Error("KAFKA", fmt.Sprintf("Error consuming messages: %v", err))
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *ScanConsumer) Close() error {
	return c.consumer.Close()
}

// ScanHandler is the sarama.ConsumerGroupHandler for scan messages.
type ScanHandler struct {
	Processor ScanProcessor
	Log       *logger.Logger
}

func (h *ScanHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *ScanHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *ScanHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := h.handle(session.Context(), message); err != nil {
			// Logged and skipped. Marking a later offset on this partition
			// commits past it, so the scan is not redelivered.
			h.Log.Error("KAFKA", fmt.Sprintf("Failed to process scan at offset %d: %v", message.Offset, err))
			continue
		}
		session.MarkMessage(message, "")
	}
	return nil
}

func (h *ScanHandler) handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	var scan ScanMessage
	if err := json.Unmarshal(message.Value, &scan); err != nil {
		h.Log.Warn("KAFKA", fmt.Sprintf("Dropping malformed scan message: %v", err))
		return nil
	}

	var (
		result *models.ScanResult
		err    error
	)
	switch {
	case strings.TrimSpace(scan.QRCode) != "":
		result, err = h.Processor.ScanTicket(ctx, scan.QRCode, scan.Gate)
	case strings.TrimSpace(scan.TicketNumber) != "":
		result, err = h.Processor.VerifyTicketByNumber(ctx, scan.TicketNumber, scan.EventID, scan.Gate)
	default:
		h.Log.Warn("KAFKA", "Dropping scan message without qr_code or ticket_number")
		return nil
	}
	if err != nil {
		return err
	}

	h.Log.LogKafka("CONSUMED", message.Topic, fmt.Sprintf("Scan at %s: %s", result.Gate, result.Status))
	return nil
}
