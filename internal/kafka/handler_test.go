package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ticketing-engine/internal/logger"
	"ticketing-engine/internal/models"
)

type MockScanProcessor struct {
	mock.Mock
}

func (m *MockScanProcessor) ScanTicket(ctx context.Context, qrCode, gate string) (*models.ScanResult, error) {
	args := m.Called(qrCode, gate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScanResult), args.Error(1)
}

func (m *MockScanProcessor) VerifyTicketByNumber(ctx context.Context, ticketNumber string, eventID *int64, gate string) (*models.ScanResult, error) {
	args := m.Called(ticketNumber, eventID, gate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScanResult), args.Error(1)
}

type MockConsumerGroupSession struct {
	mock.Mock
}

func (m *MockConsumerGroupSession) Claims() map[string][]int32 {
	args := m.Called()
	return args.Get(0).(map[string][]int32)
}

func (m *MockConsumerGroupSession) MemberID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConsumerGroupSession) GenerationID() int32 {
	args := m.Called()
	return int32(args.Int(0))
}

func (m *MockConsumerGroupSession) MarkOffset(topic string, partition int32, offset int64, metadata string) {
	m.Called(topic, partition, offset, metadata)
}

func (m *MockConsumerGroupSession) Commit() {
	m.Called()
}

func (m *MockConsumerGroupSession) ResetOffset(topic string, partition int32, offset int64, metadata string) {
	m.Called(topic, partition, offset, metadata)
}

func (m *MockConsumerGroupSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	m.Called(msg, metadata)
}

func (m *MockConsumerGroupSession) Context() context.Context {
	args := m.Called()
	return args.Get(0).(context.Context)
}

type MockConsumerGroupClaim struct {
	mock.Mock
}

func (m *MockConsumerGroupClaim) Topic() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConsumerGroupClaim) Partition() int32 {
	args := m.Called()
	return int32(args.Int(0))
}

func (m *MockConsumerGroupClaim) InitialOffset() int64 {
	args := m.Called()
	return int64(args.Int(0))
}

func (m *MockConsumerGroupClaim) HighWaterMarkOffset() int64 {
	args := m.Called()
	return int64(args.Int(0))
}

func (m *MockConsumerGroupClaim) Messages() <-chan *sarama.ConsumerMessage {
	args := m.Called()
	return args.Get(0).(chan *sarama.ConsumerMessage)
}

func scanMessage(t *testing.T, offset int64, scan ScanMessage) *sarama.ConsumerMessage {
	t.Helper()
	data, err := json.Marshal(scan)
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: "ticket-scans", Offset: offset, Value: data}
}

func TestScanHandlerConsumeClaim(t *testing.T) {
	eventID := int64(4)
	byQR := scanMessage(t, 0, ScanMessage{QRCode: "qr-abc", Gate: "North"})
	byNumber := scanMessage(t, 1, ScanMessage{TicketNumber: "VIP-000012", EventID: &eventID})
	malformed := &sarama.ConsumerMessage{Topic: "ticket-scans", Offset: 2, Value: []byte("{not json")}
	empty := scanMessage(t, 3, ScanMessage{Gate: "North"})
	failing := scanMessage(t, 4, ScanMessage{QRCode: "qr-down"})

	processor := new(MockScanProcessor)
	processor.On("ScanTicket", "qr-abc", "North").
		Return(&models.ScanResult{Status: models.ScanValid, Gate: "North"}, nil)
	processor.On("VerifyTicketByNumber", "VIP-000012", &eventID, "").
		Return(&models.ScanResult{Status: models.ScanDuplicate, Gate: "Main Gate"}, nil)
	processor.On("ScanTicket", "qr-down", "").Return(nil, errors.New("database unavailable"))

	session := new(MockConsumerGroupSession)
	session.On("Context").Return(context.Background())
	session.On("MarkMessage", byQR, "").Return()
	session.On("MarkMessage", byNumber, "").Return()
	session.On("MarkMessage", malformed, "").Return()
	session.On("MarkMessage", empty, "").Return()

	msgChan := make(chan *sarama.ConsumerMessage, 5)
	for _, m := range []*sarama.ConsumerMessage{byQR, byNumber, malformed, empty, failing} {
		msgChan <- m
	}
	close(msgChan)

	claim := new(MockConsumerGroupClaim)
	claim.On("Messages").Return(msgChan)

	handler := &ScanHandler{Processor: processor, Log: logger.Nop()}
	require.NoError(t, handler.ConsumeClaim(session, claim))

	processor.AssertExpectations(t)
	session.AssertExpectations(t)
	session.AssertNotCalled(t, "MarkMessage", failing, "")
	claim.AssertExpectations(t)
}

func TestScanHandlerSkipsFailedScanAndKeepsConsuming(t *testing.T) {
	failing := scanMessage(t, 10, ScanMessage{QRCode: "qr-down"})
	next := scanMessage(t, 11, ScanMessage{QRCode: "qr-next", Gate: "East"})

	processor := new(MockScanProcessor)
	processor.On("ScanTicket", "qr-down", "").Return(nil, errors.New("database unavailable"))
	processor.On("ScanTicket", "qr-next", "East").
		Return(&models.ScanResult{Status: models.ScanValid, Gate: "East"}, nil)

	session := new(MockConsumerGroupSession)
	session.On("Context").Return(context.Background())
	session.On("MarkMessage", next, "").Return()

	msgChan := make(chan *sarama.ConsumerMessage, 2)
	msgChan <- failing
	msgChan <- next
	close(msgChan)

	claim := new(MockConsumerGroupClaim)
	claim.On("Messages").Return(msgChan)

	handler := &ScanHandler{Processor: processor, Log: logger.Nop()}
	require.NoError(t, handler.ConsumeClaim(session, claim))

	processor.AssertExpectations(t)
	session.AssertExpectations(t)
	session.AssertNotCalled(t, "MarkMessage", failing, "")
}
