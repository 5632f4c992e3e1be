package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"

	"ticketing-engine/internal/logger"
	"ticketing-engine/internal/models"
)

// Producer publishes user notifications. In mock mode messages are only logged.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	mockMode bool
	log      *logger.Logger
}

func NewProducer(brokers []string, topic string, mockMode bool, log *logger.Logger) (*Producer, error) {
	if mockMode {
		log.LogKafka("MOCK_MODE", topic, "Running in mock mode - no actual Kafka connection")
		return &Producer{topic: topic, mockMode: true, log: log}, nil
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	log.LogKafka("CONNECTED", topic, fmt.Sprintf("Connected to Kafka brokers: %v", brokers))
	return NewProducerFromSync(producer, topic, log), nil
}

func NewProducerFromSync(producer sarama.SyncProducer, topic string, log *logger.Logger) *Producer {
	return &Producer{producer: producer, topic: topic, log: log}
}

// PublishNotification sends n keyed by user id so one user's notifications stay ordered.
func (p *Producer) PublishNotification(ctx context.Context, n *models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if p.mockMode {
		p.log.LogKafka("MOCK_PUBLISH", p.topic, fmt.Sprintf("Mock publishing %q for user %d", n.Title, n.UserID))
		p.log.LogKafka("MOCK_DATA", p.topic, string(data))
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(n.UserID, 10)),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.log.Error("KAFKA", fmt.Sprintf("Failed to send message to topic %s: %v", p.topic, err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.log.LogKafka("PUBLISHED", p.topic, fmt.Sprintf("Message sent to partition %d at offset %d for user %d", partition, offset, n.UserID))
	return nil
}

func (p *Producer) Close() error {
	if p.mockMode {
		p.log.LogKafka("MOCK_CLOSE", p.topic, "Mock producer closed")
		return nil
	}

	if p.producer != nil {
		p.log.LogKafka("CLOSING", p.topic, "Closing Kafka producer connection")
		return p.producer.Close()
	}
	return nil
}
