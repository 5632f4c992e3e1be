package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketing-engine/internal/logger"
	"ticketing-engine/internal/models"
)

func TestPublishNotification(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, config)

	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var n models.Notification
		if err := json.Unmarshal(val, &n); err != nil {
			return err
		}
		if n.Title != "Ticket Purchased" || n.Kind != models.NotifySuccess {
			return errors.New("unexpected notification payload")
		}
		return nil
	})

	p := NewProducerFromSync(sp, "ticket-notifications", logger.Nop())
	err := p.PublishNotification(context.Background(), &models.Notification{
		UserID: 3,
		Kind:   models.NotifySuccess,
		Title:  "Ticket Purchased",
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestPublishNotificationFailure(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, config)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerFromSync(sp, "ticket-notifications", logger.Nop())
	err := p.PublishNotification(context.Background(), &models.Notification{UserID: 3})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestMockModeProducerOnlyLogs(t *testing.T) {
	p, err := NewProducer(nil, "ticket-notifications", true, logger.Nop())
	require.NoError(t, err)

	assert.NoError(t, p.PublishNotification(context.Background(), &models.Notification{UserID: 1}))
	assert.NoError(t, p.Close())
}
