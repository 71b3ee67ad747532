package event

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.Called(ctx, msgs).Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	update, alert := updatedEvent(t), alertEvent(t)

	writer := new(mockWriter)
	var written []kafka.Message
	writer.On("WriteMessages", ctx, mock.Anything).
		Run(func(args mock.Arguments) { written = args.Get(1).([]kafka.Message) }).
		Return(nil).Once()

	p := NewKafkaPublisher(writer, NewInventorySerializer(), "stocksync", zap.NewNop())
	require.NoError(t, p.Publish(ctx, update, alert))

	require.Len(t, written, 2)
	assert.Equal(t, update.AggregateID().String(), string(written[0].Key))
	assert.Equal(t, inventory.EventTypeInventoryUpdated, headerValue(written[0], "event_type"))
	assert.Equal(t, inventory.EventTypeLowStockAlert, headerValue(written[1], "event_type"))
	assert.Equal(t, "stocksync", headerValue(written[1], "producer"))

	decoded, err := NewInventorySerializer().Decode(written[0].Value)
	require.NoError(t, err)
	assert.Equal(t, update.EventID(), decoded.EventID())
	writer.AssertExpectations(t)
}

func TestKafkaPublisher_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("write failure is returned", func(t *testing.T) {
		writer := new(mockWriter)
		writer.On("WriteMessages", ctx, mock.Anything).Return(errors.New("leader not available"))

		p := NewKafkaPublisher(writer, NewInventorySerializer(), "stocksync", zap.NewNop())
		err := p.Publish(ctx, updatedEvent(t))
		assert.ErrorContains(t, err, "leader not available")
	})

	t.Run("nothing to write", func(t *testing.T) {
		writer := new(mockWriter)
		p := NewKafkaPublisher(writer, NewInventorySerializer(), "stocksync", zap.NewNop())
		require.NoError(t, p.Publish(ctx))
		writer.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
	})

	t.Run("close delegates to writer", func(t *testing.T) {
		writer := new(mockWriter)
		writer.On("Close").Return(nil).Once()
		p := NewKafkaPublisher(writer, NewInventorySerializer(), "stocksync", zap.NewNop())
		require.NoError(t, p.Close())
		writer.AssertExpectations(t)
	})
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter(KafkaConfig{Brokers: []string{"kafka-1:9092"}, Topic: "inventory-events"})
	assert.Equal(t, "inventory-events", w.Topic)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	assert.Equal(t, "kafka-1:9092", w.Addr.String())
}
