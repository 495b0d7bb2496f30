package events

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalBusDeliversInOrder(t *testing.T) {
	bus := NewLocalBus(zap.NewNop(), 16)

	var mu sync.Mutex
	var got []string
	bus.Subscribe(func(_ context.Context, topic string, env Envelope) error {
		mu.Lock()
		got = append(got, topic+":"+env.CorrelationID)
		mu.Unlock()
		return nil
	})
	bus.Start(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		env, err := NewEnvelope(EventOrderCreated, "test", id, "", OrderCreatedPayload{OrderID: id})
		require.NoError(t, err)
		require.NoError(t, bus.Publish(context.Background(), TopicOrderCreated, env))
	}
	bus.Close()
	bus.WaitClosed()

	assert.Equal(t, []string{"order.created:a", "order.created:b", "order.created:c"}, got)
}

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(EventStockLow, "kmercart-api", "p1", "req-1", StockLowPayload{ProductID: "p1", Stock: 2})
	require.NoError(t, err)

	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "req-1", env.TraceID)
	assert.JSONEq(t, `{"productId":"p1","vendorId":"","name":"","sku":"","stock":2,"threshold":0}`, string(env.Payload))
}

func TestRecorderTopic(t *testing.T) {
	var r Recorder
	_ = r.Publish(context.Background(), TopicStockLow, Envelope{EventID: "1"})
	_ = r.Publish(context.Background(), TopicOrderCreated, Envelope{EventID: "2"})

	require.Len(t, r.Topic(TopicStockLow), 1)
	assert.Equal(t, "1", r.Topic(TopicStockLow)[0].EventID)
}

func TestLocalBusPublishAfterClose(t *testing.T) {
	bus := NewLocalBus(zap.NewNop(), 4)
	bus.Start(context.Background())
	bus.Close()
	bus.Close()
	bus.WaitClosed()

	env, err := NewEnvelope(EventOrderCreated, "test", "o-1", "", OrderCreatedPayload{OrderID: "o-1"})
	require.NoError(t, err)
	assert.ErrorIs(t, bus.Publish(context.Background(), TopicOrderCreated, env), ErrClosed)
}
