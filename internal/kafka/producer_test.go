package kafka

import (
	"context"
	"testing"

	"github.com/kmercart/kmercart-api/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProducerPublishAfterClose(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, 1, zap.NewNop())
	p.Close()
	p.Close()

	env, err := events.NewEnvelope(events.EventOrderCreated, "kmercart-api", "o-1", "", events.OrderCreatedPayload{OrderID: "o-1"})
	require.NoError(t, err)
	err = p.Publish(context.Background(), events.TopicOrderCreated, env)
	assert.ErrorIs(t, err, events.ErrClosed)
}
