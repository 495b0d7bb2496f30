package kafka

import (
	"testing"

	"github.com/kmercart/kmercart-api/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTripKeepsPayload(t *testing.T) {
	env, err := events.NewEnvelope(events.EventOrderCreated, "kmercart-api", "o-1", "", events.OrderCreatedPayload{
		OrderID:     "o-1",
		OrderNumber: "KC-20260101-ABC123",
		Items:       []events.OrderLine{{ProductID: "p-1", VendorID: "v-1", Quantity: 2, Total: 3000}},
		Total:       3245,
	})
	require.NoError(t, err)

	b, err := MarshalEnvelope(env)
	require.NoError(t, err)

	back, err := UnmarshalEnvelope(b)
	require.NoError(t, err)
	assert.Equal(t, env.EventID, back.EventID)

	p, err := UnwrapPayload[events.OrderCreatedPayload](back.Payload)
	require.NoError(t, err)
	assert.Equal(t, "v-1", p.Items[0].VendorID)
	assert.Equal(t, int64(3245), p.Total)
}

func TestUnmarshalEnvelopeRejectsGarbage(t *testing.T) {
	_, err := UnmarshalEnvelope([]byte("not json"))
	require.Error(t, err)
}

func TestLaneForKeepsKeysTogether(t *testing.T) {
	assert.Equal(t, 0, laneFor(nil, 8))
	assert.Equal(t, 0, laneFor([]byte("o-1"), 1))

	first := laneFor([]byte("o-1"), 8)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, laneFor([]byte("o-1"), 8))
	}
	for _, k := range []string{"o-1", "o-2", "o-3", "p-77"} {
		lane := laneFor([]byte(k), 4)
		assert.GreaterOrEqual(t, lane, 0)
		assert.Less(t, lane, 4)
	}
}
