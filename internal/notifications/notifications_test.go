package notifications_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/events"
	kafkax "github.com/kmercart/kmercart-api/internal/kafka"
	"github.com/kmercart/kmercart-api/internal/memstore"
	"github.com/kmercart/kmercart-api/internal/notifications"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	svc      *notifications.Service
	hub      *notifications.Hub
	consumer *notifications.Consumer
	created  []notifications.Type
}

func newFixture() *fixture {
	f := &fixture{hub: notifications.NewHub(4)}
	f.svc = &notifications.Service{
		Store:       memstore.New(),
		Broadcaster: f.hub,
		Log:         zap.NewNop(),
		Created:     func(t notifications.Type) { f.created = append(f.created, t) },
	}
	f.consumer = &notifications.Consumer{
		Service:     f.svc,
		Dedup:       &notifications.MemoryDedup{},
		ServiceName: "test",
		Log:         zap.NewNop(),
	}
	return f
}

func (f *fixture) inbox(t *testing.T, userID string) []notifications.Notification {
	t.Helper()
	list, _, err := f.svc.List(context.Background(), userID, false, 1, 50)
	require.NoError(t, err)
	return list
}

func envelope(t *testing.T, eventType string, payload any) events.Envelope {
	t.Helper()
	env, err := events.NewEnvelope(eventType, "test", "k", "", payload)
	require.NoError(t, err)
	return env
}

func TestCreateStoresAndBroadcasts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	feed, unsubscribe, err := f.svc.Subscribe(ctx, "u1")
	require.NoError(t, err)
	defer unsubscribe()

	n, err := f.svc.Create(ctx, notifications.CreateInput{UserID: "u1", Type: notifications.TypePromotion, Title: "Sale"})
	require.NoError(t, err)

	select {
	case got := <-feed:
		assert.Equal(t, n.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("notification was not pushed")
	}
	assert.Equal(t, []notifications.Type{notifications.TypePromotion}, f.created)

	_, err = f.svc.Create(ctx, notifications.CreateInput{UserID: "u1"})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestReadState(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	var ids []string
	for _, title := range []string{"one", "two", "three"} {
		n, err := f.svc.Create(ctx, notifications.CreateInput{UserID: "u1", Type: notifications.TypePromotion, Title: title})
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	count, err := f.svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	n, err := f.svc.MarkRead(ctx, "u1", ids[0])
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	require.NotNil(t, n.ReadAt)

	_, err = f.svc.MarkRead(ctx, "u2", ids[1])
	require.ErrorIs(t, err, apperr.ErrNotFound)

	unread, info, err := f.svc.List(ctx, "u1", true, 1, 10)
	require.NoError(t, err)
	assert.Len(t, unread, 2)
	assert.Equal(t, 2, info.Total)

	updated, err := f.svc.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	count, err = f.svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSubscribeWithoutBroadcaster(t *testing.T) {
	svc := &notifications.Service{Store: memstore.New()}
	_, _, err := svc.Subscribe(context.Background(), "u1")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestHub(t *testing.T) {
	hub := notifications.NewHub(1)
	ctx := context.Background()
	a, cancelA, err := hub.Subscribe(ctx, "a")
	require.NoError(t, err)
	b, cancelB, err := hub.Subscribe(ctx, "b")
	require.NoError(t, err)
	defer cancelB()

	require.NoError(t, hub.Broadcast(ctx, notifications.Notification{ID: "1", UserID: "a"}))
	// the buffer holds one; the second is dropped instead of blocking
	require.NoError(t, hub.Broadcast(ctx, notifications.Notification{ID: "2", UserID: "a"}))

	got := <-a
	assert.Equal(t, "1", got.ID)
	assert.Empty(t, b)

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)
	require.NoError(t, hub.Broadcast(ctx, notifications.Notification{ID: "3", UserID: "a"}))
}

func TestConsumerOrderCreated(t *testing.T) {
	f := newFixture()
	env := envelope(t, events.EventOrderCreated, events.OrderCreatedPayload{
		OrderID:     "o1",
		OrderNumber: "KC-20260501-ABC123",
		CustomerID:  "c1",
		Currency:    "CFA",
		Total:       9000,
		Items: []events.OrderLine{
			{ProductID: "p1", VendorID: "v1", Quantity: 2, Total: 4000},
			{ProductID: "p2", VendorID: "v2", Quantity: 1, Total: 3000},
			{ProductID: "p3", VendorID: "v1", Quantity: 1, Total: 1000},
		},
	})
	require.NoError(t, f.consumer.HandleEvent(context.Background(), events.TopicOrderCreated, env))

	customer := f.inbox(t, "c1")
	require.Len(t, customer, 1)
	assert.Equal(t, notifications.TypeOrderPlaced, customer[0].Type)
	assert.Contains(t, customer[0].Message, "KC-20260501-ABC123")
	assert.Equal(t, "/orders/o1", customer[0].Link)

	v1 := f.inbox(t, "v1")
	require.Len(t, v1, 1)
	assert.Equal(t, "Order KC-20260501-ABC123 includes 3 of your items worth 5000 CFA.", v1[0].Message)
	assert.Len(t, f.inbox(t, "v2"), 1)
}

func TestConsumerDeduplicates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	env := envelope(t, events.EventReviewCreated, events.ReviewCreatedPayload{
		ReviewID: "r1", ProductID: "p1", ProductName: "Mask", VendorID: "v1", Rating: 4,
	})

	require.NoError(t, f.consumer.HandleEvent(ctx, events.TopicReviewCreated, env))
	require.NoError(t, f.consumer.HandleEvent(ctx, events.TopicReviewCreated, env))

	list := f.inbox(t, "v1")
	require.Len(t, list, 1)
	assert.Equal(t, "Mask received a 4-star review.", list[0].Message)
}

// flakyStore fails the nth notification write once.
type flakyStore struct {
	*memstore.Store
	failAt int
	writes int
}

func (s *flakyStore) CreateNotification(ctx context.Context, n *notifications.Notification) error {
	s.writes++
	if s.writes == s.failAt {
		return errors.New("db down")
	}
	return s.Store.CreateNotification(ctx, n)
}

func TestConsumerRetryAfterPartialFailure(t *testing.T) {
	f := newFixture()
	st := &flakyStore{Store: memstore.New(), failAt: 2}
	f.svc.Store = st
	ctx := context.Background()

	env := envelope(t, events.EventOrderCreated, events.OrderCreatedPayload{
		OrderID:     "o1",
		OrderNumber: "KC-20260501-ABC123",
		CustomerID:  "c1",
		Currency:    "CFA",
		Total:       7000,
		Items: []events.OrderLine{
			{ProductID: "p1", VendorID: "v1", Quantity: 2, Total: 4000},
			{ProductID: "p2", VendorID: "v2", Quantity: 1, Total: 3000},
		},
	})
	require.Error(t, f.consumer.HandleEvent(ctx, events.TopicOrderCreated, env))
	require.NoError(t, f.consumer.HandleEvent(ctx, events.TopicOrderCreated, env))
	// a redelivery after success changes nothing
	require.NoError(t, f.consumer.HandleEvent(ctx, events.TopicOrderCreated, env))

	for _, user := range []string{"c1", "v1", "v2"} {
		assert.Len(t, f.inbox(t, user), 1, user)
	}
}

func TestConsumerStatusChanges(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	shipped := envelope(t, events.EventOrderStatusChanged, events.OrderStatusChangedPayload{
		OrderID: "o1", OrderNumber: "KC-1", CustomerID: "c1", VendorIDs: []string{"v1"},
		From: "confirmed", To: "shipped", TrackingNumber: "TRK-9",
	})
	require.NoError(t, f.consumer.HandleEvent(ctx, events.TopicOrderStatusChanged, shipped))

	cancelled := envelope(t, events.EventOrderStatusChanged, events.OrderStatusChangedPayload{
		OrderID: "o2", OrderNumber: "KC-2", CustomerID: "c1", VendorIDs: []string{"v1", "v2"},
		From: "pending", To: "cancelled",
	})
	require.NoError(t, f.consumer.HandleEvent(ctx, events.TopicOrderStatusChanged, cancelled))

	// confirmations are not announced
	confirmed := envelope(t, events.EventOrderStatusChanged, events.OrderStatusChangedPayload{
		OrderID: "o3", OrderNumber: "KC-3", CustomerID: "c1", From: "pending", To: "confirmed",
	})
	require.NoError(t, f.consumer.HandleEvent(ctx, events.TopicOrderStatusChanged, confirmed))

	customer := f.inbox(t, "c1")
	require.Len(t, customer, 2)
	var types []notifications.Type
	for _, n := range customer {
		types = append(types, n.Type)
	}
	assert.ElementsMatch(t, []notifications.Type{notifications.TypeOrderShipped, notifications.TypeAccountUpdate}, types)
	assert.Len(t, f.inbox(t, "v1"), 1)
	assert.Len(t, f.inbox(t, "v2"), 1)
}

func TestConsumerStockAndPayout(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	out := envelope(t, events.EventStockLow, events.StockLowPayload{ProductID: "p1", VendorID: "v1", Name: "Mask", SKU: "M-1", Stock: 0, Threshold: 5})
	require.NoError(t, f.consumer.HandleEvent(ctx, events.TopicStockLow, out))

	failed := envelope(t, events.EventPayoutProcessed, events.PayoutProcessedPayload{PayoutID: "po1", VendorID: "v1", Amount: 8500, Currency: "CFA", Status: "failed"})
	require.NoError(t, f.consumer.HandleEvent(ctx, events.TopicPayoutProcessed, failed))

	byType := map[notifications.Type]notifications.Notification{}
	for _, n := range f.inbox(t, "v1") {
		byType[n.Type] = n
	}
	require.Len(t, byType, 2)
	assert.Equal(t, "Mask (SKU M-1) is out of stock.", byType[notifications.TypeLowStock].Message)
	assert.Equal(t, "Payout failed", byType[notifications.TypePayoutProcessed].Title)
}

func TestConsumerDropsBadInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	unknown := envelope(t, "SomethingElse", map[string]string{"a": "b"})
	require.NoError(t, f.consumer.HandleEvent(ctx, "other", unknown))

	garbled := events.Envelope{EventID: "e1", EventType: events.EventStockLow, Payload: []byte(`"not an object"`)}
	require.NoError(t, f.consumer.HandleEvent(ctx, events.TopicStockLow, garbled))

	require.NoError(t, f.consumer.HandleMessage(ctx, kafkago.Message{Topic: events.TopicStockLow, Value: []byte("{")}))
	assert.Empty(t, f.created)
}

func TestConsumerHandleMessage(t *testing.T) {
	f := newFixture()
	env := envelope(t, events.EventStockLow, events.StockLowPayload{ProductID: "p1", VendorID: "v1", Name: "Mask", SKU: "M-1", Stock: 2, Threshold: 5})
	b, err := kafkax.MarshalEnvelope(env)
	require.NoError(t, err)

	require.NoError(t, f.consumer.HandleMessage(context.Background(), kafkago.Message{Topic: events.TopicStockLow, Value: b}))
	list := f.inbox(t, "v1")
	require.Len(t, list, 1)
	assert.Equal(t, "Mask (SKU M-1) is down to 2 units.", list[0].Message)
}
