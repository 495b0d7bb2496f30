package notifications

import (
	"context"
	"fmt"
	"sync"

	"github.com/kmercart/kmercart-api/internal/events"
	kafkax "github.com/kmercart/kmercart-api/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Deduper remembers processed event ids. MarkOnce reports true the first
// time it sees key; Release forgets a key whose work failed.
type Deduper interface {
	MarkOnce(ctx context.Context, service, key string) (bool, error)
	Release(ctx context.Context, service, key string) error
}

// Consumer turns bus events into stored notifications.
type Consumer struct {
	Service     *Service
	Dedup       Deduper
	ServiceName string
	Log         *zap.Logger
}

// HandleMessage is the kafka consumer handler.
func (c *Consumer) HandleMessage(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		// a poison message is logged and committed
		c.Log.Error("drop undecodable message", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	return c.HandleEvent(ctx, m.Topic, env)
}

// HandleEvent is also subscribed to the in-process bus. Each notification
// of an event is deduplicated on its own, so a retry after a partial failure
// creates only the ones still missing.
func (c *Consumer) HandleEvent(ctx context.Context, topic string, env events.Envelope) error {
	var inputs []CreateInput
	var err error
	switch env.EventType {
	case events.EventOrderCreated:
		inputs, err = orderCreated(env)
	case events.EventOrderStatusChanged:
		inputs, err = orderStatusChanged(env)
	case events.EventStockLow:
		inputs, err = stockLow(env)
	case events.EventReviewCreated:
		inputs, err = reviewCreated(env)
	case events.EventPayoutProcessed:
		inputs, err = payoutProcessed(env)
	default:
		return nil
	}
	if err != nil {
		c.Log.Error("drop undecodable payload", zap.String("topic", topic), zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	for i, in := range inputs {
		if err := c.create(ctx, fmt.Sprintf("%s:%d", env.EventID, i), in); err != nil {
			return fmt.Errorf("create %s notification for %s: %w", in.Type, in.UserID, err)
		}
	}
	return nil
}

func (c *Consumer) create(ctx context.Context, key string, in CreateInput) error {
	if c.Dedup == nil {
		_, err := c.Service.Create(ctx, in)
		return err
	}
	first, err := c.Dedup.MarkOnce(ctx, c.ServiceName, key)
	if err != nil || !first {
		return err
	}
	if _, err := c.Service.Create(ctx, in); err != nil {
		if rerr := c.Dedup.Release(ctx, c.ServiceName, key); rerr != nil {
			c.Log.Warn("release dedup key", zap.String("key", key), zap.Error(rerr))
		}
		return err
	}
	return nil
}

func orderCreated(env events.Envelope) ([]CreateInput, error) {
	p, err := kafkax.UnwrapPayload[events.OrderCreatedPayload](env.Payload)
	if err != nil {
		return nil, err
	}
	data := map[string]any{"orderId": p.OrderID, "orderNumber": p.OrderNumber}
	out := []CreateInput{{
		UserID:  p.CustomerID,
		Type:    TypeOrderPlaced,
		Title:   "Order placed",
		Message: fmt.Sprintf("Your order %s has been placed. Total: %d %s.", p.OrderNumber, p.Total, p.Currency),
		Data:    data,
		Link:    "/orders/" + p.OrderID,
	}}

	// one notification per vendor with that vendor's share of the order
	type share struct {
		units int
		total int64
	}
	shares := map[string]*share{}
	var vendorOrder []string
	for _, it := range p.Items {
		sh, ok := shares[it.VendorID]
		if !ok {
			sh = &share{}
			shares[it.VendorID] = sh
			vendorOrder = append(vendorOrder, it.VendorID)
		}
		sh.units += it.Quantity
		sh.total += it.Total
	}
	for _, vid := range vendorOrder {
		sh := shares[vid]
		out = append(out, CreateInput{
			UserID:  vid,
			Type:    TypeOrderPlaced,
			Title:   "New order received",
			Message: fmt.Sprintf("Order %s includes %d of your items worth %d %s.", p.OrderNumber, sh.units, sh.total, p.Currency),
			Data:    data,
			Link:    "/vendor/orders/" + p.OrderID,
		})
	}
	return out, nil
}

func orderStatusChanged(env events.Envelope) ([]CreateInput, error) {
	p, err := kafkax.UnwrapPayload[events.OrderStatusChangedPayload](env.Payload)
	if err != nil {
		return nil, err
	}
	data := map[string]any{"orderId": p.OrderID, "orderNumber": p.OrderNumber, "status": p.To}
	link := "/orders/" + p.OrderID
	switch p.To {
	case "shipped":
		msg := fmt.Sprintf("Your order %s is on its way.", p.OrderNumber)
		if p.TrackingNumber != "" {
			msg = fmt.Sprintf("Your order %s is on its way. Tracking number: %s.", p.OrderNumber, p.TrackingNumber)
			data["trackingNumber"] = p.TrackingNumber
		}
		return []CreateInput{{UserID: p.CustomerID, Type: TypeOrderShipped, Title: "Order shipped", Message: msg, Data: data, Link: link}}, nil
	case "delivered":
		return []CreateInput{{
			UserID:  p.CustomerID,
			Type:    TypeOrderDelivered,
			Title:   "Order delivered",
			Message: fmt.Sprintf("Your order %s has been delivered.", p.OrderNumber),
			Data:    data,
			Link:    link,
		}}, nil
	case "cancelled":
		out := []CreateInput{{
			UserID:  p.CustomerID,
			Type:    TypeAccountUpdate,
			Title:   "Order cancelled",
			Message: fmt.Sprintf("Order %s has been cancelled.", p.OrderNumber),
			Data:    data,
			Link:    link,
		}}
		for _, vid := range p.VendorIDs {
			out = append(out, CreateInput{
				UserID:  vid,
				Type:    TypeAccountUpdate,
				Title:   "Order cancelled",
				Message: fmt.Sprintf("Order %s has been cancelled; its stock is back on your products.", p.OrderNumber),
				Data:    data,
				Link:    "/vendor/orders/" + p.OrderID,
			})
		}
		return out, nil
	}
	return nil, nil
}

func stockLow(env events.Envelope) ([]CreateInput, error) {
	p, err := kafkax.UnwrapPayload[events.StockLowPayload](env.Payload)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("%s (SKU %s) is down to %d units.", p.Name, p.SKU, p.Stock)
	if p.Stock == 0 {
		msg = fmt.Sprintf("%s (SKU %s) is out of stock.", p.Name, p.SKU)
	}
	return []CreateInput{{
		UserID:  p.VendorID,
		Type:    TypeLowStock,
		Title:   "Low stock",
		Message: msg,
		Data:    map[string]any{"productId": p.ProductID, "stock": p.Stock, "threshold": p.Threshold},
		Link:    "/vendor/products/" + p.ProductID,
	}}, nil
}

func reviewCreated(env events.Envelope) ([]CreateInput, error) {
	p, err := kafkax.UnwrapPayload[events.ReviewCreatedPayload](env.Payload)
	if err != nil {
		return nil, err
	}
	return []CreateInput{{
		UserID:  p.VendorID,
		Type:    TypeNewReview,
		Title:   "New review",
		Message: fmt.Sprintf("%s received a %d-star review.", p.ProductName, p.Rating),
		Data:    map[string]any{"productId": p.ProductID, "reviewId": p.ReviewID, "rating": p.Rating},
		Link:    "/products/" + p.ProductID,
	}}, nil
}

func payoutProcessed(env events.Envelope) ([]CreateInput, error) {
	p, err := kafkax.UnwrapPayload[events.PayoutProcessedPayload](env.Payload)
	if err != nil {
		return nil, err
	}
	title := "Payout completed"
	msg := fmt.Sprintf("Your payout of %d %s has been sent.", p.Amount, p.Currency)
	if p.Status == "failed" {
		title = "Payout failed"
		msg = fmt.Sprintf("Your payout of %d %s could not be processed.", p.Amount, p.Currency)
	}
	return []CreateInput{{
		UserID:  p.VendorID,
		Type:    TypePayoutProcessed,
		Title:   title,
		Message: msg,
		Data:    map[string]any{"payoutId": p.PayoutID, "status": p.Status, "transactionId": p.TransactionID},
		Link:    "/vendor/payouts",
	}}, nil
}

// MemoryDedup is the Deduper used without redis.
type MemoryDedup struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func (d *MemoryDedup) MarkOnce(_ context.Context, service, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]struct{}{}
	}
	k := service + ":" + key
	if _, ok := d.seen[k]; ok {
		return false, nil
	}
	d.seen[k] = struct{}{}
	return true, nil
}

func (d *MemoryDedup) Release(_ context.Context, service, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, service+":"+key)
	return nil
}
