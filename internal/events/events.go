package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventStockLow           = "StockLow"
	EventReviewCreated      = "ReviewCreated"
	EventPayoutProcessed    = "PayoutProcessed"
)

type Envelope struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	EventVersion  int             `json:"eventVersion"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"traceId,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"` // order id or product id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload in a version 1 envelope.
func NewEnvelope(eventType, producer, correlationID, traceID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// TraceFrom returns the request id of an HTTP request context, used as the
// trace id of events the request causes.
func TraceFrom(ctx context.Context) string { return middleware.GetReqID(ctx) }

// Publisher hands an envelope to the bus. Implementations must not block
// the caller on broker I/O.
type Publisher interface {
	Publish(ctx context.Context, topic string, env Envelope) error
}

// ErrClosed is returned by Publish after the publisher has been closed.
var ErrClosed = errors.New("events: publisher closed")

// ---- payloads ----

type OrderLine struct {
	ProductID string `json:"productId"`
	VendorID  string `json:"vendorId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Total     int64  `json:"total"`
}

type OrderCreatedPayload struct {
	OrderID     string      `json:"orderId"`
	OrderNumber string      `json:"orderNumber"`
	CustomerID  string      `json:"customerId"`
	Items       []OrderLine `json:"items"`
	Total       int64       `json:"total"`
	Currency    string      `json:"currency"`
}

type OrderStatusChangedPayload struct {
	OrderID        string   `json:"orderId"`
	OrderNumber    string   `json:"orderNumber"`
	CustomerID     string   `json:"customerId"`
	VendorIDs      []string `json:"vendorIds"`
	From           string   `json:"from"`
	To             string   `json:"to"`
	TrackingNumber string   `json:"trackingNumber,omitempty"`
	Note           string   `json:"note,omitempty"`
}

type StockLowPayload struct {
	ProductID string `json:"productId"`
	VendorID  string `json:"vendorId"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Stock     int    `json:"stock"`
	Threshold int    `json:"threshold"`
}

type ReviewCreatedPayload struct {
	ReviewID    string `json:"reviewId"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	VendorID    string `json:"vendorId"`
	Rating      int    `json:"rating"`
}

type PayoutProcessedPayload struct {
	PayoutID      string `json:"payoutId"`
	VendorID      string `json:"vendorId"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId,omitempty"`
}
