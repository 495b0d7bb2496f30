package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/cart"
	"github.com/kmercart/kmercart-api/internal/catalog"
	"github.com/kmercart/kmercart-api/internal/events"
	"github.com/kmercart/kmercart-api/internal/paging"
	"github.com/kmercart/kmercart-api/internal/users"
	"go.uber.org/zap"
)

type Store interface {
	// PlaceOrder decrements stock for every item, inserts o and clears the
	// customer's cart in one transaction. Insufficient stock fails the whole
	// order.
	PlaceOrder(ctx context.Context, o *Order) ([]StockLevel, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrders(ctx context.Context, f Filter, p paging.Page) ([]Order, int, error)
	// ChangeStatus applies ch to the locked order and returns it together
	// with the status it had before.
	ChangeStatus(ctx context.Context, id string, ch Change) (Order, Status, error)
	CountOrdersForCustomer(ctx context.Context, customerID string) (int, error)
	// DeliveredOrderWith returns the id of a delivered order of customerID
	// containing productID, or "".
	DeliveredOrderWith(ctx context.Context, customerID, productID string) (string, error)
}

type CartReader interface {
	GetCart(ctx context.Context, userID string) (cart.Cart, error)
}

type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
}

// Observer is told about placed orders and transitions.
type Observer interface {
	OrderPlaced(o Order)
	StatusChanged(from, to Status)
}

type Service struct {
	Store       Store
	Carts       CartReader
	Products    ProductLookup
	Events      events.Publisher
	Observer    Observer
	ServiceName string
	Log         *zap.Logger
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type CheckoutInput struct {
	PaymentMethod   string
	PaymentIntentID string
	ShippingAddress Address
	BillingAddress  *Address
	ShippingCost    int64
	Discount        int64
	Notes           string
}

func addressErrors(prefix string, a Address, needPhone bool, fields map[string]string) {
	req := map[string]string{
		"fullName": a.FullName,
		"street":   a.Street,
		"city":     a.City,
		"state":    a.State,
		"zipCode":  a.ZipCode,
		"country":  a.Country,
	}
	if needPhone {
		req["phone"] = a.Phone
	}
	for name, v := range req {
		if strings.TrimSpace(v) == "" {
			fields[prefix+"."+name] = "is required"
		}
	}
}

// Checkout turns the customer's cart into a pending order.
func (s *Service) Checkout(ctx context.Context, customerID string, in CheckoutInput) (Order, error) {
	fields := map[string]string{}
	addressErrors("shippingAddress", in.ShippingAddress, true, fields)
	if in.BillingAddress != nil {
		addressErrors("billingAddress", *in.BillingAddress, false, fields)
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		fields["paymentMethod"] = "is required"
	}
	if in.ShippingCost < 0 {
		fields["shippingCost"] = "must be 0 or more"
	}
	if in.Discount < 0 {
		fields["discount"] = "must be 0 or more"
	}
	if len(fields) > 0 {
		return Order{}, apperr.Fields("invalid checkout", fields)
	}

	c, err := s.Carts.GetCart(ctx, customerID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Order{}, apperr.NotFound("cart not found")
		}
		return Order{}, err
	}
	if len(c.Items) == 0 {
		return Order{}, apperr.Validation("cart is empty")
	}

	items := make([]Item, 0, len(c.Items))
	for _, line := range c.Items {
		p, err := s.Products.GetProduct(ctx, line.ProductID)
		if errors.Is(err, apperr.ErrNotFound) {
			return Order{}, apperr.Validation("product %s is no longer available", line.ProductID)
		}
		if err != nil {
			return Order{}, err
		}
		if !p.IsActive {
			return Order{}, apperr.Validation("product %s is no longer available", p.Name)
		}
		if p.Stock < line.Quantity {
			return Order{}, apperr.Validation("insufficient stock for %s: %d requested, %d available", p.Name, line.Quantity, p.Stock)
		}
		items = append(items, Item{
			ProductID: p.ID,
			VendorID:  p.VendorID,
			Name:      p.Name,
			Image:     p.Image(),
			Quantity:  line.Quantity,
			Price:     line.Price,
			Total:     LineTotal(line.Price, line.Quantity, 0),
		})
	}

	t := ComputeTotals(items, in.ShippingCost, in.Discount)
	if t.Total < 0 {
		return Order{}, apperr.Fields("invalid checkout", map[string]string{"discount": "exceeds the order amount"})
	}

	now := s.now()
	o := Order{
		ID:              uuid.NewString(),
		OrderNumber:     NewOrderNumber(now),
		CustomerID:      customerID,
		Items:           items,
		Subtotal:        t.Subtotal,
		Tax:             t.Tax,
		TaxRate:         TaxRate(),
		ShippingCost:    t.ShippingCost,
		Discount:        t.Discount,
		Total:           t.Total,
		Currency:        Currency,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		PaymentMethod:   strings.TrimSpace(in.PaymentMethod),
		PaymentIntentID: in.PaymentIntentID,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		Notes:           in.Notes,
		StatusHistory:   []HistoryEntry{{Status: StatusPending, Timestamp: now, Note: "Order placed"}},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	levels, err := s.Store.PlaceOrder(ctx, &o)
	if err != nil {
		return Order{}, err
	}
	s.logInfo("order placed",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("customer_id", customerID),
		zap.Int64("total", o.Total))
	if s.Observer != nil {
		s.Observer.OrderPlaced(o)
	}
	s.publishCreated(ctx, o)
	s.publishLowStock(ctx, levels)
	return o, nil
}

type ListInput struct {
	Status Status
	Page   int
	Limit  int
}

func (s *Service) ListMine(ctx context.Context, customerID string, in ListInput) ([]Order, paging.Info, error) {
	if in.Status != "" && !in.Status.Valid() {
		return nil, paging.Info{}, apperr.Validation("unknown status %q", in.Status)
	}
	p := paging.New(in.Page, in.Limit, 10)
	list, total, err := s.Store.ListOrders(ctx, Filter{CustomerID: customerID, Status: in.Status}, p)
	if err != nil {
		return nil, paging.Info{}, err
	}
	return list, p.Info(total), nil
}

// Get returns the order to its customer or to an admin.
func (s *Service) Get(ctx context.Context, actor users.Actor, id string) (Order, error) {
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.CustomerID != actor.ID && !actor.IsAdmin() {
		return Order{}, apperr.NotFound("order %s not found", id)
	}
	return o, nil
}

// Cancel is the customer's cancellation; only pending or confirmed orders
// qualify. Stock goes back to the products.
func (s *Service) Cancel(ctx context.Context, actor users.Actor, id, reason string) (Order, error) {
	note := strings.TrimSpace(reason)
	if note == "" {
		note = "Cancelled by customer"
	}
	return s.change(ctx, id, Change{
		Status: StatusCancelled,
		Note:   note,
		At:     s.now(),
		Authorize: func(o Order) error {
			if o.CustomerID != actor.ID && !actor.IsAdmin() {
				return apperr.NotFound("order %s not found", id)
			}
			if !o.Status.Cancellable() {
				return apperr.Conflict("order in status %s can no longer be cancelled", o.Status)
			}
			return nil
		},
	})
}

type StatusUpdate struct {
	Status         Status
	TrackingNumber string
	Note           string
}

// UpdateStatus is the admin override of the order status.
func (s *Service) UpdateStatus(ctx context.Context, actor users.Actor, id string, in StatusUpdate) (Order, error) {
	if !actor.IsAdmin() {
		return Order{}, apperr.Forbidden("admin role required")
	}
	if !in.Status.Valid() {
		return Order{}, apperr.Validation("unknown status %q", in.Status)
	}
	return s.change(ctx, id, Change{
		Status:         in.Status,
		Note:           in.Note,
		TrackingNumber: strings.TrimSpace(in.TrackingNumber),
		At:             s.now(),
		Authorize:      transitionCheck(in.Status),
	})
}

// ---- vendor side ----

func (s *Service) ListForVendor(ctx context.Context, vendorID string, in ListInput) ([]Order, paging.Info, error) {
	if in.Status != "" && !in.Status.Valid() {
		return nil, paging.Info{}, apperr.Validation("unknown status %q", in.Status)
	}
	p := paging.New(in.Page, in.Limit, 10)
	list, total, err := s.Store.ListOrders(ctx, Filter{VendorID: vendorID, Status: in.Status}, p)
	if err != nil {
		return nil, paging.Info{}, err
	}
	for i := range list {
		list[i] = list[i].ForVendor(vendorID)
	}
	return list, p.Info(total), nil
}

func (s *Service) GetForVendor(ctx context.Context, vendorID, id string) (Order, error) {
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !o.HasVendor(vendorID) {
		return Order{}, apperr.NotFound("order %s not found", id)
	}
	return o.ForVendor(vendorID), nil
}

// UpdateStatusByVendor moves an order the vendor has items on. The order
// comes back with the vendor's items only.
func (s *Service) UpdateStatusByVendor(ctx context.Context, vendorID, id string, in StatusUpdate) (Order, error) {
	if !in.Status.Valid() {
		return Order{}, apperr.Validation("unknown status %q", in.Status)
	}
	check := transitionCheck(in.Status)
	o, err := s.change(ctx, id, Change{
		Status:         in.Status,
		Note:           in.Note,
		TrackingNumber: strings.TrimSpace(in.TrackingNumber),
		At:             s.now(),
		Authorize: func(o Order) error {
			if !o.HasVendor(vendorID) {
				return apperr.NotFound("order %s not found", id)
			}
			return check(o)
		},
	})
	if err != nil {
		return Order{}, err
	}
	return o.ForVendor(vendorID), nil
}

func transitionCheck(to Status) func(Order) error {
	return func(o Order) error {
		if !CanTransition(o.Status, to) {
			return apperr.Conflict("cannot move order from %s to %s", o.Status, to)
		}
		return nil
	}
}

func (s *Service) change(ctx context.Context, id string, ch Change) (Order, error) {
	o, from, err := s.Store.ChangeStatus(ctx, id, ch)
	if err != nil {
		return Order{}, err
	}
	s.logInfo("order status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(o.Status)))
	if s.Observer != nil {
		s.Observer.StatusChanged(from, o.Status)
	}
	s.publishStatusChanged(ctx, o, from, ch)
	return o, nil
}

func (s *Service) CountForCustomer(ctx context.Context, customerID string) (int, error) {
	return s.Store.CountOrdersForCustomer(ctx, customerID)
}

// ---- events ----

func (s *Service) publish(ctx context.Context, topic, eventType, key string, payload any) {
	if s.Events == nil {
		return
	}
	env, err := events.NewEnvelope(eventType, s.ServiceName, key, events.TraceFrom(ctx), payload)
	if err == nil {
		err = s.Events.Publish(ctx, topic, env)
	}
	if err != nil && s.Log != nil {
		s.Log.Warn("publish event", zap.String("topic", topic), zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) publishCreated(ctx context.Context, o Order) {
	lines := make([]events.OrderLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, events.OrderLine{
			ProductID: it.ProductID,
			VendorID:  it.VendorID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Total:     it.Total,
		})
	}
	s.publish(ctx, events.TopicOrderCreated, events.EventOrderCreated, o.ID, events.OrderCreatedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		Items:       lines,
		Total:       o.Total,
		Currency:    o.Currency,
	})
}

func (s *Service) publishStatusChanged(ctx context.Context, o Order, from Status, ch Change) {
	s.publish(ctx, events.TopicOrderStatusChanged, events.EventOrderStatusChanged, o.ID, events.OrderStatusChangedPayload{
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		CustomerID:     o.CustomerID,
		VendorIDs:      o.VendorIDs(),
		From:           string(from),
		To:             string(o.Status),
		TrackingNumber: o.TrackingNumber,
		Note:           ch.Note,
	})
}

func (s *Service) publishLowStock(ctx context.Context, levels []StockLevel) {
	if s.Events == nil {
		return
	}
	var low []catalog.Product
	for _, l := range levels {
		if l.Low() {
			low = append(low, catalog.Product{
				ID:                l.ProductID,
				VendorID:          l.VendorID,
				Name:              l.Name,
				SKU:               l.SKU,
				Stock:             l.Stock,
				LowStockThreshold: l.Threshold,
				IsActive:          true,
			})
		}
	}
	catalog.PublishLowStock(ctx, s.Events, s.ServiceName, s.Log, low)
}

func (s *Service) logInfo(msg string, fields ...zap.Field) {
	if s.Log != nil {
		s.Log.Info(msg, fields...)
	}
}
