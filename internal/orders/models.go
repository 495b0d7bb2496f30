package orders

import (
	"slices"
	"time"
)

type Address struct {
	FullName string `json:"fullName"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zipCode"`
	Country  string `json:"country"`
	Phone    string `json:"phone,omitempty"`
}

// Item is a snapshot of one product line at checkout.
type Item struct {
	ProductID string `json:"productId"`
	VendorID  string `json:"vendorId"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
	Discount  int64  `json:"discount"`
	Total     int64  `json:"total"`
}

type HistoryEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

type Order struct {
	ID              string         `json:"_id"`
	OrderNumber     string         `json:"orderNumber"`
	CustomerID      string         `json:"customerId"`
	Items           []Item         `json:"items"`
	Subtotal        int64          `json:"subtotal"`
	Tax             int64          `json:"tax"`
	TaxRate         float64        `json:"taxRate"`
	ShippingCost    int64          `json:"shippingCost"`
	Discount        int64          `json:"discount"`
	Total           int64          `json:"total"`
	Currency        string         `json:"currency"`
	Status          Status         `json:"status"`
	PaymentStatus   PaymentStatus  `json:"paymentStatus"`
	PaymentMethod   string         `json:"paymentMethod"`
	PaymentIntentID string         `json:"paymentIntentId,omitempty"`
	ShippingAddress Address        `json:"shippingAddress"`
	BillingAddress  *Address       `json:"billingAddress,omitempty"`
	TrackingNumber  string         `json:"trackingNumber,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	StatusHistory   []HistoryEntry `json:"statusHistory"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeliveredAt     *time.Time     `json:"deliveredAt,omitempty"`
}

// VendorIDs lists the distinct vendors on the order, in item order.
func (o Order) VendorIDs() []string {
	var out []string
	for _, it := range o.Items {
		if !slices.Contains(out, it.VendorID) {
			out = append(out, it.VendorID)
		}
	}
	return out
}

func (o Order) HasVendor(vendorID string) bool {
	for _, it := range o.Items {
		if it.VendorID == vendorID {
			return true
		}
	}
	return false
}

// ForVendor returns a copy of o that carries only vendorID's items.
// Order-level amounts are left as they are.
func (o Order) ForVendor(vendorID string) Order {
	items := make([]Item, 0, len(o.Items))
	for _, it := range o.Items {
		if it.VendorID == vendorID {
			items = append(items, it)
		}
	}
	o.Items = items
	o.StatusHistory = slices.Clone(o.StatusHistory)
	return o
}

// Filter selects orders for listing. VendorID restricts to orders with at
// least one item of that vendor.
type Filter struct {
	CustomerID string
	VendorID   string
	Status     Status
}

// StockLevel is a product's stock after a checkout touched it.
type StockLevel struct {
	ProductID string
	VendorID  string
	Name      string
	SKU       string
	Stock     int
	Threshold int
}

func (l StockLevel) Low() bool { return l.Stock <= l.Threshold }
