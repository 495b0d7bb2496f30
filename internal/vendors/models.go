package vendors

import (
	"time"

	"github.com/kmercart/kmercart-api/internal/catalog"
	"github.com/kmercart/kmercart-api/internal/orders"
)

type OrderCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Shipped    int `json:"shipped"`
	Delivered  int `json:"delivered"`
}

// Sales sums the vendor's own line items on orders that were not
// cancelled. Total and Revenue are both the summed line totals; the
// dashboard reads either.
type Sales struct {
	Total     int64 `json:"total"`
	Revenue   int64 `json:"revenue"`
	UnitsSold int64 `json:"unitsSold"`
}

type Dashboard struct {
	Products     catalog.ProductCounts `json:"products"`
	Orders       OrderCounts           `json:"orders"`
	Sales        Sales                 `json:"sales"`
	RecentOrders []orders.Order        `json:"recentOrders"`
}

type DailySales struct {
	Date   string `json:"date"` // YYYY-MM-DD, UTC
	Sales  int64  `json:"sales"`
	Orders int    `json:"orders"`
}

type TopProduct struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	TotalSold   int    `json:"totalSold"`
	Revenue     int64  `json:"revenue"`
}

type SalesAnalytics struct {
	DailySales  []DailySales `json:"dailySales"`
	TopProducts []TopProduct `json:"topProducts"`
}

// Range bounds analytics by order creation time; nil ends are open.
type Range struct {
	From *time.Time
	To   *time.Time
}

func (r Range) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

const (
	recentOrdersLimit = 5
	topProductsLimit  = 10
)
