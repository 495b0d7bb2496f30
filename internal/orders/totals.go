package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const Currency = "CFA"

var taxRate = decimal.RequireFromString("0.08")

// TaxRate is the fixed sales tax applied at checkout.
func TaxRate() float64 { return taxRate.InexactFloat64() }

type Totals struct {
	Subtotal     int64
	Tax          int64
	ShippingCost int64
	Discount     int64
	Total        int64
}

// ComputeTotals sums item totals and applies the tax rate, rounding half
// away from zero to whole units.
func ComputeTotals(items []Item, shipping, discount int64) Totals {
	var subtotal int64
	for _, it := range items {
		subtotal += it.Total
	}
	tax := decimal.NewFromInt(subtotal).Mul(taxRate).Round(0).IntPart()
	return Totals{
		Subtotal:     subtotal,
		Tax:          tax,
		ShippingCost: shipping,
		Discount:     discount,
		Total:        subtotal + tax + shipping - discount,
	}
}

// LineTotal is price times quantity less the line discount.
func LineTotal(price int64, qty int, discount int64) int64 {
	return price*int64(qty) - discount
}

// NewOrderNumber formats KC-YYYYMMDD-XXXXXX from the order date and random
// uuid bits.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("KC-%s-%s", now.UTC().Format("20060102"), suffix)
}
