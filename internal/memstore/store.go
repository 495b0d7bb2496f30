// Package memstore keeps every domain record in process memory. It backs
// STORE_DRIVER=memory and the service tests; values go in and out as deep
// copies so callers never share slices with the store.
package memstore

import (
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kmercart/kmercart-api/internal/cart"
	"github.com/kmercart/kmercart-api/internal/catalog"
	"github.com/kmercart/kmercart-api/internal/notifications"
	"github.com/kmercart/kmercart-api/internal/orders"
	"github.com/kmercart/kmercart-api/internal/payouts"
	"github.com/kmercart/kmercart-api/internal/reviews"
	"github.com/kmercart/kmercart-api/internal/users"
)

type Store struct {
	mu sync.RWMutex

	users    map[string]users.User
	emails   map[string]string // email -> id
	userSeq  []string
	products map[string]catalog.Product
	skus     map[string]string // sku -> id
	prodSeq  []string
	cats     map[string]catalog.Category
	slugs    map[string]string
	catSeq   []string
	carts    map[string]cart.Cart
	orders   map[string]orders.Order
	numbers  map[string]string
	orderSeq []string
	reviews  map[string]reviews.Review
	reviewed map[string]string // product|user -> review id
	revSeq   []string
	notes    map[string]notifications.Notification
	noteSeq  []string
	payouts  map[string]payouts.Payout
	paySeq   []string
}

func New() *Store {
	return &Store{
		users:    map[string]users.User{},
		emails:   map[string]string{},
		products: map[string]catalog.Product{},
		skus:     map[string]string{},
		cats:     map[string]catalog.Category{},
		slugs:    map[string]string{},
		carts:    map[string]cart.Cart{},
		orders:   map[string]orders.Order{},
		numbers:  map[string]string{},
		reviews:  map[string]reviews.Review{},
		reviewed: map[string]string{},
		notes:    map[string]notifications.Notification{},
		payouts:  map[string]payouts.Payout{},
	}
}

// newestFirst walks seq from the latest insert and stable-sorts by created,
// so equal timestamps keep reverse insertion order.
func newestFirst[T any](seq []string, get func(id string) (T, bool), created func(T) time.Time) []T {
	out := make([]T, 0, len(seq))
	for i := len(seq) - 1; i >= 0; i-- {
		if v, ok := get(seq[i]); ok {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return created(out[i]).After(created(out[j])) })
	return out
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// ---- deep copies ----

func cloneUser(u users.User) users.User {
	if u.VendorProfile != nil {
		vp := *u.VendorProfile
		if vp.BusinessAddress != nil {
			a := *vp.BusinessAddress
			vp.BusinessAddress = &a
		}
		if vp.BankAccount != nil {
			b := *vp.BankAccount
			vp.BankAccount = &b
		}
		u.VendorProfile = &vp
	}
	return u
}

func cloneProduct(p catalog.Product) catalog.Product {
	p.Images = slices.Clone(p.Images)
	p.Attributes = slices.Clone(p.Attributes)
	p.Tags = slices.Clone(p.Tags)
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Attributes == nil {
		p.Attributes = []catalog.Attribute{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Dimensions != nil {
		d := *p.Dimensions
		p.Dimensions = &d
	}
	if p.SEO != nil {
		seo := *p.SEO
		seo.Keywords = slices.Clone(seo.Keywords)
		p.SEO = &seo
	}
	return p
}

func cloneCart(c cart.Cart) cart.Cart {
	c.Items = slices.Clone(c.Items)
	if c.Items == nil {
		c.Items = []cart.Item{}
	}
	return c
}

func cloneOrder(o orders.Order) orders.Order {
	o.Items = slices.Clone(o.Items)
	o.StatusHistory = slices.Clone(o.StatusHistory)
	if o.BillingAddress != nil {
		a := *o.BillingAddress
		o.BillingAddress = &a
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		o.DeliveredAt = &t
	}
	return o
}

func cloneReview(r reviews.Review) reviews.Review {
	r.Images = slices.Clone(r.Images)
	if r.Images == nil {
		r.Images = []string{}
	}
	if r.VendorResponse != nil {
		vr := *r.VendorResponse
		r.VendorResponse = &vr
	}
	return r
}

func cloneNotification(n notifications.Notification) notifications.Notification {
	n.Data = maps.Clone(n.Data)
	if n.ReadAt != nil {
		t := *n.ReadAt
		n.ReadAt = &t
	}
	return n
}

func clonePayout(p payouts.Payout) payouts.Payout {
	p.Orders = slices.Clone(p.Orders)
	if p.Orders == nil {
		p.Orders = []string{}
	}
	if p.ProcessedAt != nil {
		t := *p.ProcessedAt
		p.ProcessedAt = &t
	}
	return p
}
