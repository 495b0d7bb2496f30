package memstore

import (
	"github.com/kmercart/kmercart-api/internal/cart"
	"github.com/kmercart/kmercart-api/internal/catalog"
	"github.com/kmercart/kmercart-api/internal/notifications"
	"github.com/kmercart/kmercart-api/internal/orders"
	"github.com/kmercart/kmercart-api/internal/payouts"
	"github.com/kmercart/kmercart-api/internal/reviews"
	"github.com/kmercart/kmercart-api/internal/users"
	"github.com/kmercart/kmercart-api/internal/vendors"
)

var (
	_ users.Store           = (*Store)(nil)
	_ catalog.ProductStore  = (*Store)(nil)
	_ catalog.CategoryStore = (*Store)(nil)
	_ cart.Store            = (*Store)(nil)
	_ orders.Store          = (*Store)(nil)
	_ vendors.ProfileStore  = (*Store)(nil)
	_ vendors.Analytics     = (*Store)(nil)
	_ reviews.Store         = (*Store)(nil)
	_ reviews.ProductStore  = (*Store)(nil)
	_ notifications.Store   = (*Store)(nil)
	_ payouts.Store         = (*Store)(nil)
)
