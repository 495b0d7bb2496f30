package catalog

import (
	"encoding/json"
	"time"
)

const (
	DefaultCurrency          = "CFA"
	DefaultLowStockThreshold = 10
)

type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type SEO struct {
	MetaTitle       string   `json:"metaTitle,omitempty"`
	MetaDescription string   `json:"metaDescription,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
}

// Product prices are whole currency units.
type Product struct {
	ID                string      `json:"_id"`
	VendorID          string      `json:"vendorId"`
	CategoryID        string      `json:"categoryId"`
	SubcategoryID     string      `json:"subcategoryId,omitempty"`
	Name              string      `json:"name"`
	Slug              string      `json:"slug"`
	Description       string      `json:"description"`
	ShortDescription  string      `json:"shortDescription,omitempty"`
	Price             int64       `json:"price"`
	OriginalPrice     int64       `json:"originalPrice,omitempty"`
	Discount          int         `json:"discount"`
	Currency          string      `json:"currency"`
	Images            []string    `json:"images"`
	MainImage         string      `json:"mainImage,omitempty"`
	SKU               string      `json:"sku"`
	Stock             int         `json:"stock"`
	LowStockThreshold int         `json:"lowStockThreshold"`
	Attributes        []Attribute `json:"attributes"`
	Tags              []string    `json:"tags"`
	IsFeatured        bool        `json:"isFeatured"`
	IsActive          bool        `json:"isActive"`
	Rating            float64     `json:"rating"`
	ReviewCount       int         `json:"reviewCount"`
	TotalSales        int         `json:"totalSales"`
	Weight            float64     `json:"weight,omitempty"`
	Dimensions        *Dimensions `json:"dimensions,omitempty"`
	SEO               *SEO        `json:"seo,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

func (p Product) InStock() bool { return p.Stock > 0 }

func (p Product) IsLowStock() bool {
	return p.Stock > 0 && p.Stock <= p.LowStockThreshold
}

// Image is the picture shown for the product in carts and orders.
func (p Product) Image() string {
	if p.MainImage != "" {
		return p.MainImage
	}
	if len(p.Images) > 0 {
		return p.Images[0]
	}
	return ""
}

func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return json.Marshal(struct {
		plain
		InStock    bool `json:"inStock"`
		IsLowStock bool `json:"isLowStock"`
	}{plain(p), p.InStock(), p.IsLowStock()})
}

// StockStatus is the vendor list filter.
type StockStatus string

const (
	StatusActive     StockStatus = "active"
	StatusInactive   StockStatus = "inactive"
	StatusLowStock   StockStatus = "low-stock"
	StatusOutOfStock StockStatus = "out-of-stock"
)

func (s StockStatus) Valid() bool {
	switch s {
	case "", StatusActive, StatusInactive, StatusLowStock, StatusOutOfStock:
		return true
	}
	return false
}

// Match reports whether p falls under status s.
func (s StockStatus) Match(p Product) bool {
	switch s {
	case StatusActive:
		return p.IsActive
	case StatusInactive:
		return !p.IsActive
	case StatusLowStock:
		return p.IsLowStock()
	case StatusOutOfStock:
		return p.Stock == 0
	}
	return true
}

const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortRating    = "rating"
	SortPopular   = "popular"
)

type ProductFilter struct {
	VendorID   string
	CategoryID string
	Search     string
	MinPrice   *int64
	MaxPrice   *int64
	Featured   *bool
	ActiveOnly bool
	Status     StockStatus
	Sort       string
}

// ProductCounts is the product block of the vendor dashboard.
type ProductCounts struct {
	Total      int `json:"total"`
	Active     int `json:"active"`
	LowStock   int `json:"lowStock"`
	OutOfStock int `json:"outOfStock"`
}

type Category struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  string    `json:"description,omitempty"`
	ParentID     string    `json:"parentId,omitempty"`
	Image        string    `json:"image,omitempty"`
	Icon         string    `json:"icon,omitempty"`
	Order        int       `json:"order"`
	IsActive     bool      `json:"isActive"`
	ProductCount int       `json:"productCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
