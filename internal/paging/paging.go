// Package paging normalises page/limit query values and builds the
// pagination block returned by list endpoints.
package paging

const MaxLimit = 100

type Page struct {
	Page  int
	Limit int
}

// New clamps page to >= 1 and limit to [1, MaxLimit], falling back to def.
func New(page, limit, def int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Page: page, Limit: limit}
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

type Info struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

func (p Page) Info(total int) Info {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Info{Total: total, Page: p.Page, Limit: p.Limit, Pages: pages}
}

// Slice returns the window of items selected by p.
func Slice[T any](items []T, p Page) []T {
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
