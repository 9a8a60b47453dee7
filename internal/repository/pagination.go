package repository

import "math"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (page-1)*limit within int for every allowed limit
	MaxPage = math.MaxInt / MaxLimit
)

// PageRequest identifies a page of results
type PageRequest struct {
	Page  int
	Limit int
}

// PageResult holds one page of items together with pagination metadata
type PageResult[T any] struct {
	Items      []T
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// Normalize clamps page to [1, MaxPage] and limit to [1, MaxLimit], substituting defaults for unset values
func (p PageRequest) Normalize() PageRequest {
	page := p.Page
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	limit := p.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return PageRequest{Page: page, Limit: limit}
}

// Offset returns the number of rows to skip for this page
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages returns ceil(total/limit), or 0 when there is nothing to page through
func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}
