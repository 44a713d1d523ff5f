package repository

// Listing limits. Requests beyond MaxLimit are clamped, not rejected.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Pagination is a validated limit/offset window over a listing query.
type Pagination struct {
	Limit  int
	Offset int
}

// NewPagination clamps raw limit/offset values into a usable window.
func NewPagination(limit, offset int) Pagination {
	if limit <= 0 {
		limit = DefaultLimit
	} else if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Pagination{Limit: limit, Offset: offset}
}

// PageToPagination converts 1-based page numbering into an offset window.
func PageToPagination(page, perPage int) Pagination {
	if page < 1 {
		page = 1
	}
	p := NewPagination(perPage, 0)
	p.Offset = (page - 1) * p.Limit
	return p
}

// PaginatedResult is one window of a listing plus the bookkeeping a
// caller needs to fetch the next one.
type PaginatedResult[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	HasMore    bool  `json:"has_more"`
	TotalPages int   `json:"total_pages"`
	Page       int   `json:"page"`
}

// NewPaginatedResult wraps one window's rows with the derived counters.
func NewPaginatedResult[T any](items []T, total int64, p Pagination) PaginatedResult[T] {
	totalPages := int(total) / p.Limit
	if int(total)%p.Limit > 0 {
		totalPages++
	}

	return PaginatedResult[T]{
		Items:      items,
		Total:      total,
		Limit:      p.Limit,
		Offset:     p.Offset,
		HasMore:    p.Offset+len(items) < int(total),
		TotalPages: totalPages,
		Page:       (p.Offset / p.Limit) + 1,
	}
}
