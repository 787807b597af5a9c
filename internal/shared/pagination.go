package shared

import "math"

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	PrevPage   int  `json:"prev_page,omitempty"`
	NextPage   int  `json:"next_page,omitempty"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	p := Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
	p.HasNext = page < totalPages
	if page > 1 {
		p.PrevPage = page - 1
	}
	if p.HasNext {
		p.NextPage = page + 1
	}
	return p
}

// Bounds returns the half-open slice window [start, end) for the current page.
func (p Pagination) Bounds() (int, int) {
	start := (p.Page - 1) * p.PerPage
	if start > p.Total {
		start = p.Total
	}
	end := start + p.PerPage
	if end > p.Total {
		end = p.Total
	}
	return start, end
}
