package model

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
	// MaxPage keeps Skip far from overflow on any int size.
	MaxPage = 1_000_000_000
)

// PageRequest is a 1-indexed page of Limit records.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps the request to sane bounds.
func (r PageRequest) Normalize() PageRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Page > MaxPage {
		r.Page = MaxPage
	}
	if r.Limit < 1 {
		r.Limit = DefaultPageLimit
	}
	if r.Limit > MaxPageLimit {
		r.Limit = MaxPageLimit
	}
	return r
}

// Skip is the number of records before the requested page.
func (r PageRequest) Skip() int64 {
	r = r.Normalize()
	return int64(r.Page-1) * int64(r.Limit)
}

// Page describes where a result set sits within all matches.
type Page struct {
	Total       int64 `json:"total"`
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalPages  int64 `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// NewPage computes page metadata for total matches.
func NewPage(total int64, req PageRequest) Page {
	req = req.Normalize()
	limit := int64(req.Limit)
	pages := (total + limit - 1) / limit
	return Page{
		Total:       total,
		Page:        req.Page,
		Limit:       req.Limit,
		TotalPages:  pages,
		HasNextPage: int64(req.Page) < pages,
		HasPrevPage: req.Page > 1,
	}
}
