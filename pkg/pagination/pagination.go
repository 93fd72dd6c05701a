package pagination

import "math"

const (
	// DefaultPage is used when the page parameter is missing.
	DefaultPage = 1
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 10
	// MaxLimit caps how many rows any page query can request.
	MaxLimit = 100
)

// Params holds offset pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Offset int
}

// Meta is derived from the page window and the unfiltered total.
type Meta struct {
	CurrentPage int
	Limit       int
	TotalPages  int
	Total       int64
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// NormalizePage clamps page numbers below one to the first page.
func NormalizePage(page int) int {
	if page < 1 {
		return DefaultPage
	}
	return page
}

// FromPage converts a 1-based page number into a limit/offset window.
func FromPage(page, limit int) Params {
	limit = NormalizeLimit(limit)
	page = NormalizePage(page)
	return Params{Limit: limit, Offset: (page - 1) * limit}
}

// Normalize clamps the window so it can be passed to a query.
func (p Params) Normalize() Params {
	p.Limit = NormalizeLimit(p.Limit)
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// BuildMeta computes floor(offset/limit)+1 and ceil(total/limit).
func BuildMeta(p Params, total int64) Meta {
	p = p.Normalize()
	pages := 0
	if total > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return Meta{
		CurrentPage: p.Offset/p.Limit + 1,
		Limit:       p.Limit,
		TotalPages:  pages,
		Total:       total,
	}
}
