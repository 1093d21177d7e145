package pagination

const (
	// DefaultPage is the first page; pages are 1-based.
	DefaultPage = 1
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any page query can request.
	MaxLimit = 100
)

// Params holds page/limit inputs from controllers or services.
type Params struct {
	Page  int
	Limit int
}

// Page describes the returned window.
type Page struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// Normalize applies the package defaults and ceilings.
func Normalize(p Params) Params {
	return NormalizeWith(p, DefaultLimit, MaxLimit)
}

// NormalizeWith applies caller-specific defaults; endpoints differ in page size.
func NormalizeWith(p Params, defaultLimit, maxLimit int) Params {
	if p.Page <= 0 {
		p.Page = DefaultPage
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// Offset returns the number of rows to skip for the page.
func (p Params) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Build returns the page metadata for a total row count.
func Build(p Params, total int64) Page {
	pages := 0
	if p.Limit > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Page{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}
