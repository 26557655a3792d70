package pagination

// Params is the offset pagination contract shared by management listings.
type Params struct {
	Page  int `form:"page,default=1" validate:"gte=1"`
	Limit int `form:"limit,default=20" validate:"gte=1,lte=250"`
}

const (
	defaultLimit = 20
	maxLimit     = 250
)

// Normalize clamps the params to sane bounds.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// Offset returns the row offset for the current page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PageInfo summarizes a paginated result set.
type PageInfo struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// Build computes PageInfo for a total row count.
func Build(p Params, total int64) PageInfo {
	pages := total / int64(p.Limit)
	if total%int64(p.Limit) != 0 {
		pages++
	}
	return PageInfo{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: pages,
	}
}
