package pagination

import (
	"net/url"
	"strconv"
)

// MaxPerPage caps a client-supplied per_page.
const MaxPerPage = 100

// Params holds the requested page window.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// New builds Params, clamping page to at least 1 and perPage to 1..MaxPerPage.
func New(page, perPage int) Params {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Params{Page: page, PerPage: perPage, Offset: (page - 1) * perPage}
}

// FromQuery reads page and, when allowPerPage is set, per_page from q.
// Missing or malformed values fall back to page 1 and defaultPerPage.
func FromQuery(q url.Values, defaultPerPage int, allowPerPage bool) Params {
	page := 1
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		page = v
	}

	perPage := defaultPerPage
	if allowPerPage {
		if v, err := strconv.Atoi(q.Get("per_page")); err == nil && v > 0 && v <= MaxPerPage {
			perPage = v
		}
	}
	return New(page, perPage)
}

// TotalPages returns how many pages of p.PerPage hold total items.
func (p Params) TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + p.PerPage - 1) / p.PerPage
}
