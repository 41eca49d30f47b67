package shared

import (
	"net/http"
	"strconv"
)

// Page is a limit/offset window over a list endpoint.
type Page struct {
	Limit  int
	Offset int
}

// PageOf reads ?limit and ?offset. Malformed or negative values fall back to
// the defaults and limit never exceeds maxLimit.
func PageOf(r *http.Request, defaultLimit, maxLimit int) Page {
	page := Page{Limit: defaultLimit}
	query := r.URL.Query()
	if v, err := strconv.Atoi(query.Get("limit")); err == nil && v > 0 {
		page.Limit = v
	}
	if v, err := strconv.Atoi(query.Get("offset")); err == nil && v >= 0 {
		page.Offset = v
	}
	if maxLimit > 0 {
		page.Limit = min(page.Limit, maxLimit)
	}
	return page
}

// WriteTotal sets X-Total-Count and X-Has-More for a page of a list holding
// total rows. Call it before the body is written.
func (p Page) WriteTotal(w http.ResponseWriter, total int) {
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	w.Header().Set("X-Has-More", strconv.FormatBool(p.Offset+p.Limit < total))
}
