package domain

import "strconv"

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

// Page is a limit/offset window.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ParsePage coerces raw query values. Anything that is not a positive number
// falls back to the default, and limit is capped at MaxPageLimit.
func ParsePage(rawLimit, rawOffset string) Page {
	p := Page{Limit: DefaultPageLimit}
	if n, err := strconv.Atoi(rawLimit); err == nil && n > 0 {
		p.Limit = min(n, MaxPageLimit)
	}
	if n, err := strconv.Atoi(rawOffset); err == nil && n > 0 {
		p.Offset = n
	}
	return p
}

// Window returns the [start, end) bounds of the page over n items.
func (p Page) Window(n int) (int, int) {
	start := min(p.Offset, n)
	end := min(start+p.Limit, n)
	return start, end
}
