package model

import "math"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (Number-1)*Limit within an int.
	MaxPage = math.MaxInt / MaxLimit
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Limit  int
}

// NewPage clamps number and limit to sane values.
func NewPage(number, limit int) Page {
	if number < 1 {
		number = DefaultPage
	}
	if number > MaxPage {
		number = MaxPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Number: number, Limit: limit}
}

// Offset is the number of records to skip. It saturates instead of
// overflowing for pages not built by NewPage.
func (p Page) Offset() int {
	if p.Number <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Limit
}
