package catalog

import "time"

// Service is a listing a technician offers. Price is in currency minor units and
// is snapshotted into bookings at creation time.
type Service struct {
	ID          string
	Name        string
	Category    string
	Description string
	Price       int64
	Location    string
	Available   bool
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter narrows a catalog search. Zero values mean "any".
type Filter struct {
	Category string
	MinPrice int64
	MaxPrice int64
	Location string
	Page     int
	Limit    int
}

// Page is one page of search results.
type Page struct {
	Services   []Service
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

const (
	defaultLimit = 10
	maxLimit     = 100
)

func (f Filter) normalized() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	return f
}

func (f Filter) offset() int {
	return (f.Page - 1) * f.Limit
}

func totalPages(total, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
