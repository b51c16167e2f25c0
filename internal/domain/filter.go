package domain

import "strings"

// Matches reports whether o passes the search, status and date criteria of f.
// Limit and Offset are applied by the caller.
func (f OrderFilter) Matches(o *Order) bool {
	if o == nil {
		return false
	}
	if f.Status != nil && o.Status != *f.Status {
		return false
	}
	if f.From != nil && o.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && o.CreatedAt.After(*f.To) {
		return false
	}

	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	for _, field := range []string{o.TrackingNumber, o.ProductName, o.Customer.FullNames} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
