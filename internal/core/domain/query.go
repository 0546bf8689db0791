package domain

import (
	"math"
	"strings"
)

const (
	DefaultSort      = "username"
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

var sortableFields = map[string]struct{}{
	"username": {},
	"email":    {},
}

// UserQuery filters, sorts and pages a user listing. Empty fields do not filter.
type UserQuery struct {
	Username    string // partial, case-insensitive
	Email       string
	Role        string
	Application string
	Sort        string // field name, "-" prefix for descending
	Page        int    // 1-based
	Limit       int
}

// Normalize fills defaults and rejects sort fields that are not indexed and
// pages whose offset does not fit in an int64.
func (q UserQuery) Normalize() (UserQuery, error) {
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
	if _, ok := sortableFields[strings.TrimPrefix(q.Sort, "-")]; !ok {
		return q, Malformed("Cannot sort by %q", q.Sort)
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	if int64(q.Page-1) > math.MaxInt64/int64(q.Limit) {
		return q, Malformed("Page %d is out of range", q.Page)
	}
	return q, nil
}

// SortField returns the field name and whether the order is ascending.
func (q UserQuery) SortField() (string, bool) {
	if strings.HasPrefix(q.Sort, "-") {
		return q.Sort[1:], false
	}
	return q.Sort, true
}

// Skip is the number of matches before the page. Only valid after Normalize.
func (q UserQuery) Skip() int64 {
	return int64(q.Page-1) * int64(q.Limit)
}

// UserPage is one page of a listing plus the total number of matches.
type UserPage struct {
	Items      []*User `json:"items"`
	TotalFound int64   `json:"total_found"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
}
