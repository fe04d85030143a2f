package common

import (
	"net/http"
	"strconv"
)

// Pagination is the page block attached to list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NewPagination fills TotalPages from total and perPage.
func NewPagination(page, perPage, total int) Pagination {
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return Pagination{Page: page, PerPage: perPage, TotalItems: total, TotalPages: pages}
}

// PageRequest is a parsed page/per_page pair.
type PageRequest struct {
	Page    int
	PerPage int
}

// Offset is the number of rows to skip.
func (p PageRequest) Offset() int { return (p.Page - 1) * p.PerPage }

// ParsePagination reads ?page= and ?per_page= (or ?limit=). Invalid values fall back to
// page 1 and defaultPerPage; per_page is capped at maxPerPage.
func ParsePagination(r *http.Request, defaultPerPage, maxPerPage int) PageRequest {
	q := r.URL.Query()
	req := PageRequest{Page: 1, PerPage: defaultPerPage}
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		req.Page = p
	}
	raw := q.Get("per_page")
	if raw == "" {
		raw = q.Get("limit")
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		req.PerPage = n
	}
	if maxPerPage > 0 && req.PerPage > maxPerPage {
		req.PerPage = maxPerPage
	}
	return req
}
