// Package pagination parses page and limit query parameters and shapes
// paged list responses.
package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/JaimeStill/safestack/pkg/query"
)

// ErrInvalidParam is wrapped by every parse failure in this package.
var ErrInvalidParam = errors.New("invalid pagination parameter")

// PageRequest selects one page of a sorted, optionally searched list.
type PageRequest struct {
	Page     int
	PageSize int
	Search   *string
	Sort     []query.SortField
}

// Normalize clamps Page to at least 1 and PageSize into [1, MaxPageSize],
// substituting DefaultPageSize when unset.
func (r *PageRequest) Normalize(cfg Config) {
	r.Page = max(r.Page, 1)
	if r.PageSize < 1 {
		r.PageSize = cfg.DefaultPageSize
	}
	r.PageSize = min(r.PageSize, cfg.MaxPageSize)
}

func (r *PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// PageRequestFromQuery reads page, page_size, search, and sort. Absent
// values take defaults; present values that are not integers are errors.
func PageRequestFromQuery(values url.Values, cfg Config) (PageRequest, error) {
	var (
		req PageRequest
		err error
	)

	if req.Page, err = intParam(values, "page"); err != nil {
		return req, err
	}
	if req.PageSize, err = intParam(values, "page_size"); err != nil {
		return req, err
	}
	if s := values.Get("search"); s != "" {
		req.Search = &s
	}
	req.Sort = query.ParseSortFields(values.Get("sort"))

	req.Normalize(cfg)
	return req, nil
}

// LimitFromQuery reads "limit" for unpaged lists. Absent or non-positive
// values yield DefaultLimit; values above MaxLimit are clamped.
func LimitFromQuery(values url.Values, cfg Config) (int, error) {
	limit, err := intParam(values, "limit")
	if err != nil {
		return 0, err
	}
	if limit < 1 {
		return cfg.DefaultLimit, nil
	}
	return min(limit, cfg.MaxLimit), nil
}

func intParam(values url.Values, name string) (int, error) {
	raw := values.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidParam, name, raw)
	}
	return n, nil
}

// PageResult is the response envelope for paged lists.
type PageResult[T any] struct {
	Data       []T  `json:"data"`
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// NewPageResult computes page counts from total. An empty result still
// reports one page.
func NewPageResult[T any](data []T, total, page, pageSize int) PageResult[T] {
	totalPages := 1
	if pageSize > 0 && total > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}

	if data == nil {
		data = []T{}
	}

	return PageResult[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}
}
