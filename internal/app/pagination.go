package app

import (
	"context"
	"math"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
	maxPage      = math.MaxInt / maxLimit
)

// Pagination describes one page of a larger result set.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// Page is a slice of results plus its pagination metadata.
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// NewPagination computes page metadata for total matching items.
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// normalizePage applies defaults for absent values and validates
// page/limit bounds. maxPage keeps (page-1)*limit from overflowing.
func normalizePage(page, limit *int, errs *fieldErrors) (int, int) {
	p, l := defaultPage, defaultLimit
	if page != nil {
		p = *page
	}
	if limit != nil {
		l = *limit
	}
	switch {
	case p < 1:
		errs.add("page", "Page must be at least 1")
	case p > maxPage:
		errs.add("page", "Page is too large")
	}
	if l < 1 || l > maxLimit {
		errs.add("limit", "Limit must be between 1 and 100")
	}
	return p, l
}

func paginate[T any](
	ctx context.Context,
	page, limit int,
	count func(context.Context) (int, error),
	fetch func(ctx context.Context, offset, limit int) ([]T, error),
) (Page[T], error) {
	total, err := count(ctx)
	if err != nil {
		return Page[T]{}, err
	}
	data, err := fetch(ctx, (page-1)*limit, limit)
	if err != nil {
		return Page[T]{}, err
	}
	if data == nil {
		data = []T{}
	}
	return Page[T]{Data: data, Pagination: NewPagination(page, limit, total)}, nil
}
