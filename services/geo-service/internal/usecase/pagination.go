package usecase

import (
	"fmt"
	"math"
)

// ListParams holds the optional page and limit of a list request. Zero
// means not supplied.
type ListParams struct {
	Page  int
	Limit int
}

// Page is one page of a list result.
type Page[T any] struct {
	Rows  []T   `json:"rows"`
	Page  int   `json:"page,omitempty"`
	Limit int   `json:"limit,omitempty"`
	Total int64 `json:"total"`
}

// window resolves p into a limit and offset. Without page and limit every
// row is returned; a limit above maxLimit is capped.
func (p ListParams) window(maxLimit int) (ListParams, uint64, uint64, error) {
	if p.Page < 0 || p.Limit < 0 {
		return p, 0, 0, fmt.Errorf("%w: page and limit must be positive", ErrInvalidData)
	}

	if p.Page == 0 && p.Limit == 0 {
		return p, 0, 0, nil
	}

	if p.Page == 0 {
		p.Page = 1
	}
	if p.Limit == 0 || (maxLimit > 0 && p.Limit > maxLimit) {
		p.Limit = maxLimit
	}

	if p.Limit > 0 && p.Page-1 > math.MaxInt/p.Limit {
		return p, 0, 0, fmt.Errorf("%w: page %d is out of range", ErrInvalidData, p.Page)
	}

	return p, uint64(p.Limit), uint64((p.Page - 1) * p.Limit), nil
}
