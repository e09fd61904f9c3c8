package review

import "errors"

// Use errors.Is to check: errors.Is(err, review.ErrInvalidRating)
var (
	ErrInvalidRating = errors.New("review: invalid rating")
	ErrInvalidCard   = errors.New("review: invalid card")
)
