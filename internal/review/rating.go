package review

import (
	"fmt"
	"strconv"
	"strings"
)

// Rating is the user's response to a card review.
type Rating int

const (
	Again Rating = iota + 1 // Forgot.
	Hard                    // Recalled with difficulty.
	Good                    // Recalled.
	Easy                    // Recalled effortlessly.
)

var ratingNames = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}

// String returns the rating name, or "Rating(n)" for invalid values.
func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// IsValid reports whether r is Again, Hard, Good or Easy.
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

// ParseRating accepts a rating name in any case or its number 1-4.
func ParseRating(s string) (Rating, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if r := Rating(n); r.IsValid() {
			return r, nil
		}
		return 0, fmt.Errorf("%w: %d", ErrInvalidRating, n)
	}
	for r := Again; r <= Easy; r++ {
		if strings.EqualFold(s, ratingNames[r]) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(strings.ToLower(ratingNames[r])), nil
}
