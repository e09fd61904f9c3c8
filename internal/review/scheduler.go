package review

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// MinEase is the floor every ease factor is clamped to.
const MinEase = 1.3

// NextEase returns the ease factor after a review with the given rating.
func NextEase(ease float64, rating Rating) float64 {
	switch rating {
	case Again:
		return math.Max(MinEase, ease-0.2)
	case Hard:
		return math.Max(MinEase, ease-0.15)
	case Easy:
		return ease + 0.15
	default:
		return ease
	}
}

// IntervalDays returns the number of days until the next review.
// ease must already be the updated value from NextEase.
func IntervalDays(ease float64, rating Rating) int {
	var days float64
	switch rating {
	case Again:
		return 1
	case Hard:
		days = math.Round(ease * 0.5)
	case Good:
		days = math.Round(ease)
	case Easy:
		days = math.Round(ease * 1.3)
	}
	return int(math.Max(1, days))
}

// Rate applies a rating to a card reviewed at now and returns the
// rescheduled copy. The card passed in is left untouched.
func Rate(card domain.Flashcard, rating Rating, now time.Time) (domain.Flashcard, error) {
	if !rating.IsValid() {
		return card, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}
	if math.IsNaN(card.Ease) || math.IsInf(card.Ease, 0) || card.Ease < MinEase {
		return card, fmt.Errorf("%w: card %s has ease %v", ErrInvalidCard, card.ID, card.Ease)
	}

	ease := NextEase(card.Ease, rating)
	days := IntervalDays(ease, rating)

	out := card
	out.Ease = ease
	out.NextReviewAt = now.AddDate(0, 0, days)
	reviewed := now
	out.LastReviewAt = &reviewed
	return out, nil
}

// IsDue reports whether the card can be reviewed at now.
func IsDue(card domain.Flashcard, now time.Time) bool {
	return !card.NextReviewAt.After(now)
}

// Due returns the cards whose next review is at or before now, in their
// original order.
func Due(cards []domain.Flashcard, now time.Time) []domain.Flashcard {
	var due []domain.Flashcard
	for _, c := range cards {
		if IsDue(c, now) {
			due = append(due, c)
		}
	}
	return due
}

// SelectDue picks the due card at cursor, wrapping by the size of the
// current due set. The caller owns the cursor and advances it after each
// review. It returns false when nothing is due.
//
// The due set can shrink between calls as cards are rescheduled, so the
// same cursor may land on a different card than before.
func SelectDue(cards []domain.Flashcard, now time.Time, cursor int) (domain.Flashcard, bool) {
	due := Due(cards, now)
	if len(due) == 0 {
		return domain.Flashcard{}, false
	}
	i := cursor % len(due)
	if i < 0 {
		i += len(due)
	}
	return due[i], true
}
