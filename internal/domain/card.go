package domain

import "time"

// InitialEase is the ease factor given to every new flashcard.
const InitialEase = 2.5

// Flashcard is a front/back prompt with its review schedule.
// Ease and NextReviewAt are only changed by the review scheduler.
type Flashcard struct {
	ID           string `validate:"required"`
	ItemID       string `validate:"required"`
	Front        string `validate:"required"`
	Back         string
	Context      string
	Ease         float64 `validate:"gte=1.3"`
	NextReviewAt time.Time
	LastReviewAt *time.Time
}

// NewFlashcard returns a card that is due immediately.
func NewFlashcard(id, itemID, front, back, context string, now time.Time) Flashcard {
	return Flashcard{
		ID:           id,
		ItemID:       itemID,
		Front:        front,
		Back:         back,
		Context:      context,
		Ease:         InitialEase,
		NextReviewAt: now,
	}
}

// Topic is the label a review of this card is recorded under.
func (c Flashcard) Topic() string {
	if c.Context == "" {
		return "general"
	}
	return c.Context
}

// Item is one deck file synced from a source.
type Item struct {
	ID        string
	SourceID  int64
	Title     string
	Path      string
	CreatedAt time.Time
}

// Summary is generated study material for an item.
type Summary struct {
	ID      string
	ItemID  string
	TLDR    string
	Bullets []string
	Outline []string
}
