package knol

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conorfennell/knolstudy/internal/domain"
)

func normalizePart(part string) string {
	p := strings.ToLower(part)
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\r\n", "\n")
	return p
}

// Normalize concatenates the card's content after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for each field
// before joining them.
func Normalize(card domain.Flashcard) string {
	// Joined with a newline so "question" and "answer" can never collapse
	// into "questionanswer".
	return strings.Join([]string{
		normalizePart(card.Front),
		normalizePart(card.Back),
		normalizePart(card.Context),
	}, "\n")
}

// NormalizeQuestion cleans a question and its options in order. The answer
// key is part of the content, so moving the [x] makes a new question.
func NormalizeQuestion(q domain.MCQ) string {
	parts := []string{"mcq", normalizePart(q.Question)}
	for _, opt := range q.Options {
		parts = append(parts, normalizePart(opt))
	}
	parts = append(parts, fmt.Sprint(q.CorrectIndex))
	return strings.Join(parts, "\n")
}

// Hash takes a card, normalizes it, and returns its SHA-256 hash as a hex string.
func Hash(card domain.Flashcard) string {
	return sum(Normalize(card))
}

// HashQuestion returns the SHA-256 hex hash of a normalized question.
func HashQuestion(q domain.MCQ) string {
	return sum(NormalizeQuestion(q))
}

// CardID scopes a card's content hash to the item it was parsed from, so
// the same card in two decks is scheduled separately.
func CardID(itemID string, card domain.Flashcard) string {
	return sum(itemID + ":" + Hash(card))
}

// QuestionID scopes a question's content hash to its item.
func QuestionID(itemID string, q domain.MCQ) string {
	return sum(itemID + ":" + HashQuestion(q))
}

// ItemID identifies a deck file within a source. Paths are compared in
// slash form so the same checkout hashes alike on every OS.
func ItemID(sourceID int64, relPath string) string {
	return sum(fmt.Sprintf("%d:%s", sourceID, filepath.ToSlash(relPath)))[:16]
}

func sum(s string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(s)))
}
