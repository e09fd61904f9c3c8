package studygen

import (
	"strings"
	"testing"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

func TestFlashcards(t *testing.T) {
	now := time.Date(2024, 2, 2, 8, 0, 0, 0, time.UTC)
	cards := Flashcards("deck", 5, now)
	if len(cards) != 5 {
		t.Fatalf("Expected 5 cards, got %d", len(cards))
	}
	seen := make(map[string]bool)
	for i, c := range cards {
		if err := domain.Validate(c); err != nil {
			t.Errorf("card %d failed validation: %v", i, err)
		}
		if c.Ease != domain.InitialEase || !c.NextReviewAt.Equal(now) {
			t.Errorf("card %d not seeded as new: %+v", i, c)
		}
		if seen[c.ID] {
			t.Errorf("duplicate id %s", c.ID)
		}
		seen[c.ID] = true
	}
	if cards[0].Front != "What is the definition of definition 1?" {
		t.Errorf("Unexpected front %q", cards[0].Front)
	}
	if cards[4].Context != "definition" {
		t.Errorf("Expected topics to cycle, got %q", cards[4].Context)
	}
}

func TestQuestions(t *testing.T) {
	qs := Questions("deck", 6)
	if len(qs) != 6 {
		t.Fatalf("Expected 6 questions, got %d", len(qs))
	}
	for i, q := range qs {
		if err := domain.Validate(q); err != nil {
			t.Errorf("question %d failed validation: %v", i, err)
		}
		if q.CorrectIndex != i%4 {
			t.Errorf("question %d: expected correct index %d, got %d", i, i%4, q.CorrectIndex)
		}
	}
	if qs[3].Difficulty != domain.Easy || qs[4].Difficulty != domain.Medium {
		t.Error("Expected difficulties to cycle easy, medium, hard")
	}
	if !strings.HasPrefix(qs[1].Explanation, "The correct answer is Option B ") {
		t.Errorf("Unexpected explanation %q", qs[1].Explanation)
	}
	if qs[4].Tags[0] != "fundamentals" {
		t.Errorf("Expected tags to cycle, got %v", qs[4].Tags)
	}
}

func TestSummary(t *testing.T) {
	s := Summary("deck")
	if s.ItemID != "deck" || s.ID == "" || s.TLDR == "" {
		t.Errorf("Unexpected summary %+v", s)
	}
	if len(s.Bullets) != 4 || len(s.Outline) != 5 {
		t.Errorf("Expected 4 bullets and 5 chapters, got %d and %d", len(s.Bullets), len(s.Outline))
	}
}
