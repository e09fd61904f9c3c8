package web

import (
	"net/http"

	"github.com/conorfennell/knolstudy/internal/analytics"
	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/review"
)

type deckRow struct {
	Item     domain.Item
	Cards    int
	Due      int
	Question int
}

// handleIndex lists every item with its due card count.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	items, err := s.db.ListItems()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	now := s.now()
	rows := make([]deckRow, 0, len(items))
	totalDue := 0
	for _, item := range items {
		cards, err := s.db.GetFlashcards(item.ID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		questions, err := s.db.GetMCQs(item.ID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		due := len(review.Due(cards, now))
		totalDue += due
		rows = append(rows, deckRow{Item: item, Cards: len(cards), Due: due, Question: len(questions)})
	}
	s.render(w, http.StatusOK, "index", map[string]any{
		"Decks":    rows,
		"TotalDue": totalDue,
	})
}

type cardView struct {
	Card     domain.Flashcard
	ItemID   string
	Cursor   int
	DueCount int
	Ratings  []review.Rating
}

// handleNextReview renders the front of the due card at the cursor.
// The item query value scopes the due set; empty means every item.
func (s *Server) handleNextReview(w http.ResponseWriter, r *http.Request) {
	itemID := r.FormValue("item")
	cursor, err := intValue(r, "cursor", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderNext(w, r, itemID, cursor)
}

func (s *Server) renderNext(w http.ResponseWriter, r *http.Request, itemID string, cursor int) {
	cards, err := s.db.GetFlashcards(itemID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	now := s.now()
	card, ok := review.SelectDue(cards, now, cursor)
	if !ok {
		s.render(w, http.StatusOK, "no_due", map[string]any{"ItemID": itemID})
		return
	}
	s.render(w, http.StatusOK, "card_front", cardView{
		Card:     card,
		ItemID:   itemID,
		Cursor:   cursor,
		DueCount: len(review.Due(cards, now)),
	})
}

// handleShowAnswer renders the back of a card with the rating buttons.
func (s *Server) handleShowAnswer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cursor, err := intValue(r, "cursor", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	card, err := s.db.FindFlashcard(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if card == nil {
		s.fail(w, r, notFound("flashcard", id))
		return
	}
	s.render(w, http.StatusOK, "card_back", cardView{
		Card:    *card,
		ItemID:  r.FormValue("item"),
		Cursor:  cursor,
		Ratings: []review.Rating{review.Again, review.Hard, review.Good, review.Easy},
	})
}

// handlePostReview applies a rating, records it and renders the next card.
// The cursor is advanced by one after every review.
func (s *Server) handlePostReview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rating, err := review.ParseRating(r.PostFormValue("rating"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cursor, err := intValue(r, "cursor", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	itemID := r.PostFormValue("item")

	if err := s.rate(id, rating); err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderNext(w, r, itemID, cursor+1)
}

func (s *Server) rate(id string, rating review.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, err := s.db.FindFlashcard(id)
	if err != nil {
		return err
	}
	if card == nil {
		return notFound("flashcard", id)
	}
	now := s.now()
	updated, err := review.Rate(*card, rating, now)
	if err != nil {
		return err
	}
	if err := s.db.UpdateFlashcardSchedule(updated); err != nil {
		return err
	}

	s.tracker.RecordFlashcardReview(analytics.ReviewOutcome{
		ItemID:  updated.ItemID,
		Tag:     updated.Topic(),
		Correct: rating != review.Again,
	})
	s.studied(now)
	return nil
}
