package web

import (
	"net/http"
	"strconv"

	"github.com/conorfennell/knolstudy/internal/analytics"
	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/storage"
	"github.com/conorfennell/knolstudy/internal/studygen"
	decksync "github.com/conorfennell/knolstudy/internal/sync"
)

const maxGenerated = 50

// handleGenerate adds template flashcards, questions and a summary to an
// item. Generated content is kept across syncs.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	nCards, err := intValue(r, "cards", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	nQuestions, err := intValue(r, "questions", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	withSummary, _ := strconv.ParseBool(r.PostFormValue("summary"))
	if nCards < 0 || nQuestions < 0 || nCards > maxGenerated || nQuestions > maxGenerated {
		s.fail(w, r, badRequest("cards and questions must be between 0 and %d", maxGenerated))
		return
	}
	if nCards == 0 && nQuestions == 0 && !withSummary {
		s.fail(w, r, badRequest("nothing to generate"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.db.FindItem(itemID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if item == nil {
		s.fail(w, r, notFound("item", itemID))
		return
	}

	now := s.now()
	for _, card := range studygen.Flashcards(itemID, nCards, now) {
		if err := domain.Validate(card); err != nil {
			s.fail(w, r, err)
			return
		}
		if err := s.db.InsertFlashcard(card, storage.OriginGenerated); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	for _, q := range studygen.Questions(itemID, nQuestions) {
		if err := domain.Validate(q); err != nil {
			s.fail(w, r, err)
			return
		}
		if err := s.db.InsertMCQ(q, storage.OriginGenerated); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	var summary *domain.Summary
	if withSummary {
		sum := studygen.Summary(itemID)
		if err := s.db.InsertSummary(sum, now); err != nil {
			s.fail(w, r, err)
			return
		}
		summary = &sum
	} else if summary, err = s.db.FindLatestSummary(itemID); err != nil {
		s.fail(w, r, err)
		return
	}

	s.render(w, http.StatusCreated, "generated", map[string]any{
		"Item":      item,
		"Cards":     nCards,
		"Questions": nQuestions,
		"Summary":   summary,
	})
}

// handleAnalytics renders study metrics. With an item query value it shows
// that item only.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Global":  s.tracker.Global(),
		"Weakest": s.tracker.WeakestTags(5),
		"Heatmap": s.tracker.MasteryHeatmap(),
	}
	if itemID := r.FormValue("item"); itemID != "" {
		m, ok := s.tracker.Item(itemID)
		if !ok {
			s.fail(w, r, notFound("analytics for item", itemID))
			return
		}
		data["Items"] = []analytics.Metrics{m}
	} else {
		data["Items"] = s.tracker.Items()
	}
	s.render(w, http.StatusOK, "analytics", data)
}

// handleGetSources renders the main sources management page.
func (s *Server) handleGetSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.db.GetAllSources()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, http.StatusOK, "sources", map[string]any{"Sources": sources})
}

// handlePostSource adds a new source and re-renders the source list.
func (s *Server) handlePostSource(w http.ResponseWriter, r *http.Request) {
	path := r.PostFormValue("path")
	if path == "" {
		s.fail(w, r, badRequest("path cannot be empty"))
		return
	}
	if _, err := decksync.AddSource(s.db, path); err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderSourceList(w, r, http.StatusCreated, "source_list", nil)
}

// handleDeleteSource deletes a source with all of its items and re-renders
// the source list.
func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.fail(w, r, badRequest("invalid source ID %q", r.PathValue("id")))
		return
	}

	s.mu.Lock()
	err = s.db.DeleteSource(id)
	s.mu.Unlock()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderSourceList(w, r, http.StatusOK, "source_list", nil)
}

// handlePostSync triggers a manual sync and re-renders the source list.
func (s *Server) handlePostSync(w http.ResponseWriter, r *http.Request) {
	report, err := s.Sync(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderSourceList(w, r, http.StatusOK, "sync_result", &report)
}

func (s *Server) renderSourceList(w http.ResponseWriter, r *http.Request, status int, name string, report *decksync.Report) {
	sources, err := s.db.GetAllSources()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, status, name, map[string]any{
		"Sources": sources,
		"Report":  report,
	})
}
