package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/knolstudy/internal/analytics"
	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/quiz"
	"github.com/conorfennell/knolstudy/internal/storage"
)

type quizView struct {
	Session  *domain.QuizSession
	Answered map[string]bool
}

func newQuizView(s *domain.QuizSession) quizView {
	answered := make(map[string]bool, len(s.Submissions))
	for _, sub := range s.Submissions {
		answered[sub.QuestionID] = true
	}
	return quizView{Session: s, Answered: answered}
}

// handleStartQuiz draws questions for an item and opens a session.
func (s *Server) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	itemID := r.PostFormValue("item")
	if itemID == "" {
		s.fail(w, r, badRequest("item cannot be empty"))
		return
	}
	filter, err := s.quizFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	item, err := s.db.FindItem(itemID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if item == nil {
		s.fail(w, r, notFound("item", itemID))
		return
	}
	pool, err := s.db.GetMCQs(itemID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	questions := quiz.Select(pool, filter)
	if len(questions) == 0 {
		s.fail(w, r, quiz.ErrEmptySession)
		return
	}

	session := quiz.NewSession(uuid.NewString(), itemID, questions, s.now())
	if err := s.db.CreateQuizSession(session); err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, http.StatusCreated, "quiz", newQuizView(session))
}

func (s *Server) quizFilter(r *http.Request) (quiz.Filter, error) {
	f := quiz.Filter{Limit: s.quizSize}
	if raw := r.PostFormValue("difficulty"); raw != "" {
		d, err := domain.ParseDifficulty(raw)
		if err != nil {
			return f, badRequest("%v", err)
		}
		f.Difficulty = d
	}
	for _, tag := range strings.Split(r.PostFormValue("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			f.Tags = append(f.Tags, tag)
		}
	}
	limit, err := intValue(r, "count", s.quizSize)
	if err != nil {
		return f, err
	}
	if limit <= 0 {
		return f, badRequest("count must be positive, got %d", limit)
	}
	f.Limit = limit
	return f, nil
}

// handleGetQuiz shows a session: open questions while running, the
// results once completed.
func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if session.Completed() {
		s.renderResults(w, r, session)
		return
	}
	s.render(w, http.StatusOK, "quiz", newQuizView(session))
}

// handleAnswer grades one answer and renders instant feedback.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	questionID := r.PostFormValue("question")
	if questionID == "" {
		s.fail(w, r, badRequest("question cannot be empty"))
		return
	}
	selected, err := intValue(r, "selected", -1)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	spentMs, err := intValue(r, "time_spent_ms", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.session(sessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if session.Completed() {
		s.fail(w, r, quiz.ErrAlreadyCompleted)
		return
	}
	sub, feedback, err := quiz.Submit(session, questionID, selected, time.Duration(spentMs)*time.Millisecond)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.db.AddQuizSubmission(session.ID, sub); err != nil {
		s.fail(w, r, err)
		return
	}

	question, _ := session.Question(questionID)
	s.render(w, http.StatusOK, "quiz_feedback", map[string]any{
		"Session":  session,
		"Question": question,
		"Selected": selected,
		"Feedback": feedback,
	})
}

// handleComplete scores a session, stores the score and feeds analytics.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.session(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	now := s.now()
	score, err := quiz.Complete(session, now)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.db.CompleteQuizSession(session.ID, now, score); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = quiz.ErrAlreadyCompleted
		}
		s.fail(w, r, err)
		return
	}

	s.tracker.RecordQuizCompletion(analytics.QuizOutcome{
		ItemID:   session.ItemID,
		Score:    score,
		Tags:     quiz.Tags(session).Sorted(),
		WeakTags: quiz.WeakTags(session).Sorted(),
	})
	s.tracker.RecordStudyTime(session.ItemID, now.Sub(session.StartedAt).Minutes())
	s.studied(now)

	s.renderResults(w, r, session)
}

func (s *Server) renderResults(w http.ResponseWriter, r *http.Request, session *domain.QuizSession) {
	result, err := quiz.Results(session, s.now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, http.StatusOK, "quiz_results", map[string]any{
		"Session": session,
		"Result":  result,
	})
}

func (s *Server) session(id string) (*domain.QuizSession, error) {
	session, err := s.db.FindQuizSession(id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, notFound("quiz session", id)
	}
	return session, nil
}
