package quiz

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// Feedback is the instant result of answering one question.
type Feedback struct {
	IsCorrect    bool
	CorrectIndex int
	Explanation  string
}

// Grade checks a selected option against the answer key. An index outside
// the options is incorrect, not an error.
func Grade(q domain.MCQ, selected int) Feedback {
	return Feedback{
		IsCorrect:    selected == q.CorrectIndex,
		CorrectIndex: q.CorrectIndex,
		Explanation:  q.Explanation,
	}
}

// NewSession starts a session over questions. The slice is copied so later
// changes by the caller do not leak into the session.
func NewSession(id, itemID string, questions []domain.MCQ, now time.Time) *domain.QuizSession {
	return &domain.QuizSession{
		ID:        id,
		ItemID:    itemID,
		Questions: append([]domain.MCQ(nil), questions...),
		StartedAt: now,
	}
}

// Submit grades an answer and appends it to the session.
func Submit(s *domain.QuizSession, questionID string, selected int, timeSpent time.Duration) (domain.QuizSubmission, Feedback, error) {
	q, ok := s.Question(questionID)
	if !ok {
		return domain.QuizSubmission{}, Feedback{}, fmt.Errorf("%w: %s", ErrQuestionNotFound, questionID)
	}
	if timeSpent < 0 {
		timeSpent = 0
	}
	fb := Grade(q, selected)
	sub := domain.QuizSubmission{
		QuestionID:    questionID,
		SelectedIndex: selected,
		IsCorrect:     fb.IsCorrect,
		TimeSpent:     timeSpent,
	}
	s.Submissions = append(s.Submissions, sub)
	return sub, fb, nil
}

// CorrectCount counts questions with at least one correct submission.
func CorrectCount(s *domain.QuizSession) int {
	correct := make(map[string]bool)
	for _, sub := range s.Submissions {
		if !sub.IsCorrect {
			continue
		}
		if _, ok := s.Question(sub.QuestionID); ok {
			correct[sub.QuestionID] = true
		}
	}
	return len(correct)
}

// Score returns the percentage of questions answered correctly, 0-100.
// Unanswered questions count as wrong.
func Score(s *domain.QuizSession) (int, error) {
	if len(s.Questions) == 0 {
		return 0, ErrEmptySession
	}
	pct := 100 * float64(CorrectCount(s)) / float64(len(s.Questions))
	return int(math.Round(pct)), nil
}

// Complete scores the session and stamps it finished. A session can only
// be completed once.
func Complete(s *domain.QuizSession, now time.Time) (int, error) {
	if s.Completed() {
		return 0, fmt.Errorf("%w: %s", ErrAlreadyCompleted, s.ID)
	}
	score, err := Score(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", err, s.ID)
	}
	completed := now
	s.CompletedAt, s.Score = &completed, &score
	return score, nil
}

// TagSet is an unordered set of topic labels.
type TagSet map[string]struct{}

// Has reports whether tag is in the set.
func (ts TagSet) Has(tag string) bool {
	_, ok := ts[tag]
	return ok
}

// Sorted returns the tags in lexical order.
func (ts TagSet) Sorted() []string {
	out := make([]string, 0, len(ts))
	for tag := range ts {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// WeakTags collects the tags of every question that has an incorrect
// submission. Unanswered questions are not counted.
func WeakTags(s *domain.QuizSession) TagSet {
	weak := make(TagSet)
	for _, sub := range s.Submissions {
		if sub.IsCorrect {
			continue
		}
		q, ok := s.Question(sub.QuestionID)
		if !ok {
			continue
		}
		for _, tag := range q.Tags {
			weak[tag] = struct{}{}
		}
	}
	return weak
}

// Tags collects the tags of every question in the session.
func Tags(s *domain.QuizSession) TagSet {
	all := make(TagSet)
	for _, q := range s.Questions {
		for _, tag := range q.Tags {
			all[tag] = struct{}{}
		}
	}
	return all
}

// Result summarises a session for display and analytics.
type Result struct {
	Score          int
	TotalQuestions int
	CorrectAnswers int
	WeakTags       []string
	Elapsed        time.Duration
}

// Results reports on a session. Elapsed runs to CompletedAt when set,
// otherwise to now.
func Results(s *domain.QuizSession, now time.Time) (Result, error) {
	score, err := Score(s)
	if err != nil {
		return Result{}, err
	}
	end := now
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	}
	return Result{
		Score:          score,
		TotalQuestions: len(s.Questions),
		CorrectAnswers: CorrectCount(s),
		WeakTags:       WeakTags(s).Sorted(),
		Elapsed:        end.Sub(s.StartedAt),
	}, nil
}
