package domain

import (
	"fmt"
	"time"
)

// Difficulty is informational and never affects grading.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// IsValid reports whether d is one of the known difficulties.
func (d Difficulty) IsValid() bool {
	switch d {
	case Easy, Medium, Hard:
		return true
	}
	return false
}

// ParseDifficulty accepts "easy", "medium" or "hard".
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(s)
	if !d.IsValid() {
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
	return d, nil
}

// MCQ is a multiple choice question.
type MCQ struct {
	ID           string   `validate:"required"`
	ItemID       string   `validate:"required"`
	Question     string   `validate:"required"`
	Options      []string `validate:"min=2,dive,required"`
	CorrectIndex int      `validate:"gte=0"`
	Explanation  string
	Difficulty   Difficulty `validate:"oneof=easy medium hard"`
	Tags         []string
}

// QuizSubmission is one answer. IsCorrect is fixed when the answer is submitted.
type QuizSubmission struct {
	QuestionID    string
	SelectedIndex int
	IsCorrect     bool
	TimeSpent     time.Duration
}

// QuizSession is a run through an ordered set of questions.
// CompletedAt and Score are either both nil or both set.
type QuizSession struct {
	ID          string
	ItemID      string
	Questions   []MCQ
	Submissions []QuizSubmission
	StartedAt   time.Time
	CompletedAt *time.Time
	Score       *int
}

// Completed reports whether the session has been finalised.
func (s *QuizSession) Completed() bool {
	return s.CompletedAt != nil
}

// Question returns the session question with the given id.
func (s *QuizSession) Question(id string) (MCQ, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return MCQ{}, false
}
