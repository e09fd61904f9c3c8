package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// CreateQuizSession stores a new session and a snapshot of its questions.
func (db *DB) CreateQuizSession(s *domain.QuizSession) (err error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin quiz session %s: %w", s.ID, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`
		INSERT INTO quiz_sessions (id, item_id, started_at)
		VALUES (?, ?, ?)
	`, s.ID, s.ItemID, s.StartedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert quiz session %s: %w", s.ID, err)
	}

	for i, q := range s.Questions {
		var snapshot []byte
		snapshot, err = json.Marshal(q)
		if err != nil {
			return fmt.Errorf("failed to encode question %s: %w", q.ID, err)
		}
		if _, err = tx.Exec(`
			INSERT INTO quiz_session_questions (session_id, position, question)
			VALUES (?, ?, ?)
		`, s.ID, i, string(snapshot)); err != nil {
			return fmt.Errorf("failed to insert question %s into session %s: %w", q.ID, s.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit quiz session %s: %w", s.ID, err)
	}
	return nil
}

// FindQuizSession loads a session with its questions and submissions.
// It returns nil when there is none.
func (db *DB) FindQuizSession(id string) (*domain.QuizSession, error) {
	var (
		s         = domain.QuizSession{ID: id}
		completed sql.NullTime
		score     sql.NullInt64
	)
	err := db.conn.QueryRow(`
		SELECT item_id, started_at, completed_at, score
		FROM quiz_sessions WHERE id = ?
	`, id).Scan(&s.ItemID, &s.StartedAt, &completed, &score)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find quiz session %s: %w", id, err)
	}
	s.CompletedAt = timePtr(completed)
	if score.Valid {
		v := int(score.Int64)
		s.Score = &v
	}

	if s.Questions, err = db.sessionQuestions(id); err != nil {
		return nil, err
	}
	if s.Submissions, err = db.sessionSubmissions(id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) sessionQuestions(id string) ([]domain.MCQ, error) {
	rows, err := db.conn.Query(`
		SELECT question FROM quiz_session_questions
		WHERE session_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions of session %s: %w", id, err)
	}
	defer rows.Close()

	var qs []domain.MCQ
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan question of session %s: %w", id, err)
		}
		var q domain.MCQ
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, fmt.Errorf("failed to decode question of session %s: %w", id, err)
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

func (db *DB) sessionSubmissions(id string) ([]domain.QuizSubmission, error) {
	rows, err := db.conn.Query(`
		SELECT question_id, selected_index, is_correct, time_spent_ms
		FROM quiz_submissions
		WHERE session_id = ? ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get submissions of session %s: %w", id, err)
	}
	defer rows.Close()

	var subs []domain.QuizSubmission
	for rows.Next() {
		var (
			sub domain.QuizSubmission
			ms  int64
		)
		if err := rows.Scan(&sub.QuestionID, &sub.SelectedIndex, &sub.IsCorrect, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan submission of session %s: %w", id, err)
		}
		sub.TimeSpent = time.Duration(ms) * time.Millisecond
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// AddQuizSubmission appends a graded answer to a session.
func (db *DB) AddQuizSubmission(sessionID string, sub domain.QuizSubmission) error {
	_, err := db.conn.Exec(`
		INSERT INTO quiz_submissions (session_id, question_id, selected_index, is_correct, time_spent_ms)
		VALUES (?, ?, ?, ?, ?)
	`, sessionID, sub.QuestionID, sub.SelectedIndex, sub.IsCorrect, sub.TimeSpent.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to add submission to session %s: %w", sessionID, err)
	}
	return nil
}

// CompleteQuizSession records the score and completion time in a single
// statement. It fails with ErrNotFound when the session is missing or
// already completed.
func (db *DB) CompleteQuizSession(id string, completedAt time.Time, score int) error {
	res, err := db.conn.Exec(`
		UPDATE quiz_sessions
		SET completed_at = ?, score = ?
		WHERE id = ? AND completed_at IS NULL
	`, completedAt.UTC(), score, id)
	if err != nil {
		return fmt.Errorf("failed to complete quiz session %s: %w", id, err)
	}
	return expectRow(res, "open quiz session "+id)
}
