package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/conorfennell/knolstudy/internal/domain"
)

const mcqColumns = `id, item_id, question, options, correct_index, explanation, difficulty, tags`

func scanMCQ(r rowScanner) (domain.MCQ, error) {
	var (
		q             domain.MCQ
		options, tags string
		difficulty    string
	)
	if err := r.Scan(&q.ID, &q.ItemID, &q.Question, &options, &q.CorrectIndex, &q.Explanation, &difficulty, &tags); err != nil {
		return q, err
	}
	q.Difficulty = domain.Difficulty(difficulty)
	if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
		return q, fmt.Errorf("decode options of %s: %w", q.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &q.Tags); err != nil {
		return q, fmt.Errorf("decode tags of %s: %w", q.ID, err)
	}
	return q, nil
}

// InsertMCQ stores a new multiple choice question.
func (db *DB) InsertMCQ(q domain.MCQ, origin Origin) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("failed to encode options of %s: %w", q.ID, err)
	}
	tags := q.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags of %s: %w", q.ID, err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO mcqs (`+mcqColumns+`, origin)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		q.ID,
		q.ItemID,
		q.Question,
		string(options),
		q.CorrectIndex,
		q.Explanation,
		string(q.Difficulty),
		string(tagsJSON),
		string(origin),
	)
	if err != nil {
		return fmt.Errorf("failed to insert question %s: %w", q.ID, err)
	}
	return nil
}

// FindMCQ retrieves a question by id. It returns nil when there is none.
func (db *DB) FindMCQ(id string) (*domain.MCQ, error) {
	q, err := scanMCQ(db.conn.QueryRow(`SELECT `+mcqColumns+` FROM mcqs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find question %s: %w", id, err)
	}
	return &q, nil
}

// GetMCQs returns the questions of an item in insertion order.
func (db *DB) GetMCQs(itemID string) ([]domain.MCQ, error) {
	rows, err := db.conn.Query(`
		SELECT `+mcqColumns+` FROM mcqs
		WHERE item_id = ?
		ORDER BY rowid
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions for item %s: %w", itemID, err)
	}
	defer rows.Close()

	var qs []domain.MCQ
	for rows.Next() {
		q, err := scanMCQ(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question row for item %s: %w", itemID, err)
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

// GetMCQIDsBySourceID returns the ids of questions with the given origin
// belonging to any item of a source.
func (db *DB) GetMCQIDsBySourceID(sourceID int64, origin Origin) ([]string, error) {
	return db.queryIDs(`
		SELECT m.id FROM mcqs m
		JOIN items i ON i.id = m.item_id
		WHERE i.source_id = ? AND m.origin = ?
	`, sourceID, string(origin))
}

// DeleteMCQ removes a question by id.
func (db *DB) DeleteMCQ(id string) error {
	if _, err := db.conn.Exec(`DELETE FROM mcqs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete question %s: %w", id, err)
	}
	return nil
}
