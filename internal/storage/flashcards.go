package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/knolstudy/internal/domain"
)

const flashcardColumns = `id, item_id, front, back, context, ease, next_review_at, last_review_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlashcard(r rowScanner) (domain.Flashcard, error) {
	var (
		c    domain.Flashcard
		last sql.NullTime
	)
	err := r.Scan(&c.ID, &c.ItemID, &c.Front, &c.Back, &c.Context, &c.Ease, &c.NextReviewAt, &last)
	c.LastReviewAt = timePtr(last)
	return c, err
}

// InsertFlashcard stores a new card.
func (db *DB) InsertFlashcard(card domain.Flashcard, origin Origin) error {
	_, err := db.conn.Exec(`
		INSERT INTO flashcards (`+flashcardColumns+`, origin)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.ID,
		card.ItemID,
		card.Front,
		card.Back,
		card.Context,
		card.Ease,
		card.NextReviewAt.UTC(),
		nullTime(card.LastReviewAt),
		string(origin),
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

// FindFlashcard retrieves a card by id. It returns nil when there is none.
func (db *DB) FindFlashcard(id string) (*domain.Flashcard, error) {
	row := db.conn.QueryRow(`SELECT `+flashcardColumns+` FROM flashcards WHERE id = ?`, id)
	c, err := scanFlashcard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Card not found
		}
		return nil, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	return &c, nil
}

// UpdateFlashcardSchedule writes back the ease and review times of a card.
// Nothing else about the card is changed.
func (db *DB) UpdateFlashcardSchedule(card domain.Flashcard) error {
	res, err := db.conn.Exec(`
		UPDATE flashcards
		SET ease = ?, next_review_at = ?, last_review_at = ?
		WHERE id = ?
	`,
		card.Ease,
		card.NextReviewAt.UTC(),
		nullTime(card.LastReviewAt),
		card.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule for card %s: %w", card.ID, err)
	}
	return expectRow(res, "card "+card.ID)
}

// GetFlashcards returns the cards of an item in insertion order, or every
// card when itemID is empty.
func (db *DB) GetFlashcards(itemID string) ([]domain.Flashcard, error) {
	query := `SELECT ` + flashcardColumns + ` FROM flashcards`
	var args []any
	if itemID != "" {
		query += ` WHERE item_id = ?`
		args = append(args, itemID)
	}
	query += ` ORDER BY rowid`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for item %q: %w", itemID, err)
	}
	defer rows.Close()

	var cards []domain.Flashcard
	for rows.Next() {
		c, err := scanFlashcard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row for item %q: %w", itemID, err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// GetFlashcardIDsBySourceID returns the ids of cards with the given origin
// belonging to any item of a source.
func (db *DB) GetFlashcardIDsBySourceID(sourceID int64, origin Origin) ([]string, error) {
	return db.queryIDs(`
		SELECT f.id FROM flashcards f
		JOIN items i ON i.id = f.item_id
		WHERE i.source_id = ? AND f.origin = ?
	`, sourceID, string(origin))
}

// DeleteFlashcard removes a card by id.
func (db *DB) DeleteFlashcard(id string) error {
	if _, err := db.conn.Exec(`DELETE FROM flashcards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	return nil
}

func (db *DB) queryIDs(query string, args ...any) ([]string, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
