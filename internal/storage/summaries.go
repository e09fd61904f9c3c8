package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// InsertSummary stores a generated summary for an item.
func (db *DB) InsertSummary(s domain.Summary, createdAt time.Time) error {
	bullets, err := json.Marshal(s.Bullets)
	if err != nil {
		return fmt.Errorf("failed to encode summary %s: %w", s.ID, err)
	}
	outline, err := json.Marshal(s.Outline)
	if err != nil {
		return fmt.Errorf("failed to encode summary %s: %w", s.ID, err)
	}
	_, err = db.conn.Exec(`
		INSERT INTO summaries (id, item_id, tldr, bullets, outline, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.ItemID, s.TLDR, string(bullets), string(outline), createdAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert summary %s: %w", s.ID, err)
	}
	return nil
}

// FindLatestSummary returns the newest summary of an item, or nil.
func (db *DB) FindLatestSummary(itemID string) (*domain.Summary, error) {
	var (
		s                domain.Summary
		bullets, outline string
	)
	err := db.conn.QueryRow(`
		SELECT id, item_id, tldr, bullets, outline
		FROM summaries WHERE item_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, itemID).Scan(&s.ID, &s.ItemID, &s.TLDR, &bullets, &outline)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find summary for item %s: %w", itemID, err)
	}
	if err := json.Unmarshal([]byte(bullets), &s.Bullets); err != nil {
		return nil, fmt.Errorf("failed to decode summary %s: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(outline), &s.Outline); err != nil {
		return nil, fmt.Errorf("failed to decode summary %s: %w", s.ID, err)
	}
	return &s, nil
}
