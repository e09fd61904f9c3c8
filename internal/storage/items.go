package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// UpsertItem inserts an item or refreshes its title and path.
func (db *DB) UpsertItem(item domain.Item) error {
	_, err := db.conn.Exec(`
		INSERT INTO items (id, source_id, title, path, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, path = excluded.path
	`, item.ID, item.SourceID, item.Title, item.Path, item.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert item %s: %w", item.ID, err)
	}
	return nil
}

// FindItem retrieves an item by id. It returns nil when there is none.
func (db *DB) FindItem(id string) (*domain.Item, error) {
	var it domain.Item
	err := db.conn.QueryRow(`
		SELECT id, source_id, title, path, created_at
		FROM items WHERE id = ?
	`, id).Scan(&it.ID, &it.SourceID, &it.Title, &it.Path, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find item %s: %w", id, err)
	}
	return &it, nil
}

// ListItems returns every item ordered by title.
func (db *DB) ListItems() ([]domain.Item, error) {
	return db.queryItems(`
		SELECT id, source_id, title, path, created_at
		FROM items ORDER BY title, id
	`)
}

// GetItemsBySourceID returns the items synced from one source.
func (db *DB) GetItemsBySourceID(sourceID int64) ([]domain.Item, error) {
	return db.queryItems(`
		SELECT id, source_id, title, path, created_at
		FROM items WHERE source_id = ? ORDER BY title, id
	`, sourceID)
}

// DeleteItem removes an item and everything attached to it.
func (db *DB) DeleteItem(id string) error {
	if _, err := db.conn.Exec(`DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete item %s: %w", id, err)
	}
	return nil
}

func (db *DB) queryItems(query string, args ...any) ([]domain.Item, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.SourceID, &it.Title, &it.Path, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
