package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetRenderedHash returns the hash of an implementation's last rendered
// document, or "" if it was never rendered.
func (s *SQLiteStore) GetRenderedHash(implementation string) (string, error) {
	if s.db == nil {
		return "", errNotOpened
	}

	var hash string
	err := s.db.QueryRowContext(ctx(),
		`SELECT content_hash FROM rendered_hashes WHERE implementation = ?`, implementation,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil // Not found, return empty string
	}
	if err != nil {
		return "", fmt.Errorf("failed to get rendered hash: %w", err)
	}
	return hash, nil
}

// SetRenderedHash stores the hash of an implementation's rendered document.
func (s *SQLiteStore) SetRenderedHash(implementation, hash string) error {
	if s.db == nil {
		return errNotOpened
	}

	if _, err := s.db.ExecContext(ctx(),
		`INSERT INTO rendered_hashes (implementation, content_hash, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(implementation) DO UPDATE SET content_hash = excluded.content_hash, updated_at = excluded.updated_at`,
		implementation, hash, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to set rendered hash: %w", err)
	}
	return nil
}

// RenameRenderedHash re-keys a stored hash after an implementation rename.
func (s *SQLiteStore) RenameRenderedHash(oldName, newName string) error {
	if s.db == nil {
		return errNotOpened
	}

	if _, err := s.db.ExecContext(ctx(),
		`UPDATE rendered_hashes SET implementation = ? WHERE implementation = ?`, newName, oldName,
	); err != nil {
		return fmt.Errorf("failed to rename rendered hash: %w", err)
	}
	return nil
}
