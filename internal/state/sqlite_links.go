package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/tmplsync/pkg/core"
	"github.com/leapstack-labs/tmplsync/pkg/params"
)

// SaveLink creates or replaces the link for an implementation.
func (s *SQLiteStore) SaveLink(implementation string, link *core.TemplateLink) error {
	if s.db == nil {
		return errNotOpened
	}
	if link == nil {
		return fmt.Errorf("link for %s is nil", implementation)
	}

	s.logger.Debug("saving template link",
		slog.String("implementation", implementation),
		slog.String("template", link.TemplateName))

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx(),
		`INSERT INTO template_links (implementation, template_name, variables, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(implementation) DO UPDATE SET
		   template_name = excluded.template_name,
		   variables = excluded.variables,
		   updated_at = excluded.updated_at`,
		implementation, link.TemplateName, link.VariablesText(), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save link for %s: %w", implementation, err)
	}
	return nil
}

// GetLink retrieves the link for an implementation, or nil if it has none.
func (s *SQLiteStore) GetLink(implementation string) (*core.TemplateLink, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	var templateName, variables string
	err := s.db.QueryRowContext(ctx(),
		`SELECT template_name, variables FROM template_links WHERE implementation = ?`,
		implementation,
	).Scan(&templateName, &variables)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link for %s: %w", implementation, err)
	}

	return core.NewTemplateLink(templateName, params.Parse(variables)), nil
}

// ListLinks returns every link keyed by implementation name.
func (s *SQLiteStore) ListLinks() (map[string]*core.TemplateLink, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx(),
		`SELECT implementation, template_name, variables FROM template_links ORDER BY implementation`)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	links := make(map[string]*core.TemplateLink)
	for rows.Next() {
		var implementation, templateName, variables string
		if err := rows.Scan(&implementation, &templateName, &variables); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links[implementation] = core.NewTemplateLink(templateName, params.Parse(variables))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return links, nil
}

// DeleteLink removes an implementation's link.
func (s *SQLiteStore) DeleteLink(implementation string) error {
	if s.db == nil {
		return errNotOpened
	}

	if _, err := s.db.ExecContext(ctx(),
		`DELETE FROM template_links WHERE implementation = ?`, implementation); err != nil {
		return fmt.Errorf("failed to delete link for %s: %w", implementation, err)
	}
	return nil
}

// RenameTemplateReferences points every link naming oldName at newName.
func (s *SQLiteStore) RenameTemplateReferences(oldName, newName string) (int64, error) {
	if s.db == nil {
		return 0, errNotOpened
	}

	result, err := s.db.ExecContext(ctx(),
		`UPDATE template_links SET template_name = ?, updated_at = ? WHERE template_name = ?`,
		newName, time.Now().UTC(), oldName,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to rename template references %s -> %s: %w", oldName, newName, err)
	}

	n, _ := result.RowsAffected()
	s.logger.Debug("renamed template references",
		slog.String("from", oldName), slog.String("to", newName), slog.Int64("links", n))
	return n, nil
}

// RenameImplementation re-keys an implementation's link.
func (s *SQLiteStore) RenameImplementation(oldName, newName string) error {
	if s.db == nil {
		return errNotOpened
	}

	if _, err := s.db.ExecContext(ctx(),
		`UPDATE template_links SET implementation = ?, updated_at = ? WHERE implementation = ?`,
		newName, time.Now().UTC(), oldName,
	); err != nil {
		return fmt.Errorf("failed to rename implementation %s -> %s: %w", oldName, newName, err)
	}
	return nil
}
