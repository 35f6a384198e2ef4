package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shelfapp/shelf-server/internal/domain"
	"github.com/shelfapp/shelf-server/internal/store"
)

// tagColumns is the ordered list of columns selected in tag queries.
// Must match the scan order in scanTag.
const tagColumns = `id, user_id, name, color, created_at`

// scanTag scans a sql.Row (or sql.Rows via its Scan method) into a domain.Tag.
func scanTag(scanner interface{ Scan(dest ...any) error }) (*domain.Tag, error) {
	var (
		t         domain.Tag
		createdAt string
	)

	if err := scanner.Scan(&t.ID, &t.UserID, &t.Name, &t.Color, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTag inserts a tag. Returns store.ErrAlreadyExists when the user
// already has a tag with the same name.
func (s *Store) CreateTag(ctx context.Context, t *domain.Tag) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (id, user_id, name, color, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Name, t.Color, formatTime(t.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("create tag %q: %w", t.Name, store.ErrAlreadyExists)
	}
	return err
}

// GetTag returns a tag owned by userID.
func (s *Store) GetTag(ctx context.Context, id, userID string) (*domain.Tag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTag(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return t, nil
}

// GetTagByName returns the user's tag with the given name (case-insensitive).
func (s *Store) GetTagByName(ctx context.Context, userID, name string) (*domain.Tag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE user_id = ? AND name = ?`, userID, name)
	t, err := scanTag(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return t, nil
}

// ListTags returns all of the user's tags ordered by name.
func (s *Store) ListTags(ctx context.Context, userID string) ([]*domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []*domain.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// UpdateTag renames or recolours a tag owned by t.UserID.
func (s *Store) UpdateTag(ctx context.Context, t *domain.Tag) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tags SET name = ?, color = ? WHERE id = ? AND user_id = ?`,
		t.Name, t.Color, t.ID, t.UserID)
	if isUniqueViolation(err) {
		return fmt.Errorf("update tag %q: %w", t.Name, store.ErrAlreadyExists)
	}
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteTag removes a tag owned by userID. Associations cascade.
func (s *Store) DeleteTag(ctx context.Context, id, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// MissingTagIDs returns the IDs from ids that userID does not own, in input order.
func (s *Store) MissingTagIDs(ctx context.Context, userID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM tags WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	owned := make(map[string]struct{}, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owned[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, id := range ids {
		if _, ok := owned[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// SetUserBookTags replaces all tags on a library entry.
func (s *Store) SetUserBookTags(ctx context.Context, userBookID string, tagIDs []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return replaceUserBookTags(ctx, tx, userBookID, tagIDs)
	})
}

// GetUserBookTags returns the tags on a library entry ordered by name.
func (s *Store) GetUserBookTags(ctx context.Context, userBookID string) ([]domain.Tag, error) {
	byEntry, err := tagsForUserBooks(ctx, s.db, []string{userBookID})
	if err != nil {
		return nil, err
	}
	return byEntry[userBookID], nil
}

func replaceUserBookTags(ctx context.Context, q querier, userBookID string, tagIDs []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM user_book_tags WHERE user_book_id = ?`, userBookID); err != nil {
		return fmt.Errorf("delete tags: %w", err)
	}

	seen := make(map[string]struct{}, len(tagIDs))
	for _, tagID := range tagIDs {
		if _, dup := seen[tagID]; dup {
			continue
		}
		seen[tagID] = struct{}{}
		if _, err := q.ExecContext(ctx,
			`INSERT INTO user_book_tags (user_book_id, tag_id) VALUES (?, ?)`,
			userBookID, tagID); err != nil {
			return fmt.Errorf("insert tag %s: %w", tagID, err)
		}
	}
	return nil
}

// tagsForUserBooks loads tags for several entries in one query.
func tagsForUserBooks(ctx context.Context, q querier, userBookIDs []string) (map[string][]domain.Tag, error) {
	result := make(map[string][]domain.Tag, len(userBookIDs))
	if len(userBookIDs) == 0 {
		return result, nil
	}

	args := make([]any, len(userBookIDs))
	for i, id := range userBookIDs {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx, `SELECT ubt.user_book_id, t.id, t.user_id, t.name, t.color, t.created_at
		FROM user_book_tags ubt
		JOIN tags t ON t.id = ubt.tag_id
		WHERE ubt.user_book_id IN (`+placeholders(len(userBookIDs))+`)
		ORDER BY t.name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userBookID string
			t          domain.Tag
			createdAt  string
		)
		if err := rows.Scan(&userBookID, &t.ID, &t.UserID, &t.Name, &t.Color, &createdAt); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		result[userBookID] = append(result[userBookID], t)
	}
	return result, rows.Err()
}
