package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shelfapp/shelf-server/internal/domain"
	"github.com/shelfapp/shelf-server/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, title, subtitle, author, description,
	isbn10, isbn13, page_count, language, publish_date, created_at`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var (
		b           domain.Book
		subtitle    sql.NullString
		description sql.NullString
		isbn10      sql.NullString
		isbn13      sql.NullString
		pageCount   sql.NullInt64
		language    sql.NullString
		publishDate sql.NullString
		createdAt   string
	)

	err := scanner.Scan(
		&b.ID,
		&b.Title,
		&subtitle,
		&b.Author,
		&description,
		&isbn10,
		&isbn13,
		&pageCount,
		&language,
		&publishDate,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	b.Subtitle = stringPtr(subtitle)
	b.Description = stringPtr(description)
	b.ISBN10 = stringPtr(isbn10)
	b.ISBN13 = stringPtr(isbn13)
	b.PageCount = intPtr(pageCount)
	b.Language = stringPtr(language)

	if b.PublishDate, err = parseNullableTime(publishDate); err != nil {
		return nil, err
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return &b, nil
}

func insertBook(ctx context.Context, q querier, b *domain.Book) error {
	_, err := q.ExecContext(ctx, `INSERT INTO books (
		id, title, subtitle, author, description,
		isbn10, isbn13, page_count, language, publish_date, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID,
		b.Title,
		nullableString(b.Subtitle),
		b.Author,
		nullableString(b.Description),
		nullableString(b.ISBN10),
		nullableString(b.ISBN13),
		nullableInt(b.PageCount),
		nullableString(b.Language),
		nullTimeString(b.PublishDate),
		formatTime(b.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert book %s: %w", b.ID, store.ErrAlreadyExists)
	}
	return err
}

func updateBook(ctx context.Context, q querier, b *domain.Book) error {
	result, err := q.ExecContext(ctx, `UPDATE books SET
		title = ?, subtitle = ?, author = ?, description = ?,
		isbn10 = ?, isbn13 = ?, page_count = ?, language = ?, publish_date = ?
	WHERE id = ?`,
		b.Title,
		nullableString(b.Subtitle),
		b.Author,
		nullableString(b.Description),
		nullableString(b.ISBN10),
		nullableString(b.ISBN13),
		nullableInt(b.PageCount),
		nullableString(b.Language),
		nullTimeString(b.PublishDate),
		b.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("update book %s: %w", b.ID, store.ErrAlreadyExists)
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

// CreateBook inserts a catalog book. Returns store.ErrAlreadyExists when
// either ISBN is already taken.
func (s *Store) CreateBook(ctx context.Context, b *domain.Book) error {
	return insertBook(ctx, s.db, b)
}

// GetBook returns a catalog book by ID.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	b, err := scanBook(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return b, nil
}

// GetBookByISBN returns the catalog book whose ISBN-10 or ISBN-13 equals isbn.
func (s *Store) GetBookByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	if isbn == "" {
		return nil, store.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE isbn10 = ? OR isbn13 = ? LIMIT 1`, isbn, isbn)
	b, err := scanBook(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return b, nil
}

// UpdateBook writes every mutable column of b.
func (s *Store) UpdateBook(ctx context.Context, b *domain.Book) error {
	return updateBook(ctx, s.db, b)
}

// ListBooks returns the whole catalog ordered by ID.
func (s *Store) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// CountBooks returns the catalog size.
func (s *Store) CountBooks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n)
	return n, err
}
