package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shelfapp/shelf-server/internal/domain"
	"github.com/shelfapp/shelf-server/internal/store"
)

const userBookColumns = `id, user_id, book_id, create_date, read_date`

// libraryColumns selects a user_books row joined with its book.
// Must match the scan order in scanLibraryEntry.
const libraryColumns = `ub.id, ub.user_id, ub.book_id, ub.create_date, ub.read_date,
	b.id, b.title, b.subtitle, b.author, b.description,
	b.isbn10, b.isbn13, b.page_count, b.language, b.publish_date, b.created_at`

// sortExpressions maps sort columns to ORDER BY expressions.
var sortExpressions = map[store.SortColumn]string{
	store.SortByTitle:       "b.title COLLATE NOCASE",
	store.SortBySubtitle:    "b.subtitle COLLATE NOCASE",
	store.SortByAuthor:      "b.author COLLATE NOCASE",
	store.SortByLanguage:    "b.language",
	store.SortByPublishDate: "b.publish_date",
	store.SortByCreateDate:  "ub.create_date",
	store.SortByReadDate:    "ub.read_date",
}

func scanUserBook(scanner interface{ Scan(dest ...any) error }) (*domain.UserBook, error) {
	var (
		ub         domain.UserBook
		createDate string
		readDate   sql.NullString
	)
	if err := scanner.Scan(&ub.ID, &ub.UserID, &ub.BookID, &createDate, &readDate); err != nil {
		return nil, err
	}
	var err error
	if ub.CreateDate, err = parseTime(createDate); err != nil {
		return nil, err
	}
	if ub.ReadDate, err = parseNullableTime(readDate); err != nil {
		return nil, err
	}
	return &ub, nil
}

// leadingScanner prepends fixed destinations to every Scan call so the book
// scanner can be reused on joined rows.
type leadingScanner struct {
	scanner interface{ Scan(dest ...any) error }
	head    []any
}

func (l leadingScanner) Scan(dest ...any) error {
	return l.scanner.Scan(append(l.head, dest...)...)
}

func scanLibraryEntry(scanner interface{ Scan(dest ...any) error }) (*domain.LibraryEntry, error) {
	var (
		entry      domain.LibraryEntry
		createDate string
		readDate   sql.NullString
	)

	book, err := scanBook(leadingScanner{
		scanner: scanner,
		head: []any{
			&entry.UserBook.ID,
			&entry.UserBook.UserID,
			&entry.UserBook.BookID,
			&createDate,
			&readDate,
		},
	})
	if err != nil {
		return nil, err
	}
	entry.Book = *book

	if entry.UserBook.CreateDate, err = parseTime(createDate); err != nil {
		return nil, err
	}
	if entry.UserBook.ReadDate, err = parseNullableTime(readDate); err != nil {
		return nil, err
	}
	return &entry, nil
}

func insertUserBook(ctx context.Context, q querier, ub *domain.UserBook) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO user_books (id, user_id, book_id, create_date, read_date) VALUES (?, ?, ?, ?, ?)`,
		ub.ID, ub.UserID, ub.BookID, formatTime(ub.CreateDate), nullTimeString(ub.ReadDate))
	if isUniqueViolation(err) {
		return fmt.Errorf("insert user book for %s: %w", ub.BookID, store.ErrAlreadyExists)
	}
	return err
}

// CreateUserBook adds a catalog book to a user's library. Returns
// store.ErrAlreadyExists when the user already has the book.
func (s *Store) CreateUserBook(ctx context.Context, ub *domain.UserBook) error {
	return insertUserBook(ctx, s.db, ub)
}

// CreateLibraryEntry atomically inserts book (skipped when nil), the library
// entry and its tag associations.
func (s *Store) CreateLibraryEntry(ctx context.Context, book *domain.Book, ub *domain.UserBook, tagIDs []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if book != nil {
			if err := insertBook(ctx, tx, book); err != nil {
				return err
			}
		}
		if err := insertUserBook(ctx, tx, ub); err != nil {
			return err
		}
		return replaceUserBookTags(ctx, tx, ub.ID, tagIDs)
	})
}

// UpdateLibraryEntry atomically writes book and, when replaceTags is set,
// replaces the entry's tags with tagIDs.
func (s *Store) UpdateLibraryEntry(ctx context.Context, book *domain.Book, userBookID string, tagIDs []string, replaceTags bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateBook(ctx, tx, book); err != nil {
			return err
		}
		if !replaceTags {
			return nil
		}
		return replaceUserBookTags(ctx, tx, userBookID, tagIDs)
	})
}

// GetUserBook returns a library entry owned by userID.
func (s *Store) GetUserBook(ctx context.Context, id, userID string) (*domain.UserBook, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userBookColumns+` FROM user_books WHERE id = ? AND user_id = ?`, id, userID)
	ub, err := scanUserBook(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return ub, nil
}

// GetUserBookByID returns a library entry regardless of owner.
func (s *Store) GetUserBookByID(ctx context.Context, id string) (*domain.UserBook, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userBookColumns+` FROM user_books WHERE id = ?`, id)
	ub, err := scanUserBook(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return ub, nil
}

// GetUserBookForBook returns userID's entry for a catalog book.
func (s *Store) GetUserBookForBook(ctx context.Context, bookID, userID string) (*domain.UserBook, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userBookColumns+` FROM user_books WHERE book_id = ? AND user_id = ?`, bookID, userID)
	ub, err := scanUserBook(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return ub, nil
}

// LibraryBookIDs returns the catalog book IDs in userID's library.
func (s *Store) LibraryBookIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT book_id FROM user_books WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteUserBook removes a library entry owned by userID. Tag associations
// cascade; the catalog book is kept.
func (s *Store) DeleteUserBook(ctx context.Context, id, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM user_books WHERE id = ? AND user_id = ?`, id, userID)
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

// SetReadDate sets or clears (nil) the read date of an entry owned by userID.
func (s *Store) SetReadDate(ctx context.Context, id, userID string, readDate *time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE user_books SET read_date = ? WHERE id = ? AND user_id = ?`,
		nullTimeString(readDate), id, userID)
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

// GetLibraryEntry returns an entry owned by userID joined with its book and tags.
func (s *Store) GetLibraryEntry(ctx context.Context, id, userID string) (*domain.LibraryEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+libraryColumns+`
		FROM user_books ub
		JOIN books b ON b.id = ub.book_id
		WHERE ub.id = ? AND ub.user_id = ?`, id, userID)
	entry, err := scanLibraryEntry(row)
	if err != nil {
		return nil, mapNotFound(err)
	}

	tags, err := tagsForUserBooks(ctx, s.db, []string{entry.UserBook.ID})
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	entry.Tags = tags[entry.UserBook.ID]
	return entry, nil
}

// ListLibrary returns one page of a user's library matching criteria.
func (s *Store) ListLibrary(
	ctx context.Context,
	criteria store.UserBookCriteria,
	sort store.SortCriteria,
	page store.PaginationParams,
) (*store.PaginatedResult[domain.LibraryEntry], error) {
	page.Validate()

	if criteria.BookIDs != nil && len(criteria.BookIDs) == 0 {
		return &store.PaginatedResult[domain.LibraryEntry]{Items: []domain.LibraryEntry{}}, nil
	}

	where, args := libraryFilter(criteria)

	var total int
	countQuery := `SELECT COUNT(*) FROM user_books ub JOIN books b ON b.id = ub.book_id WHERE ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count library: %w", err)
	}

	orderBy, ok := sortExpressions[sort.Column]
	if !ok {
		orderBy = sortExpressions[store.SortByCreateDate]
	}
	dir := "DESC"
	if sort.Asc {
		dir = "ASC"
	}

	query := `SELECT ` + libraryColumns + `
		FROM user_books ub
		JOIN books b ON b.id = ub.book_id
		WHERE ` + where + `
		ORDER BY ` + orderBy + ` ` + dir + `, ub.id ` + dir + `
		LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("list library: %w", err)
	}
	defer rows.Close()

	items := make([]domain.LibraryEntry, 0, page.Limit)
	ids := make([]string, 0, page.Limit)
	for rows.Next() {
		entry, err := scanLibraryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan library entry: %w", err)
		}
		items = append(items, *entry)
		ids = append(ids, entry.UserBook.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tags, err := tagsForUserBooks(ctx, s.db, ids)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	for i := range items {
		items[i].Tags = tags[items[i].UserBook.ID]
	}

	return &store.PaginatedResult[domain.LibraryEntry]{Items: items, Total: total}, nil
}

func libraryFilter(criteria store.UserBookCriteria) (string, []any) {
	clauses := []string{"ub.user_id = ?"}
	args := []any{criteria.UserID}

	if len(criteria.BookIDs) > 0 {
		clauses = append(clauses, "ub.book_id IN ("+placeholders(len(criteria.BookIDs))+")")
		for _, id := range criteria.BookIDs {
			args = append(args, id)
		}
	}

	if criteria.Read != nil {
		if *criteria.Read {
			clauses = append(clauses, "ub.read_date IS NOT NULL")
		} else {
			clauses = append(clauses, "ub.read_date IS NULL")
		}
	}

	if len(criteria.TagIDs) > 0 {
		clauses = append(clauses, `EXISTS (SELECT 1 FROM user_book_tags ubt
			WHERE ubt.user_book_id = ub.id AND ubt.tag_id IN (`+placeholders(len(criteria.TagIDs))+`))`)
		for _, id := range criteria.TagIDs {
			args = append(args, id)
		}
	}

	return strings.Join(clauses, " AND "), args
}
