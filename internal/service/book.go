// Package service implements the library operations behind the HTTP API.
// Handlers resolve the caller and pass its user ID explicitly; services never
// read identity from the context.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shelfapp/shelf-server/internal/domain"
	domainerrors "github.com/shelfapp/shelf-server/internal/errors"
	"github.com/shelfapp/shelf-server/internal/id"
	"github.com/shelfapp/shelf-server/internal/media/images"
	"github.com/shelfapp/shelf-server/internal/metadata"
	"github.com/shelfapp/shelf-server/internal/search"
	"github.com/shelfapp/shelf-server/internal/store"
	"github.com/shelfapp/shelf-server/internal/store/sqlite"
	"github.com/shelfapp/shelf-server/internal/validation"
)

// CoverStore persists a cover image for a catalog book from a remote URL.
type CoverStore interface {
	DownloadThumbnail(ctx context.Context, book *domain.Book, url string) error
}

// BookService manages catalog books and users' library entries.
type BookService struct {
	store      *sqlite.Store
	index      *search.Index
	lookup     metadata.MetadataLookup
	covers     CoverStore
	coverFiles *images.Storage
	logger     *slog.Logger
	now        func() time.Time
}

// NewBookService creates a new book service.
func NewBookService(
	store *sqlite.Store,
	index *search.Index,
	lookup metadata.MetadataLookup,
	covers CoverStore,
	coverFiles *images.Storage,
	logger *slog.Logger,
) *BookService {
	return &BookService{
		store:      store,
		index:      index,
		lookup:     lookup,
		covers:     covers,
		coverFiles: coverFiles,
		logger:     logger,
		now:        time.Now,
	}
}

// ManualBookRequest is the input for adding a book without a metadata lookup.
type ManualBookRequest struct {
	Title       string
	Subtitle    *string
	Author      string
	Description *string
	ISBN10      *string
	ISBN13      *string
	PageCount   *int
	Language    *string
	PublishDate *string
	Tags        []string
}

// UpdateBookRequest carries optional field updates. Nil fields are unchanged;
// a nil Tags leaves tags alone, a non-nil Tags replaces them.
type UpdateBookRequest struct {
	Title       *string
	Subtitle    *string
	Author      *string
	Description *string
	ISBN10      *string
	ISBN13      *string
	PageCount   *int
	Language    *string
	PublishDate *string
	Tags        *[]string
}

// ListOptions selects one page of a user's library.
type ListOptions struct {
	Search string
	Read   *bool
	Tag    string
	Sort   store.SortCriteria
	Page   store.PaginationParams
}

// Cover is a cover image ready to serve.
type Cover struct {
	Data        []byte
	BlurHash    string
	Placeholder bool
}

// AddBook adds the book with the given ISBN to userID's library, creating
// the catalog entry from a metadata lookup when it is not known yet.
// Returns the library entry ID.
func (s *BookService) AddBook(ctx context.Context, userID, isbn string) (string, error) {
	isbn, err := validation.ValidateRequired(isbn, "isbn")
	if err != nil {
		return "", err
	}
	isbn = domain.NormalizeISBN(isbn)

	book, err := s.store.GetBookByISBN(ctx, isbn)
	switch {
	case errors.Is(err, store.ErrNotFound):
		book, err = s.createFromLookup(ctx, isbn)
		if err != nil {
			return "", err
		}
	case err != nil:
		return "", fmt.Errorf("get book by isbn: %w", err)
	}

	if _, err := s.store.GetUserBookForBook(ctx, book.ID, userID); err == nil {
		return "", domainerrors.BookAlreadyAdded("Book already added")
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("get user book: %w", err)
	}

	ub := &domain.UserBook{
		ID:         id.MustGenerate("ub"),
		UserID:     userID,
		BookID:     book.ID,
		CreateDate: s.now(),
	}
	if err := s.store.CreateUserBook(ctx, ub); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return "", domainerrors.BookAlreadyAdded("Book already added")
		}
		return "", fmt.Errorf("create user book: %w", err)
	}

	s.logger.Info("book added",
		"user_book_id", ub.ID,
		"book_id", book.ID,
		"user_id", userID,
	)
	return ub.ID, nil
}

// createFromLookup fetches metadata for isbn and stores it as a new catalog
// book. A concurrent insert of the same ISBN resolves to the winning row.
func (s *BookService) createFromLookup(ctx context.Context, isbn string) (*domain.Book, error) {
	result, err := s.lookup.SearchBook(ctx, isbn)
	if err != nil {
		s.logger.Info("metadata lookup failed", "isbn", isbn, "error", err)
		return nil, domainerrors.BookNotFound("No book found with ISBN: " + isbn).WithCause(err)
	}

	book := result.Book(uuid.NewString(), s.now())
	if err := s.store.CreateBook(ctx, book); err != nil {
		if !errors.Is(err, store.ErrAlreadyExists) {
			return nil, fmt.Errorf("create book: %w", err)
		}
		winner, rerr := s.findByAnyISBN(ctx, isbn, book.ISBN13, book.ISBN10)
		if rerr != nil {
			return nil, fmt.Errorf("re-read book after conflict: %w", rerr)
		}
		return winner, nil
	}

	s.indexBook(book)

	if result.ThumbnailURL != "" {
		if err := s.covers.DownloadThumbnail(ctx, book, result.ThumbnailURL); err != nil {
			s.logger.Warn("failed to download cover",
				"book_id", book.ID,
				"url", result.ThumbnailURL,
				"error", err,
			)
		}
	}

	s.logger.Info("book created from metadata", "book_id", book.ID, "isbn", isbn, "source", result.Source)
	return book, nil
}

func (s *BookService) findByAnyISBN(ctx context.Context, isbn string, others ...*string) (*domain.Book, error) {
	candidates := []string{isbn}
	for _, o := range others {
		if o != nil && *o != "" {
			candidates = append(candidates, *o)
		}
	}
	var lastErr error
	for _, c := range candidates {
		book, err := s.store.GetBookByISBN(ctx, c)
		if err == nil {
			return book, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// AddManual creates a catalog book from user input and adds it to userID's
// library with the given tags, all in one transaction.
func (s *BookService) AddManual(ctx context.Context, userID string, req ManualBookRequest) (string, error) {
	title, err := validation.ValidateLength(&req.Title, "title", 1, 255, false)
	if err != nil {
		return "", err
	}
	subtitle, err := validation.ValidateLength(req.Subtitle, "subtitle", 1, 255, true)
	if err != nil {
		return "", err
	}
	author, err := validation.ValidateLength(&req.Author, "author", 1, 255, false)
	if err != nil {
		return "", err
	}
	description, err := validation.ValidateLength(req.Description, "description", 1, 4000, true)
	if err != nil {
		return "", err
	}
	isbn10, err := validateISBN(req.ISBN10, "isbn10", 10)
	if err != nil {
		return "", err
	}
	isbn13, err := validateISBN(req.ISBN13, "isbn13", 13)
	if err != nil {
		return "", err
	}
	language, err := validateLanguage(req.Language)
	if err != nil {
		return "", err
	}
	publishDate, err := validation.ValidateDate(req.PublishDate, "publish_date", true)
	if err != nil {
		return "", err
	}
	if err := validatePageCount(req.PageCount); err != nil {
		return "", err
	}

	if isbn10 == nil && isbn13 == nil {
		return "", domainerrors.Validation("ISBN 10 or ISBN 13 must be set")
	}
	for _, isbn := range []*string{isbn10, isbn13} {
		if isbn == nil {
			continue
		}
		if _, err := s.store.GetBookByISBN(ctx, *isbn); err == nil {
			return "", domainerrors.BookAlreadyAdded("Book already added")
		} else if !errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("get book by isbn: %w", err)
		}
	}

	tagIDs := dedupe(req.Tags)
	if err := s.checkTags(ctx, userID, tagIDs); err != nil {
		return "", err
	}

	now := s.now()
	book := &domain.Book{
		ID:          uuid.NewString(),
		Title:       *title,
		Subtitle:    subtitle,
		Author:      *author,
		Description: description,
		ISBN10:      isbn10,
		ISBN13:      isbn13,
		PageCount:   req.PageCount,
		Language:    language,
		PublishDate: publishDate,
		CreatedAt:   now,
	}
	ub := &domain.UserBook{
		ID:         id.MustGenerate("ub"),
		UserID:     userID,
		BookID:     book.ID,
		CreateDate: now,
	}

	if err := s.store.CreateLibraryEntry(ctx, book, ub, tagIDs); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return "", domainerrors.BookAlreadyAdded("Book already added")
		}
		return "", fmt.Errorf("create library entry: %w", err)
	}

	s.indexBook(book)

	s.logger.Info("book added manually",
		"user_book_id", ub.ID,
		"book_id", book.ID,
		"user_id", userID,
		"tags", len(tagIDs),
	)
	return ub.ID, nil
}

// Update applies req to the catalog book behind library entry userBookID.
func (s *BookService) Update(ctx context.Context, userID, userBookID string, req UpdateBookRequest) (string, error) {
	ub, err := s.getUserBook(ctx, userID, userBookID)
	if err != nil {
		return "", err
	}

	var patch domain.BookPatch
	if patch.Title, err = validation.ValidateLength(req.Title, "title", 1, 255, true); err != nil {
		return "", err
	}
	if patch.Subtitle, err = validation.ValidateLength(req.Subtitle, "subtitle", 1, 255, true); err != nil {
		return "", err
	}
	if patch.Author, err = validation.ValidateLength(req.Author, "author", 1, 255, true); err != nil {
		return "", err
	}
	if patch.Description, err = validation.ValidateLength(req.Description, "description", 1, 4000, true); err != nil {
		return "", err
	}
	if patch.ISBN10, err = validateISBN(req.ISBN10, "isbn10", 10); err != nil {
		return "", err
	}
	if patch.ISBN13, err = validateISBN(req.ISBN13, "isbn13", 13); err != nil {
		return "", err
	}
	if patch.Language, err = validateLanguage(req.Language); err != nil {
		return "", err
	}
	if patch.PublishDate, err = validation.ValidateDate(req.PublishDate, "publish_date", true); err != nil {
		return "", err
	}
	if err := validatePageCount(req.PageCount); err != nil {
		return "", err
	}
	patch.PageCount = req.PageCount

	book, err := s.store.GetBook(ctx, ub.BookID)
	if err != nil {
		return "", fmt.Errorf("get book: %w", err)
	}

	for _, change := range []struct {
		next    *string
		current *string
	}{
		{patch.ISBN10, book.ISBN10},
		{patch.ISBN13, book.ISBN13},
	} {
		if change.next == nil || (change.current != nil && *change.current == *change.next) {
			continue
		}
		other, err := s.store.GetBookByISBN(ctx, *change.next)
		if err == nil && other.ID != book.ID {
			return "", domainerrors.BookAlreadyAdded("Book already added")
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("get book by isbn: %w", err)
		}
	}

	var tagIDs []string
	if req.Tags != nil {
		tagIDs = dedupe(*req.Tags)
		if err := s.checkTags(ctx, userID, tagIDs); err != nil {
			return "", err
		}
	}

	patch.Apply(book)
	if err := s.store.UpdateLibraryEntry(ctx, book, ub.ID, tagIDs, req.Tags != nil); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return "", domainerrors.BookAlreadyAdded("Book already added")
		}
		return "", fmt.Errorf("update library entry: %w", err)
	}

	s.indexBook(book)

	s.logger.Info("book updated", "user_book_id", ub.ID, "book_id", book.ID, "user_id", userID)
	return ub.ID, nil
}

// Get returns the caller's library entry with its book and tags.
func (s *BookService) Get(ctx context.Context, userID, userBookID string) (*domain.LibraryEntry, error) {
	entry, err := s.store.GetLibraryEntry(ctx, userBookID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, bookNotFound(userBookID)
		}
		return nil, fmt.Errorf("get library entry: %w", err)
	}
	return entry, nil
}

// List returns one page of userID's library. Free text goes through the
// search index; an unknown tag name is ignored.
func (s *BookService) List(ctx context.Context, userID string, opts ListOptions) (*store.PaginatedResult[domain.LibraryEntry], error) {
	if !opts.Sort.Column.Valid() {
		return nil, domainerrors.Validationf("sort_column must be between %d and %d", store.SortByTitle, store.SortByReadDate)
	}

	criteria := store.UserBookCriteria{UserID: userID, Read: opts.Read}

	if q := strings.TrimSpace(opts.Search); q != "" {
		library, err := s.store.LibraryBookIDs(ctx, userID)
		if err != nil {
			return nil, domainerrors.SearchError(err)
		}
		ids, err := s.index.MatchBookIDsIn(ctx, q, library)
		if err != nil {
			return nil, domainerrors.SearchError(err)
		}
		criteria.BookIDs = ids
	}

	if name := strings.TrimSpace(opts.Tag); name != "" {
		tag, err := s.store.GetTagByName(ctx, userID, name)
		switch {
		case err == nil:
			criteria.TagIDs = []string{tag.ID}
		case !errors.Is(err, store.ErrNotFound):
			return nil, domainerrors.SearchError(err)
		}
	}

	result, err := s.store.ListLibrary(ctx, criteria, opts.Sort, opts.Page)
	if err != nil {
		return nil, domainerrors.SearchError(err)
	}
	return result, nil
}

// Delete removes a library entry. The catalog book is kept.
func (s *BookService) Delete(ctx context.Context, userID, userBookID string) error {
	if err := s.store.DeleteUserBook(ctx, userBookID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return bookNotFound(userBookID)
		}
		return fmt.Errorf("delete user book: %w", err)
	}
	s.logger.Info("book deleted", "user_book_id", userBookID, "user_id", userID)
	return nil
}

// SetRead marks a library entry read now, or clears its read date.
func (s *BookService) SetRead(ctx context.Context, userID, userBookID string, read bool) error {
	var readDate *time.Time
	if read {
		now := s.now()
		readDate = &now
	}
	return s.setReadDate(ctx, userID, userBookID, readDate)
}

func (s *BookService) setReadDate(ctx context.Context, userID, userBookID string, readDate *time.Time) error {
	if err := s.store.SetReadDate(ctx, userBookID, userID, readDate); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return bookNotFound(userBookID)
		}
		return fmt.Errorf("set read date: %w", err)
	}
	return nil
}

// UpdateCover replaces the cover of the book behind a library entry with
// the image at url.
func (s *BookService) UpdateCover(ctx context.Context, userID, userBookID, url string) error {
	url, err := validation.ValidateRequired(url, "url")
	if err != nil {
		return err
	}

	ub, err := s.getUserBook(ctx, userID, userBookID)
	if err != nil {
		return err
	}
	book, err := s.store.GetBook(ctx, ub.BookID)
	if err != nil {
		return fmt.Errorf("get book: %w", err)
	}

	if err := s.covers.DownloadThumbnail(ctx, book, url); err != nil {
		s.logger.Warn("cover update failed", "user_book_id", ub.ID, "url", url, "error", err)
		return domainerrors.DownloadCoverError(err)
	}

	s.logger.Info("cover updated", "user_book_id", ub.ID, "book_id", book.ID)
	return nil
}

// CoverImage returns the stored cover for a library entry, or the
// placeholder when none is stored. The lookup is not scoped to a user.
func (s *BookService) CoverImage(ctx context.Context, userBookID string) (*Cover, error) {
	ub, err := s.store.GetUserBookByID(ctx, userBookID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, bookNotFound(userBookID)
		}
		return nil, fmt.Errorf("get user book: %w", err)
	}

	data, err := s.coverFiles.Get(ub.BookID)
	if err != nil {
		if !errors.Is(err, images.ErrNotFound) {
			s.logger.Warn("failed to read cover", "book_id", ub.BookID, "error", err)
		}
		return &Cover{Data: images.Placeholder(), Placeholder: true}, nil
	}
	return &Cover{Data: data, BlurHash: s.coverFiles.BlurHash(ub.BookID)}, nil
}

// Reindex rebuilds the search index from the catalog when it is empty.
func (s *BookService) Reindex(ctx context.Context) error {
	count, err := s.index.DocumentCount()
	if err != nil {
		return fmt.Errorf("count indexed documents: %w", err)
	}
	if count > 0 {
		return nil
	}

	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	if len(books) == 0 {
		return nil
	}
	if err := s.index.IndexBooks(books); err != nil {
		return fmt.Errorf("index books: %w", err)
	}
	s.logger.Info("search index rebuilt", "books", len(books))
	return nil
}

func (s *BookService) getUserBook(ctx context.Context, userID, userBookID string) (*domain.UserBook, error) {
	ub, err := s.store.GetUserBook(ctx, userBookID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, bookNotFound(userBookID)
		}
		return nil, fmt.Errorf("get user book: %w", err)
	}
	return ub, nil
}

// checkTags fails with TagNotFound naming the first ID userID does not own.
func (s *BookService) checkTags(ctx context.Context, userID string, tagIDs []string) error {
	missing, err := s.store.MissingTagIDs(ctx, userID, tagIDs)
	if err != nil {
		return fmt.Errorf("check tags: %w", err)
	}
	if len(missing) > 0 {
		return domainerrors.TagNotFound(missing[0])
	}
	return nil
}

// indexBook refreshes the search document. Index failures are logged only.
func (s *BookService) indexBook(book *domain.Book) {
	if err := s.index.IndexBook(book); err != nil {
		s.logger.Warn("failed to index book", "book_id", book.ID, "error", err)
	}
}

func bookNotFound(userBookID string) error {
	return domainerrors.BookNotFound("Book not found: " + userBookID)
}

func validateISBN(value *string, name string, length int) (*string, error) {
	if value == nil {
		return nil, nil
	}
	normalized := domain.NormalizeISBN(*value)
	if strings.TrimSpace(*value) != "" && normalized == "" {
		return nil, domainerrors.Validationf("%s must be exactly %d characters", name, length)
	}
	return validation.ValidateExactLength(&normalized, name, length, true)
}

func validateLanguage(value *string) (*string, error) {
	lang, err := validation.ValidateExactLength(value, "language", 2, true)
	if err != nil || lang == nil {
		return lang, err
	}
	lower := strings.ToLower(*lang)
	return &lower, nil
}

func validatePageCount(v *int) error {
	if v != nil && *v < 0 {
		return domainerrors.Validation("page_count must not be negative")
	}
	return nil
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
