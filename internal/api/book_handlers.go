package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfapp/shelf-server/internal/domain"
	domainerrors "github.com/shelfapp/shelf-server/internal/errors"
	"github.com/shelfapp/shelf-server/internal/service"
	"github.com/shelfapp/shelf-server/internal/store"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "addBook",
		Method:      http.MethodPut,
		Path:        "/api/v1/book",
		Summary:     "Add book by ISBN",
		Description: "Looks the ISBN up in the catalog or with metadata providers and adds it to the library",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAddBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "addManualBook",
		Method:      http.MethodPut,
		Path:        "/api/v1/book/manual",
		Summary:     "Add book manually",
		Description: "Creates a catalog book from the given fields and adds it to the library",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAddManualBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/book/list",
		Summary:     "List books",
		Description: "Returns a page of the library, optionally searched and filtered",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/book/{id}",
		Summary:     "Get book",
		Description: "Returns a library entry with its catalog data and tags",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/book/{id}",
		Summary:     "Update book",
		Description: "Updates catalog fields and replaces tags when given",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBook",
		Method:      http.MethodDelete,
		Path:        "/api/v1/book/{id}",
		Summary:     "Delete book",
		Description: "Removes a book from the library; the catalog book is kept",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "markBookRead",
		Method:      http.MethodPost,
		Path:        "/api/v1/book/{id}/read",
		Summary:     "Mark book read",
		Description: "Sets or clears the read date",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleMarkRead)
}

// === DTOs ===

// IDResponse returns the ID of a created or updated resource.
type IDResponse struct {
	ID string `json:"id" doc:"Resource ID"`
}

// IDOutput wraps an ID response for Huma.
type IDOutput struct {
	Body IDResponse
}

// StatusResponse acknowledges an operation without a result.
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// StatusOutput wraps a status response for Huma.
type StatusOutput struct {
	Body StatusResponse
}

func statusOK() *StatusOutput {
	return &StatusOutput{Body: StatusResponse{Status: "ok"}}
}

// AddBookRequest is the request body for adding a book by ISBN.
type AddBookRequest struct {
	ISBN string `json:"isbn" doc:"ISBN-10 or ISBN-13"`
}

// AddBookInput wraps the add book request for Huma.
type AddBookInput struct {
	Authorization string `header:"Authorization"`
	Body          AddBookRequest
}

// ManualBookRequest is the request body for adding a book by hand.
type ManualBookRequest struct {
	Title       string   `json:"title" doc:"Title (1-255 characters)"`
	Subtitle    *string  `json:"subtitle,omitempty" doc:"Subtitle (1-255 characters)"`
	Author      string   `json:"author" doc:"Author (1-255 characters)"`
	Description *string  `json:"description,omitempty" doc:"Description (1-4000 characters)"`
	ISBN10      *string  `json:"isbn10,omitempty" doc:"ISBN-10; isbn10 or isbn13 is required"`
	ISBN13      *string  `json:"isbn13,omitempty" doc:"ISBN-13; isbn10 or isbn13 is required"`
	PageCount   *int     `json:"page_count,omitempty" doc:"Page count"`
	Language    *string  `json:"language,omitempty" doc:"ISO 639-1 language code"`
	PublishDate *string  `json:"publish_date,omitempty" doc:"Publication date: epoch milliseconds, YYYY-MM-DD or RFC 3339"`
	Tags        []string `json:"tags,omitempty" doc:"Tag IDs"`
}

// ManualBookInput wraps the manual add request for Huma.
type ManualBookInput struct {
	Authorization string `header:"Authorization"`
	Body          ManualBookRequest
}

// UpdateBookRequest is the request body for updating a book. Omitted
// fields are unchanged; a present tags list replaces the book's tags.
type UpdateBookRequest struct {
	Title       *string   `json:"title,omitempty"`
	Subtitle    *string   `json:"subtitle,omitempty"`
	Author      *string   `json:"author,omitempty"`
	Description *string   `json:"description,omitempty"`
	ISBN10      *string   `json:"isbn10,omitempty"`
	ISBN13      *string   `json:"isbn13,omitempty"`
	PageCount   *int      `json:"page_count,omitempty"`
	Language    *string   `json:"language,omitempty"`
	PublishDate *string   `json:"publish_date,omitempty"`
	Tags        *[]string `json:"tags,omitempty" doc:"Tag IDs; replaces all tags when present"`
}

// UpdateBookInput wraps the update request for Huma.
type UpdateBookInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Library entry ID"`
	Body          UpdateBookRequest
}

// BookIDInput addresses one library entry.
type BookIDInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Library entry ID"`
}

// TagRef is a tag as embedded in book responses.
type TagRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// BookResponse is a full library entry.
type BookResponse struct {
	ID          string   `json:"id" doc:"Library entry ID"`
	Title       string   `json:"title"`
	Subtitle    *string  `json:"subtitle,omitempty"`
	Author      string   `json:"author"`
	PageCount   *int     `json:"page_count,omitempty"`
	Description *string  `json:"description,omitempty"`
	ISBN10      *string  `json:"isbn10,omitempty"`
	ISBN13      *string  `json:"isbn13,omitempty"`
	Language    *string  `json:"language,omitempty"`
	PublishDate *int64   `json:"publish_date,omitempty" doc:"Epoch milliseconds"`
	CreateDate  int64    `json:"create_date" doc:"Epoch milliseconds"`
	ReadDate    *int64   `json:"read_date,omitempty" doc:"Epoch milliseconds"`
	Tags        []TagRef `json:"tags"`
}

// BookOutput wraps a book response for Huma.
type BookOutput struct {
	Body BookResponse
}

// ListBooksInput contains list, search and filter parameters.
type ListBooksInput struct {
	Authorization string `header:"Authorization"`
	Limit         int    `query:"limit" default:"10" minimum:"0" doc:"Page size (max 100)"`
	Offset        int    `query:"offset" default:"0" minimum:"0" doc:"Page offset"`
	SortColumn    int    `query:"sort_column" default:"5" doc:"0 title, 1 subtitle, 2 author, 3 language, 4 publish_date, 5 create_date, 6 read_date"`
	Asc           bool   `query:"asc" default:"true" doc:"Ascending order"`
	Search        string `query:"search" doc:"Full-text search over title, subtitle, author and description"`
	Read          string `query:"read" doc:"Filter on read state; omit for all"`
	Tag           string `query:"tag" doc:"Tag name; unknown names are ignored"`
}

// BookSummary is a library entry in list responses.
type BookSummary struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Subtitle    *string  `json:"subtitle,omitempty"`
	Author      string   `json:"author"`
	Language    *string  `json:"language,omitempty"`
	PublishDate *int64   `json:"publish_date,omitempty"`
	CreateDate  int64    `json:"create_date"`
	ReadDate    *int64   `json:"read_date,omitempty"`
	Tags        []TagRef `json:"tags"`
}

// ListBooksResponse is one page of the library.
type ListBooksResponse struct {
	Total int           `json:"total" doc:"Number of matching entries"`
	Books []BookSummary `json:"books"`
}

// ListBooksOutput wraps the list response for Huma.
type ListBooksOutput struct {
	Body ListBooksResponse
}

// MarkReadRequest sets or clears the read date.
type MarkReadRequest struct {
	Read bool `json:"read"`
}

// MarkReadInput wraps the mark read request for Huma.
type MarkReadInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Library entry ID"`
	Body          MarkReadRequest
}

// === Handlers ===

func (s *Server) handleAddBook(ctx context.Context, input *AddBookInput) (*IDOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	id, err := s.services.Book.AddBook(ctx, userID, input.Body.ISBN)
	if err != nil {
		return nil, err
	}
	return &IDOutput{Body: IDResponse{ID: id}}, nil
}

func (s *Server) handleAddManualBook(ctx context.Context, input *ManualBookInput) (*IDOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	b := input.Body
	id, err := s.services.Book.AddManual(ctx, userID, service.ManualBookRequest{
		Title:       b.Title,
		Subtitle:    b.Subtitle,
		Author:      b.Author,
		Description: b.Description,
		ISBN10:      b.ISBN10,
		ISBN13:      b.ISBN13,
		PageCount:   b.PageCount,
		Language:    b.Language,
		PublishDate: b.PublishDate,
		Tags:        b.Tags,
	})
	if err != nil {
		return nil, err
	}
	return &IDOutput{Body: IDResponse{ID: id}}, nil
}

func (s *Server) handleUpdateBook(ctx context.Context, input *UpdateBookInput) (*IDOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	b := input.Body
	id, err := s.services.Book.Update(ctx, userID, input.ID, service.UpdateBookRequest{
		Title:       b.Title,
		Subtitle:    b.Subtitle,
		Author:      b.Author,
		Description: b.Description,
		ISBN10:      b.ISBN10,
		ISBN13:      b.ISBN13,
		PageCount:   b.PageCount,
		Language:    b.Language,
		PublishDate: b.PublishDate,
		Tags:        b.Tags,
	})
	if err != nil {
		return nil, err
	}
	return &IDOutput{Body: IDResponse{ID: id}}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *BookIDInput) (*BookOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	entry, err := s.services.Book.Get(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}

	book := entry.Book
	return &BookOutput{
		Body: BookResponse{
			ID:          entry.UserBook.ID,
			Title:       book.Title,
			Subtitle:    book.Subtitle,
			Author:      book.Author,
			PageCount:   book.PageCount,
			Description: book.Description,
			ISBN10:      book.ISBN10,
			ISBN13:      book.ISBN13,
			Language:    book.Language,
			PublishDate: epochMillis(book.PublishDate),
			CreateDate:  entry.UserBook.CreateDate.UnixMilli(),
			ReadDate:    epochMillis(entry.UserBook.ReadDate),
			Tags:        toTagRefs(entry.Tags),
		},
	}, nil
}

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*ListBooksOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	opts := service.ListOptions{
		Search: input.Search,
		Tag:    input.Tag,
		Sort: store.SortCriteria{
			Column: store.SortColumn(input.SortColumn),
			Asc:    input.Asc,
		},
		Page: store.PaginationParams{
			Limit:  input.Limit,
			Offset: input.Offset,
		},
	}
	if input.Read != "" {
		read, err := strconv.ParseBool(input.Read)
		if err != nil {
			return nil, domainerrors.Validation("read must be true or false")
		}
		opts.Read = &read
	}

	result, err := s.services.Book.List(ctx, userID, opts)
	if err != nil {
		return nil, err
	}

	books := make([]BookSummary, len(result.Items))
	for i, entry := range result.Items {
		books[i] = BookSummary{
			ID:          entry.UserBook.ID,
			Title:       entry.Book.Title,
			Subtitle:    entry.Book.Subtitle,
			Author:      entry.Book.Author,
			Language:    entry.Book.Language,
			PublishDate: epochMillis(entry.Book.PublishDate),
			CreateDate:  entry.UserBook.CreateDate.UnixMilli(),
			ReadDate:    epochMillis(entry.UserBook.ReadDate),
			Tags:        toTagRefs(entry.Tags),
		}
	}

	return &ListBooksOutput{Body: ListBooksResponse{Total: result.Total, Books: books}}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *BookIDInput) (*StatusOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Book.Delete(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return statusOK(), nil
}

func (s *Server) handleMarkRead(ctx context.Context, input *MarkReadInput) (*StatusOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Book.SetRead(ctx, userID, input.ID, input.Body.Read); err != nil {
		return nil, err
	}
	return statusOK(), nil
}

func toTagRefs(tags []domain.Tag) []TagRef {
	refs := make([]TagRef, len(tags))
	for i, t := range tags {
		refs[i] = TagRef{ID: t.ID, Name: t.Name, Color: t.Color}
	}
	return refs
}
