package store

// Page bounds for list queries.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// PaginationParams is an offset/limit window.
type PaginationParams struct {
	Limit  int
	Offset int
}

// Validate clamps the window: limit defaults to DefaultLimit and is capped at
// MaxLimit; negative offsets become zero.
func (p *PaginationParams) Validate() {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// PaginatedResult is one page of a list plus the total match count.
type PaginatedResult[T any] struct {
	Items []T
	Total int
}

// SortColumn selects the ordering of library listings.
type SortColumn int

// Sort columns, numbered as clients send them in sort_column.
const (
	SortByTitle SortColumn = iota
	SortBySubtitle
	SortByAuthor
	SortByLanguage
	SortByPublishDate
	SortByCreateDate
	SortByReadDate
)

// Valid reports whether c is a known column.
func (c SortColumn) Valid() bool {
	return c >= SortByTitle && c <= SortByReadDate
}

// SortCriteria is a column plus direction.
type SortCriteria struct {
	Column SortColumn
	Asc    bool
}

// DefaultSort orders by create date, oldest first.
func DefaultSort() SortCriteria {
	return SortCriteria{Column: SortByCreateDate, Asc: true}
}

// UserBookCriteria filters a user's library. UserID is required.
type UserBookCriteria struct {
	UserID string

	// BookIDs restricts results to these catalog books when non-nil.
	// An empty non-nil slice matches nothing.
	BookIDs []string

	// Read filters on read state when non-nil.
	Read *bool

	// TagIDs keeps entries carrying any of these tags.
	TagIDs []string
}
