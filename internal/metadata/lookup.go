// Package metadata resolves ISBNs to book metadata through a chain of
// external providers, fronted by a cache.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shelfapp/shelf-server/internal/domain"
	"github.com/shelfapp/shelf-server/internal/normalize"
)

// ErrNotFound is returned when no provider knows the ISBN.
var ErrNotFound = errors.New("metadata: book not found")

// unknownAuthor is used when a provider returns a book without authors.
const unknownAuthor = "Unknown"

// Result is the metadata a provider returned for an ISBN.
type Result struct {
	Title        string     `json:"title"`
	Subtitle     string     `json:"subtitle,omitempty"`
	Author       string     `json:"author"`
	Description  string     `json:"description,omitempty"`
	ISBN10       string     `json:"isbn10,omitempty"`
	ISBN13       string     `json:"isbn13,omitempty"`
	PageCount    int        `json:"page_count,omitempty"`
	Language     string     `json:"language,omitempty"`
	PublishDate  *time.Time `json:"publish_date,omitempty"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	Source       string     `json:"source"`
}

// Book converts the result into a new catalog book with the given ID.
func (r *Result) Book(id string, now time.Time) *domain.Book {
	b := &domain.Book{
		ID:          id,
		Title:       r.Title,
		Author:      r.Author,
		PublishDate: r.PublishDate,
		CreatedAt:   now,
	}
	b.Subtitle = optional(r.Subtitle)
	b.Description = optional(r.Description)
	b.ISBN10 = optional(r.ISBN10)
	b.ISBN13 = optional(r.ISBN13)
	b.Language = optional(r.Language)
	if r.PageCount > 0 {
		pages := r.PageCount
		b.PageCount = &pages
	}
	return b
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// MetadataLookup resolves an ISBN to book metadata.
type MetadataLookup interface {
	SearchBook(ctx context.Context, isbn string) (*Result, error)
}

// Provider is a single metadata source.
type Provider interface {
	Name() string
	LookupISBN(ctx context.Context, isbn string) (*Result, error)
}

// Cache stores lookup results by ISBN. Get returns (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, isbn string) (*Result, error)
	Set(ctx context.Context, isbn string, result *Result) error
}

// Chain queries providers in order and returns the first hit.
type Chain struct {
	providers []Provider
	cache     Cache
	logger    *slog.Logger
}

// NewChain creates a lookup chain. cache may be nil.
func NewChain(logger *slog.Logger, cache Cache, providers ...Provider) *Chain {
	return &Chain{providers: providers, cache: cache, logger: logger}
}

// SearchBook returns normalized metadata for isbn. Provider failures are
// logged and the next provider is tried; ErrNotFound is returned when none
// of them produce a usable result.
func (c *Chain) SearchBook(ctx context.Context, isbn string) (*Result, error) {
	isbn = domain.NormalizeISBN(isbn)
	if len(isbn) != 10 && len(isbn) != 13 {
		return nil, fmt.Errorf("%w: invalid isbn %q", ErrNotFound, isbn)
	}

	if c.cache != nil {
		cached, err := c.cache.Get(ctx, isbn)
		if err != nil {
			c.logger.Warn("metadata cache read failed", "isbn", isbn, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	var lastErr error
	for _, p := range c.providers {
		result, err := p.LookupISBN(ctx, isbn)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !errors.Is(err, ErrNotFound) {
				c.logger.Warn("metadata provider failed", "provider", p.Name(), "isbn", isbn, "error", err)
				lastErr = err
			}
			continue
		}

		result = finalize(result, isbn)
		if result == nil {
			continue
		}
		result.Source = p.Name()

		if c.cache != nil {
			if err := c.cache.Set(ctx, isbn, result); err != nil {
				c.logger.Warn("metadata cache write failed", "isbn", isbn, "error", err)
			}
		}

		c.logger.Info("metadata found", "provider", p.Name(), "isbn", isbn, "title", result.Title)
		return result, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, lastErr)
	}
	return nil, ErrNotFound
}

// finalize cleans a provider result and fills in the requested ISBN.
// Results without a title are rejected.
func finalize(r *Result, isbn string) *Result {
	if r == nil {
		return nil
	}
	out := *r

	out.Title = strings.TrimSpace(out.Title)
	if out.Title == "" {
		return nil
	}
	out.Subtitle = strings.TrimSpace(out.Subtitle)
	out.Author = strings.TrimSpace(out.Author)
	if out.Author == "" {
		out.Author = unknownAuthor
	}
	out.Description = CleanDescription(out.Description)
	out.Language = normalize.LanguageCode(out.Language)

	out.ISBN10 = domain.NormalizeISBN(out.ISBN10)
	out.ISBN13 = domain.NormalizeISBN(out.ISBN13)
	switch {
	case len(isbn) == 10 && out.ISBN10 == "":
		out.ISBN10 = isbn
	case len(isbn) == 13 && out.ISBN13 == "":
		out.ISBN13 = isbn
	}
	if out.PageCount < 0 {
		out.PageCount = 0
	}

	return &out
}

// JoinAuthors joins author names with ", ".
func JoinAuthors(names []string) string {
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	return strings.Join(cleaned, ", ")
}
