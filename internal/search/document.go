// Package search provides full-text search over the book catalog using Bleve.
// Library listings resolve a free-text query to catalog book IDs here and
// then constrain the relational query with them.
package search

import (
	"github.com/shelfapp/shelf-server/internal/domain"
)

// BookDocument is the indexed form of a catalog book.
type BookDocument struct {
	ID          string
	Title       string
	Subtitle    string
	Author      string
	Description string
	ISBNs       []string
	Language    string
	PublishYear int
	CreatedAt   int64 // Unix millis
}

// NewBookDocument builds the document for b.
func NewBookDocument(b *domain.Book) *BookDocument {
	doc := &BookDocument{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		CreatedAt: b.CreatedAt.UnixMilli(),
	}
	if b.Subtitle != nil {
		doc.Subtitle = *b.Subtitle
	}
	if b.Description != nil {
		doc.Description = *b.Description
	}
	if b.ISBN10 != nil && *b.ISBN10 != "" {
		doc.ISBNs = append(doc.ISBNs, *b.ISBN10)
	}
	if b.ISBN13 != nil && *b.ISBN13 != "" {
		doc.ISBNs = append(doc.ISBNs, *b.ISBN13)
	}
	if b.Language != nil {
		doc.Language = *b.Language
	}
	if b.PublishDate != nil {
		doc.PublishYear = b.PublishDate.Year()
	}
	return doc
}

// ToMap converts the document to a map keyed by the mapped field names.
// Empty optional fields are left out so they are not indexed.
func (d *BookDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"title":      d.Title,
		"author":     d.Author,
		"created_at": d.CreatedAt,
	}
	if d.Subtitle != "" {
		m["subtitle"] = d.Subtitle
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if len(d.ISBNs) > 0 {
		m["isbn"] = d.ISBNs
	}
	if d.Language != "" {
		m["language"] = d.Language
	}
	if d.PublishYear != 0 {
		m["publish_year"] = d.PublishYear
	}
	return m
}
