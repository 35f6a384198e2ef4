// Package domain contains the core entities of the book library.
package domain

import (
	"strings"
	"time"
)

// Book is a shared catalog entry. At most one Book exists per ISBN-10 and per
// ISBN-13; every user who adds the same ISBN links to the same row.
type Book struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Subtitle    *string    `json:"subtitle,omitempty"`
	Author      string     `json:"author"`
	Description *string    `json:"description,omitempty"`
	ISBN10      *string    `json:"isbn10,omitempty"`
	ISBN13      *string    `json:"isbn13,omitempty"`
	PageCount   *int       `json:"page_count,omitempty"`
	Language    *string    `json:"language,omitempty"` // ISO 639-1
	PublishDate *time.Time `json:"publish_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// HasISBN reports whether isbn equals either of the book's ISBNs.
func (b *Book) HasISBN(isbn string) bool {
	return (b.ISBN10 != nil && *b.ISBN10 == isbn) || (b.ISBN13 != nil && *b.ISBN13 == isbn)
}

// ISBN returns the ISBN-13 when known, else the ISBN-10, else "".
func (b *Book) ISBN() string {
	if b.ISBN13 != nil && *b.ISBN13 != "" {
		return *b.ISBN13
	}
	if b.ISBN10 != nil {
		return *b.ISBN10
	}
	return ""
}

// BookPatch carries optional field updates. Nil fields are left unchanged.
type BookPatch struct {
	Title       *string
	Subtitle    *string
	Author      *string
	Description *string
	ISBN10      *string
	ISBN13      *string
	PageCount   *int
	Language    *string
	PublishDate *time.Time
}

// Apply copies every non-nil field of p onto b.
func (p BookPatch) Apply(b *Book) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Subtitle != nil {
		b.Subtitle = p.Subtitle
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.Description != nil {
		b.Description = p.Description
	}
	if p.ISBN10 != nil {
		b.ISBN10 = p.ISBN10
	}
	if p.ISBN13 != nil {
		b.ISBN13 = p.ISBN13
	}
	if p.PageCount != nil {
		b.PageCount = p.PageCount
	}
	if p.Language != nil {
		b.Language = p.Language
	}
	if p.PublishDate != nil {
		b.PublishDate = p.PublishDate
	}
}

// NormalizeISBN strips hyphens and spaces and upper-cases a trailing x.
func NormalizeISBN(isbn string) string {
	var sb strings.Builder
	sb.Grow(len(isbn))
	for _, r := range isbn {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == 'x' || r == 'X':
			sb.WriteRune('X')
		}
	}
	return sb.String()
}
