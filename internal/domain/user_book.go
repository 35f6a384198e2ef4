package domain

import "time"

// UserBook is a user's personal library entry for a catalog Book.
// One UserBook exists per (UserID, BookID).
type UserBook struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	BookID     string     `json:"book_id"`
	CreateDate time.Time  `json:"create_date"`
	ReadDate   *time.Time `json:"read_date,omitempty"`
}

// IsRead reports whether the entry has been marked read.
func (ub *UserBook) IsRead() bool {
	return ub.ReadDate != nil
}

// LibraryEntry is a UserBook joined with its Book and tags.
type LibraryEntry struct {
	UserBook UserBook
	Book     Book
	Tags     []Tag
}
