package domain

import "time"

// Tag is a user-owned label. Names are unique per user.
type Tag struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"` // #RRGGBB
	CreatedAt time.Time `json:"created_at"`
}
