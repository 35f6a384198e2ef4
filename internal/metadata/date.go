package metadata

import (
	"strings"
	"time"

	"github.com/shelfapp/shelf-server/internal/validation"
)

// publishDateLayouts are the free-form layouts providers use beyond ISO dates.
var publishDateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"January 2006",
	"Jan 2006",
}

// ParsePublishDate parses provider publish dates such as "1965",
// "1965-08", "1965-08-01" or "August 1, 1965". It returns nil when the value
// is not recognised.
func ParsePublishDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, ok := validation.ParseDate(s); ok {
		return &t
	}
	for _, layout := range publishDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
