package validation

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	domainerrors "github.com/shelfapp/shelf-server/internal/errors"
)

// dateLayouts are tried in order after the epoch-millis form.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01",
	"2006",
}

// ValidateRequired trims value and fails when nothing is left.
func ValidateRequired(value, name string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", domainerrors.Validationf("%s must be set", name)
	}
	return value, nil
}

// ValidateLength trims value and checks its length in characters against
// [minLen, maxLen]. A nil or blank value is returned as nil when nullable.
// maxLen <= 0 disables the upper bound.
func ValidateLength(value *string, name string, minLen, maxLen int, nullable bool) (*string, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		if nullable {
			return nil, nil
		}
		return nil, domainerrors.Validationf("%s must be set", name)
	}

	trimmed := strings.TrimSpace(*value)
	n := utf8.RuneCountInString(trimmed)
	if n < minLen {
		return nil, domainerrors.Validationf("%s must be at least %d characters", name, minLen)
	}
	if maxLen > 0 && n > maxLen {
		return nil, domainerrors.Validationf("%s must not exceed %d characters", name, maxLen)
	}
	return &trimmed, nil
}

// ValidateExactLength is ValidateLength with minLen == maxLen.
func ValidateExactLength(value *string, name string, length int, nullable bool) (*string, error) {
	out, err := ValidateLength(value, name, length, length, nullable)
	if err != nil && value != nil && strings.TrimSpace(*value) != "" {
		return nil, domainerrors.Validationf("%s must be exactly %d characters", name, length)
	}
	return out, err
}

// ValidateDate parses value as epoch milliseconds, YYYY-MM-DD, RFC 3339,
// YYYY-MM or YYYY. A nil or blank value is returned as nil when nullable.
func ValidateDate(value *string, name string, nullable bool) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		if nullable {
			return nil, nil
		}
		return nil, domainerrors.Validationf("%s must be set", name)
	}

	t, ok := ParseDate(*value)
	if !ok {
		return nil, domainerrors.Validationf("%s must be a date", name)
	}
	return &t, nil
}

// ParseDate is the lenient date parser behind ValidateDate. Results are UTC.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	// Bare 4-digit values are years, not milliseconds.
	if len(value) > 4 {
		if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
