package api

import "time"

// Dates cross the API as epoch milliseconds. Inputs are strings so that
// validation.ValidateDate can accept epoch millis, YYYY-MM-DD or RFC 3339.

// epochMillis converts an optional time; nil stays nil so the field is
// omitted from the response.
func epochMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
