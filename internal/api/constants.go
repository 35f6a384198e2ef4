package api

import "time"

// API limits and constants.
const (
	// MaxImportUploadSize bounds a Goodreads CSV upload (32 MB).
	MaxImportUploadSize = 32 << 20

	// coverLifetime is how long clients may cache a cover.
	coverLifetime = time.Hour
)

// CacheOneHour is the Cache-Control value for cover images.
const CacheOneHour = "public, max-age=3600"

// Response headers.
const (
	headerBlurHash = "X-Cover-Blurhash"
)
