// Package id generates prefixed identifiers for user-scoped records.
package id

import (
	"fmt"
	"regexp"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// alphabet keeps IDs lowercase so they satisfy the route pattern [a-z0-9-]+.
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	size     = 21
)

// Pattern matches identifiers accepted in request paths.
var Pattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Generate creates a prefixed unique ID, e.g. "ub-4f0k2m9x1q8z7c6v5b3n1".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Valid reports whether s is a well-formed path identifier.
func Valid(s string) bool {
	return Pattern.MatchString(s)
}
