package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck_Success(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	health := decodeEnvelope[HealthResponse](t, resp).Data
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["database"].Status)
	assert.Equal(t, "healthy", health.Components["search"].Status)
	assert.Equal(t, "0 books indexed", health.Components["search"].Message)
}

func TestHealthCheck_CountsIndexedBooks(t *testing.T) {
	ts := setupTestServer(t)
	authHeader, _ := ts.createUser(t, "reader@example.com")
	ts.addManual(t, authHeader, map[string]any{"title": "Dune", "author": "Frank Herbert", "isbn10": "0441013597"})

	health := decodeEnvelope[HealthResponse](t, ts.api.Get("/health")).Data
	assert.Equal(t, "1 book indexed", health.Components["search"].Message)
}

func TestHealthCheck_MissingComponentsDegrade(t *testing.T) {
	s := &Server{}

	assert.Equal(t, "degraded", s.checkDatabase(t.Context()).Status)
	assert.Equal(t, "degraded", s.checkSearchIndex().Status)
}

func TestFormatDocumentCount(t *testing.T) {
	assert.Equal(t, "0 books indexed", formatDocumentCount(0))
	assert.Equal(t, "1 book indexed", formatDocumentCount(1))
	assert.Equal(t, "42 books indexed", formatDocumentCount(42))
}
