package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfapp/shelf-server/internal/media/images"
)

func TestGetCover_PlaceholderWhenMissing(t *testing.T) {
	ts := setupTestServer(t)
	authHeader, _ := ts.createUser(t, "reader@example.com")
	id := ts.addManual(t, authHeader, map[string]any{"title": "Dune", "author": "Frank Herbert", "isbn10": "0441013597"})

	resp := ts.api.Get("/api/v1/book/" + id + "/cover")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "image/jpeg", resp.Header().Get("Content-Type"))
	assert.Equal(t, images.Placeholder(), resp.Body.Bytes())
	assert.Empty(t, resp.Header().Get("Cache-Control"))

	expires, err := time.Parse(time.RFC1123Z, resp.Header().Get("Expires"))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)
}

func TestGetCover_UnknownBook(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/book/ub_missing/cover")
	requireError(t, resp, http.StatusNotFound, "BookNotFound")
}

func TestUpdateCover(t *testing.T) {
	ts := setupTestServer(t)
	authHeader, _ := ts.createUser(t, "reader@example.com")
	id := ts.addManual(t, authHeader, map[string]any{"title": "Dune", "author": "Frank Herbert", "isbn10": "0441013597"})

	resp := ts.api.Post("/api/v1/book/"+id+"/cover", authHeader, map[string]any{"url": "https://covers.example.com/new.jpg"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/book/" + id + "/cover")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "jpeg:https://covers.example.com/new.jpg", resp.Body.String())
	assert.Equal(t, CacheOneHour, resp.Header().Get("Cache-Control"))
}

func TestUpdateCover_ServesBlurHash(t *testing.T) {
	ts := setupTestServer(t)
	authHeader, _ := ts.createUser(t, "reader@example.com")
	id := ts.addManual(t, authHeader, map[string]any{"title": "Dune", "author": "Frank Herbert", "isbn10": "0441013597"})

	resp := ts.api.Post("/api/v1/book/"+id+"/cover", authHeader, map[string]any{"url": "https://covers.example.com/new.jpg"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	entry, err := ts.services.Book.Get(t.Context(), mustUserID(t, ts, authHeader), id)
	require.NoError(t, err)
	require.NoError(t, ts.coverFiles.SaveBlurHash(entry.Book.ID, "LEHV6nWB2yk8pyo0adR*.7kCMdnj"))

	resp = ts.api.Get("/api/v1/book/" + id + "/cover")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "LEHV6nWB2yk8pyo0adR*.7kCMdnj", resp.Header().Get(headerBlurHash))
}

func TestUpdateCover_RequiresURL(t *testing.T) {
	ts := setupTestServer(t)
	authHeader, _ := ts.createUser(t, "reader@example.com")
	id := ts.addManual(t, authHeader, map[string]any{"title": "Dune", "author": "Frank Herbert", "isbn10": "0441013597"})

	resp := ts.api.Post("/api/v1/book/"+id+"/cover", authHeader, map[string]any{"url": "  "})
	requireError(t, resp, http.StatusBadRequest, "ValidationError")
}

// mustUserID resolves the user behind an Authorization header line.
func mustUserID(t *testing.T, ts *testServer, authHeader string) string {
	t.Helper()
	resp := ts.api.Get("/api/v1/user", authHeader)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	return decodeEnvelope[UserResponse](t, resp).Data.ID
}
