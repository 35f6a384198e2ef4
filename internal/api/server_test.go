package api

import (
	"context"
	"encoding/json/v2"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/shelfapp/shelf-server/internal/auth"
	"github.com/shelfapp/shelf-server/internal/domain"
	"github.com/shelfapp/shelf-server/internal/media/images"
	"github.com/shelfapp/shelf-server/internal/metadata"
	"github.com/shelfapp/shelf-server/internal/search"
	"github.com/shelfapp/shelf-server/internal/service"
	"github.com/shelfapp/shelf-server/internal/store/sqlite"
	"github.com/shelfapp/shelf-server/internal/validation"
)

// testEnvelope decodes both success and error envelopes.
type testEnvelope[T any] struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeEnvelope[T any](t *testing.T, resp *httptest.ResponseRecorder) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), "body: %s", resp.Body.String())
	return env
}

// requireError asserts status and error kind.
func requireError(t *testing.T, resp *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, resp.Code, "body: %s", resp.Body.String())
	env := decodeEnvelope[any](t, resp)
	require.False(t, env.Success)
	require.Equal(t, code, env.Code, "body: %s", resp.Body.String())
}

// fakeLookup serves canned metadata keyed by normalized ISBN.
type fakeLookup struct {
	mu      sync.Mutex
	results map[string]*metadata.Result
}

func (f *fakeLookup) SearchBook(_ context.Context, isbn string) (*metadata.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[domain.NormalizeISBN(isbn)]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

// fakeCovers stores the URL itself as the cover bytes.
type fakeCovers struct {
	storage *images.Storage
}

func (f *fakeCovers) DownloadThumbnail(_ context.Context, book *domain.Book, url string) error {
	return f.storage.Save(book.ID, []byte("jpeg:"+url))
}

type testServer struct {
	*Server
	api        humatest.TestAPI
	lookup     *fakeLookup
	coverFiles *images.Storage
}

// setupTestServer builds a server over real SQLite, Bleve and cover
// storage in a temp directory, with fake metadata and cover downloads.
func setupTestServer(t *testing.T, opts ...func(*Options)) *testServer {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	st, err := sqlite.Open(filepath.Join(dir, "shelf.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	idx, err := search.NewIndex(search.Options{DataPath: filepath.Join(dir, "search"), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	coverFiles, err := images.NewStorage(filepath.Join(dir, "covers"))
	require.NoError(t, err)

	key, err := auth.LoadOrCreateKey(dir)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, time.Hour)
	require.NoError(t, err)

	lookup := &fakeLookup{results: map[string]*metadata.Result{}}
	books := service.NewBookService(st, idx, lookup, &fakeCovers{storage: coverFiles}, coverFiles, logger)
	tags := service.NewTagService(st, logger)
	authService := service.NewAuthService(st, tokens, validation.New(), true, logger)
	imports, err := service.NewImportService(books, tags, st, filepath.Join(dir, "imports"), logger)
	require.NoError(t, err)
	imports.Start()
	t.Cleanup(imports.Stop)

	options := Options{LoginLimiter: NewRateLimiter(1000, time.Minute, 1000)}
	for _, opt := range opts {
		opt(&options)
	}

	srv := NewServer(st, idx, &Services{
		Auth:   authService,
		Book:   books,
		Tag:    tags,
		Import: imports,
	}, options, logger)

	return &testServer{
		Server:     srv,
		api:        humatest.Wrap(t, srv.api),
		lookup:     lookup,
		coverFiles: coverFiles,
	}
}

// createUser registers and logs in a user, returning the Authorization
// header value and the user ID.
func (ts *testServer) createUser(t *testing.T, email string) (authHeader, userID string) {
	t.Helper()
	creds := map[string]any{"email": email, "password": "correct horse battery"}

	resp := ts.api.Put("/api/v1/user", creds)
	require.Equal(t, http.StatusOK, resp.Code, "register failed: %s", resp.Body.String())

	resp = ts.api.Post("/api/v1/user/login", creds)
	require.Equal(t, http.StatusOK, resp.Code, "login failed: %s", resp.Body.String())
	env := decodeEnvelope[LoginResponse](t, resp)
	require.NotEmpty(t, env.Data.Token)

	return "Authorization: Bearer " + env.Data.Token, env.Data.UserID
}

// addManual adds a book by hand and returns its library entry ID.
func (ts *testServer) addManual(t *testing.T, authHeader string, body map[string]any) string {
	t.Helper()
	resp := ts.api.Put("/api/v1/book/manual", authHeader, body)
	require.Equal(t, http.StatusOK, resp.Code, "manual add failed: %s", resp.Body.String())
	env := decodeEnvelope[IDResponse](t, resp)
	require.NotEmpty(t, env.Data.ID)
	return env.Data.ID
}

// createTag creates a tag and returns its ID.
func (ts *testServer) createTag(t *testing.T, authHeader, name string) string {
	t.Helper()
	resp := ts.api.Put("/api/v1/tag", authHeader, map[string]any{"name": name})
	require.Equal(t, http.StatusOK, resp.Code, "create tag failed: %s", resp.Body.String())
	return decodeEnvelope[TagResponse](t, resp).Data.ID
}

func (ts *testServer) listBooks(t *testing.T, authHeader, query string) ListBooksResponse {
	t.Helper()
	resp := ts.api.Get("/api/v1/book/list"+query, authHeader)
	require.Equal(t, http.StatusOK, resp.Code, "list failed: %s", resp.Body.String())
	return decodeEnvelope[ListBooksResponse](t, resp).Data
}

func duneResult() *metadata.Result {
	published := time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC)
	return &metadata.Result{
		Title:        "Dune",
		Author:       "Frank Herbert",
		ISBN10:       "0441013597",
		ISBN13:       "9780441013593",
		PageCount:    612,
		Language:     "en",
		PublishDate:  &published,
		ThumbnailURL: "https://covers.example.com/dune.jpg",
		Source:       "fake",
	}
}
