package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelfapp/shelf-server/internal/domain"
	"github.com/shelfapp/shelf-server/internal/media/images"
	"github.com/shelfapp/shelf-server/internal/metadata"
	"github.com/shelfapp/shelf-server/internal/search"
	"github.com/shelfapp/shelf-server/internal/store/sqlite"
)

var testLogger = slog.New(slog.DiscardHandler)

// fakeLookup serves canned metadata keyed by ISBN.
type fakeLookup struct {
	mu      sync.Mutex
	results map[string]*metadata.Result
	calls   int
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{results: map[string]*metadata.Result{}}
}

func (f *fakeLookup) add(isbn string, r *metadata.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[isbn] = r
}

func (f *fakeLookup) SearchBook(_ context.Context, isbn string) (*metadata.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	r, ok := f.results[domain.NormalizeISBN(isbn)]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

// fakeCovers records requested downloads and optionally fails them.
type fakeCovers struct {
	mu      sync.Mutex
	storage *images.Storage
	urls    map[string]string
	err     error
}

func (f *fakeCovers) DownloadThumbnail(_ context.Context, book *domain.Book, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.urls[book.ID] = url
	return f.storage.Save(book.ID, []byte("jpeg:"+url))
}

type testEnv struct {
	store   *sqlite.Store
	index   *search.Index
	lookup  *fakeLookup
	covers  *fakeCovers
	images  *images.Storage
	books   *BookService
	tags    *TagService
	dataDir string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	st, err := sqlite.Open(filepath.Join(dir, "shelf.db"), testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	idx, err := search.NewIndex(search.Options{DataPath: filepath.Join(dir, "search")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	coverFiles, err := images.NewStorage(filepath.Join(dir, "covers"))
	require.NoError(t, err)

	env := &testEnv{
		store:   st,
		index:   idx,
		lookup:  newFakeLookup(),
		covers:  &fakeCovers{storage: coverFiles, urls: map[string]string{}},
		images:  coverFiles,
		dataDir: dir,
	}
	env.books = NewBookService(st, idx, env.lookup, env.covers, coverFiles, testLogger)
	env.tags = NewTagService(st, testLogger)
	return env
}

func (e *testEnv) createUser(t *testing.T, userID string) {
	t.Helper()
	require.NoError(t, e.store.CreateUser(context.Background(), &domain.User{
		ID:           userID,
		Email:        userID + "@example.com",
		PasswordHash: "x",
		CreatedAt:    time.Now(),
	}))
}

func (e *testEnv) createTag(t *testing.T, userID, name string) *domain.Tag {
	t.Helper()
	tag, err := e.tags.Create(context.Background(), userID, CreateTagRequest{Name: name})
	require.NoError(t, err)
	return tag
}

func ptr[T any](v T) *T { return &v }

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
