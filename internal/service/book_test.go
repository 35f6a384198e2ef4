package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/shelfapp/shelf-server/internal/errors"
	"github.com/shelfapp/shelf-server/internal/media/images"
	"github.com/shelfapp/shelf-server/internal/store"
)

func TestAddBook_CreatesCatalogBookAndEntry(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")
	env.lookup.add("9780441013593", duneResult())

	ubID, err := env.books.AddBook(ctx, "user-1", "978-0-441-01359-3")
	require.NoError(t, err)

	entry, err := env.books.Get(ctx, "user-1", ubID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", entry.Book.Title)
	assert.Equal(t, "Frank Herbert", entry.Book.Author)
	require.NotNil(t, entry.Book.ISBN10)
	assert.Equal(t, "0441013597", *entry.Book.ISBN10)
	assert.Nil(t, entry.UserBook.ReadDate)

	// Cover downloaded for the new catalog book.
	assert.Equal(t, "https://covers.example.com/dune.jpg", env.covers.urls[entry.Book.ID])

	// Indexed for search.
	ids, err := env.index.MatchBookIDs(ctx, "dune", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{entry.Book.ID}, ids)
}

func TestAddBook_SameISBNTwice(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")
	env.lookup.add("0441013597", duneResult())

	_, err := env.books.AddBook(ctx, "user-1", "0441013597")
	require.NoError(t, err)

	_, err = env.books.AddBook(ctx, "user-1", "0441013597")
	assert.ErrorIs(t, err, domainerrors.ErrBookAlreadyAdded)

	// ISBN-13 of the same book also resolves to the existing catalog row.
	_, err = env.books.AddBook(ctx, "user-1", "9780441013593")
	assert.ErrorIs(t, err, domainerrors.ErrBookAlreadyAdded)

	books, err := env.store.ListBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 1)
	assert.Equal(t, 1, env.lookup.calls)
}

func TestAddBook_SharedAcrossUsers(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")
	env.createUser(t, "user-2")
	env.lookup.add("0441013597", duneResult())

	first, err := env.books.AddBook(ctx, "user-1", "0441013597")
	require.NoError(t, err)
	second, err := env.books.AddBook(ctx, "user-2", "0441013597")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	a, err := env.books.Get(ctx, "user-1", first)
	require.NoError(t, err)
	b, err := env.books.Get(ctx, "user-2", second)
	require.NoError(t, err)
	assert.Equal(t, a.Book.ID, b.Book.ID)
}

func TestAddBook_ConcurrentSameISBN(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")
	env.lookup.add("0441013597", duneResult())

	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, alreadyAdded int
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.books.AddBook(ctx, "user-1", "0441013597")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domainerrors.ErrBookAlreadyAdded):
				alreadyAdded++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 7, alreadyAdded)

	books, err := env.store.ListBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestAddBook_LookupFailure(t *testing.T) {
	env := setupTestEnv(t)
	env.createUser(t, "user-1")

	_, err := env.books.AddBook(context.Background(), "user-1", "0000000000")
	assert.ErrorIs(t, err, domainerrors.ErrBookNotFound)

	_, err = env.books.AddBook(context.Background(), "user-1", "  ")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestAddBook_CoverFailureIsNotFatal(t *testing.T) {
	env := setupTestEnv(t)
	env.createUser(t, "user-1")
	env.lookup.add("0441013597", duneResult())
	env.covers.err = errors.New("cover host down")

	_, err := env.books.AddBook(context.Background(), "user-1", "0441013597")
	assert.NoError(t, err)
}

func TestAddManual_RoundTrip(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")

	ubID, err := env.books.AddManual(ctx, "user-1", ManualBookRequest{
		Title:  "Dune",
		Author: "Herbert",
		ISBN10: ptr("0441013597"),
	})
	require.NoError(t, err)

	entry, err := env.books.Get(ctx, "user-1", ubID)
	require.NoError(t, err)
	assert.Equal(t, ubID, entry.UserBook.ID)
	assert.Equal(t, "Dune", entry.Book.Title)
	assert.Equal(t, "Herbert", entry.Book.Author)
	require.NotNil(t, entry.Book.ISBN10)
	assert.Equal(t, "0441013597", *entry.Book.ISBN10)
	assert.Nil(t, entry.Book.ISBN13)
	assert.Nil(t, entry.Book.PublishDate)
	assert.Empty(t, entry.Tags)
}

func TestAddManual_AllFields(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")
	scifi := env.createTag(t, "user-1", "scifi")

	ubID, err := env.books.AddManual(ctx, "user-1", ManualBookRequest{
		Title:       " Emma ",
		Subtitle:    ptr("A Novel"),
		Author:      "Jane Austen",
		Description: ptr("Matchmaking."),
		ISBN13:      ptr("978-0-14-143958-7"),
		PageCount:   ptr(474),
		Language:    ptr("EN"),
		PublishDate: ptr("1815-12-23"),
		Tags:        []string{scifi.ID, scifi.ID},
	})
	require.NoError(t, err)

	entry, err := env.books.Get(ctx, "user-1", ubID)
	require.NoError(t, err)
	assert.Equal(t, "Emma", entry.Book.Title)
	assert.Equal(t, "9780141439587", *entry.Book.ISBN13)
	assert.Equal(t, "en", *entry.Book.Language)
	assert.Equal(t, 474, *entry.Book.PageCount)
	assert.Equal(t, 1815, entry.Book.PublishDate.Year())
	require.Len(t, entry.Tags, 1)
	assert.Equal(t, "scifi", entry.Tags[0].Name)
}

func TestAddManual_RequiresAnISBN(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")

	_, err := env.books.AddManual(ctx, "user-1", ManualBookRequest{Title: "Dune", Author: "Herbert"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = env.books.AddManual(ctx, "user-1", ManualBookRequest{Title: "Dune", Author: "Herbert", ISBN10: ptr(""), ISBN13: ptr(" ")})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	books, err := env.store.ListBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestAddManual_Validation(t *testing.T) {
	env := setupTestEnv(t)
	env.createUser(t, "user-1")

	tests := []struct {
		name string
		req  ManualBookRequest
	}{
		{"missing title", ManualBookRequest{Author: "A", ISBN10: ptr("0441013597")}},
		{"missing author", ManualBookRequest{Title: "T", ISBN10: ptr("0441013597")}},
		{"short isbn10", ManualBookRequest{Title: "T", Author: "A", ISBN10: ptr("12345")}},
		{"long language", ManualBookRequest{Title: "T", Author: "A", ISBN10: ptr("0441013597"), Language: ptr("eng")}},
		{"bad date", ManualBookRequest{Title: "T", Author: "A", ISBN10: ptr("0441013597"), PublishDate: ptr("someday")}},
		{"negative pages", ManualBookRequest{Title: "T", Author: "A", ISBN10: ptr("0441013597"), PageCount: ptr(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.books.AddManual(context.Background(), "user-1", tt.req)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)
		})
	}
}

func TestAddManual_DuplicateISBN(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")
	env.createUser(t, "user-2")

	_, err := env.books.AddManual(ctx, "user-1", ManualBookRequest{Title: "Dune", Author: "Herbert", ISBN10: ptr("0441013597")})
	require.NoError(t, err)

	_, err = env.books.AddManual(ctx, "user-2", ManualBookRequest{Title: "Other", Author: "X", ISBN10: ptr("0441013597")})
	assert.ErrorIs(t, err, domainerrors.ErrBookAlreadyAdded)
}

func TestAddManual_ForeignTagRejected(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")
	env.createUser(t, "user-2")
	mine := env.createTag(t, "user-1", "mine")
	theirs := env.createTag(t, "user-2", "theirs")

	_, err := env.books.AddManual(ctx, "user-1", ManualBookRequest{
		Title: "Dune", Author: "Herbert", ISBN10: ptr("0441013597"),
		Tags: []string{mine.ID, theirs.ID},
	})
	require.ErrorIs(t, err, domainerrors.ErrTagNotFound)
	assert.Contains(t, err.Error(), theirs.ID)

	books, err := env.store.ListBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books, "nothing written when a tag is rejected")
}

func TestUpdate_PatchSemantics(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")
	ubID, err := env.books.AddManual(ctx, "user-1", ManualBookRequest{
		Title: "Dune", Author: "Herbert", ISBN10: ptr("0441013597"), Subtitle: ptr("Book One"),
	})
	require.NoError(t, err)

	_, err = env.books.Update(ctx, "user-1", ubID, UpdateBookRequest{
		Title:     ptr("Dune Messiah"),
		PageCount: ptr(256),
	})
	require.NoError(t, err)

	entry, err := env.books.Get(ctx, "user-1", ubID)
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", entry.Book.Title)
	assert.Equal(t, "Herbert", entry.Book.Author)
	assert.Equal(t, "Book One", *entry.Book.Subtitle)
	assert.Equal(t, 256, *entry.Book.PageCount)

	ids, err := env.index.MatchBookIDs(ctx, "messiah", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{entry.Book.ID}, ids)
}

func TestUpdate_UnchangedISBNIsNotAConflict(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")
	ubID, err := env.books.AddManual(ctx, "user-1", ManualBookRequest{Title: "Dune", Author: "Herbert", ISBN10: ptr("0441013597")})
	require.NoError(t, err)

	_, err = env.books.Update(ctx, "user-1", ubID, UpdateBookRequest{ISBN10: ptr("0441013597"), Title: ptr("Dune")})
	assert.NoError(t, err)
}

func TestUpdate_ISBNOwnedByAnotherBook(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")
	_, err := env.books.AddManual(ctx, "user-1", ManualBookRequest{Title: "Dune", Author: "Herbert", ISBN10: ptr("0441013597")})
	require.NoError(t, err)
	emma, err := env.books.AddManual(ctx, "user-1", ManualBookRequest{Title: "Emma", Author: "Austen", ISBN13: ptr("9780141439587")})
	require.NoError(t, err)

	_, err = env.books.Update(ctx, "user-1", emma, UpdateBookRequest{ISBN10: ptr("0441013597")})
	assert.ErrorIs(t, err, domainerrors.ErrBookAlreadyAdded)
}

func TestUpdate_TagsAllOrNothing(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")
	env.createUser(t, "user-2")
	a := env.createTag(t, "user-1", "a")
	b := env.createTag(t, "user-1", "b")
	foreign := env.createTag(t, "user-2", "foreign")

	ubID, err := env.books.AddManual(ctx, "user-1", ManualBookRequest{
		Title: "Dune", Author: "Herbert", ISBN10: ptr("0441013597"), Tags: []string{a.ID},
	})
	require.NoError(t, err)

	_, err = env.books.Update(ctx, "user-1", ubID, UpdateBookRequest{
		Title: ptr("Changed"),
		Tags:  &[]string{b.ID, foreign.ID},
	})
	require.ErrorIs(t, err, domainerrors.ErrTagNotFound)

	entry, err := env.books.Get(ctx, "user-1", ubID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", entry.Book.Title, "book not modified")
	require.Len(t, entry.Tags, 1)
	assert.Equal(t, a.ID, entry.Tags[0].ID, "tags not modified")

	// Nil tags leave associations alone; an empty list clears them.
	_, err = env.books.Update(ctx, "user-1", ubID, UpdateBookRequest{Title: ptr("Changed")})
	require.NoError(t, err)
	entry, err = env.books.Get(ctx, "user-1", ubID)
	require.NoError(t, err)
	assert.Len(t, entry.Tags, 1)

	_, err = env.books.Update(ctx, "user-1", ubID, UpdateBookRequest{Tags: &[]string{}})
	require.NoError(t, err)
	entry, err = env.books.Get(ctx, "user-1", ubID)
	require.NoError(t, err)
	assert.Empty(t, entry.Tags)
}

func TestOtherUsersEntriesLookMissing(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "owner")
	env.createUser(t, "intruder")
	ubID, err := env.books.AddManual(ctx, "owner", ManualBookRequest{Title: "Dune", Author: "Herbert", ISBN10: ptr("0441013597")})
	require.NoError(t, err)

	_, err = env.books.Get(ctx, "intruder", ubID)
	assert.ErrorIs(t, err, domainerrors.ErrBookNotFound)
	_, err = env.books.Update(ctx, "intruder", ubID, UpdateBookRequest{Title: ptr("Hacked")})
	assert.ErrorIs(t, err, domainerrors.ErrBookNotFound)
	assert.ErrorIs(t, env.books.Delete(ctx, "intruder", ubID), domainerrors.ErrBookNotFound)
	assert.ErrorIs(t, env.books.SetRead(ctx, "intruder", ubID, true), domainerrors.ErrBookNotFound)
	assert.ErrorIs(t, env.books.UpdateCover(ctx, "intruder", ubID, "https://x/y.jpg"), domainerrors.ErrBookNotFound)

	_, err = env.books.Get(ctx, "owner", "ub-missing")
	assert.ErrorIs(t, err, domainerrors.ErrBookNotFound)

	entry, err := env.books.Get(ctx, "owner", ubID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", entry.Book.Title)
}

func TestDelete_KeepsCatalogBook(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")
	ubID, err := env.books.AddManual(ctx, "user-1", ManualBookRequest{Title: "Dune", Author: "Herbert", ISBN10: ptr("0441013597")})
	require.NoError(t, err)

	require.NoError(t, env.books.Delete(ctx, "user-1", ubID))
	_, err = env.books.Get(ctx, "user-1", ubID)
	assert.ErrorIs(t, err, domainerrors.ErrBookNotFound)

	count, err := env.store.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSetRead(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")
	ubID, err := env.books.AddManual(ctx, "user-1", ManualBookRequest{Title: "Dune", Author: "Herbert", ISBN10: ptr("0441013597")})
	require.NoError(t, err)

	require.NoError(t, env.books.SetRead(ctx, "user-1", ubID, true))
	entry, err := env.books.Get(ctx, "user-1", ubID)
	require.NoError(t, err)
	assert.NotNil(t, entry.UserBook.ReadDate)

	require.NoError(t, env.books.SetRead(ctx, "user-1", ubID, false))
	entry, err = env.books.Get(ctx, "user-1", ubID)
	require.NoError(t, err)
	assert.Nil(t, entry.UserBook.ReadDate)
}

func seedList(t *testing.T, env *testEnv) (dune, emma, zen string) {
	t.Helper()
	ctx := context.Background()
	env.createUser(t, "user-1")
	scifi := env.createTag(t, "user-1", "scifi")

	var err error
	dune, err = env.books.AddManual(ctx, "user-1", ManualBookRequest{
		Title: "Dune", Author: "Frank Herbert", ISBN10: ptr("0441013597"), Tags: []string{scifi.ID},
	})
	require.NoError(t, err)
	emma, err = env.books.AddManual(ctx, "user-1", ManualBookRequest{
		Title: "Emma", Author: "Jane Austen", ISBN13: ptr("9780141439587"),
	})
	require.NoError(t, err)
	zen, err = env.books.AddManual(ctx, "user-1", ManualBookRequest{
		Title: "Zen and the Art of Motorcycle Maintenance", Author: "Robert Pirsig", ISBN13: ptr("9780060589462"),
	})
	require.NoError(t, err)
	require.NoError(t, env.books.SetRead(ctx, "user-1", emma, true))
	return dune, emma, zen
}

func listIDs(t *testing.T, env *testEnv, opts ListOptions) []string {
	t.Helper()
	result, err := env.books.List(context.Background(), "user-1", opts)
	require.NoError(t, err)
	ids := make([]string, 0, len(result.Items))
	for _, e := range result.Items {
		ids = append(ids, e.UserBook.ID)
	}
	return ids
}

func byTitle() ListOptions {
	return ListOptions{Sort: store.SortCriteria{Column: store.SortByTitle, Asc: true}}
}

func TestList_SortAndPaginate(t *testing.T) {
	env := setupTestEnv(t)
	dune, emma, zen := seedList(t, env)

	assert.Equal(t, []string{dune, emma, zen}, listIDs(t, env, byTitle()))

	opts := byTitle()
	opts.Sort.Asc = false
	opts.Page = store.PaginationParams{Limit: 2, Offset: 1}
	result, err := env.books.List(context.Background(), "user-1", opts)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	require.Len(t, result.Items, 2)
	assert.Equal(t, emma, result.Items[0].UserBook.ID)
	assert.Equal(t, dune, result.Items[1].UserBook.ID)
}

func TestList_Search(t *testing.T) {
	env := setupTestEnv(t)
	dune, _, zen := seedList(t, env)

	opts := byTitle()
	opts.Search = "herbert"
	assert.Equal(t, []string{dune}, listIDs(t, env, opts))

	opts.Search = "motorcycle"
	assert.Equal(t, []string{zen}, listIDs(t, env, opts))

	opts.Search = "Herb"
	assert.Equal(t, []string{dune}, listIDs(t, env, opts))

	opts.Search = "pirs"
	assert.Equal(t, []string{zen}, listIDs(t, env, opts))

	opts.Search = "nonexistentword"
	assert.Empty(t, listIDs(t, env, opts))
}

func TestList_SearchScopedToLibrary(t *testing.T) {
	env := setupTestEnv(t)
	dune, _, _ := seedList(t, env)
	env.createUser(t, "user-2")
	_, err := env.books.AddManual(context.Background(), "user-2", ManualBookRequest{
		Title: "Dune Messiah", Author: "Frank Herbert", ISBN13: ptr("9780593098233"),
	})
	require.NoError(t, err)

	opts := byTitle()
	opts.Search = "herbert"
	assert.Equal(t, []string{dune}, listIDs(t, env, opts))
}

func TestList_ReadAndTagFilters(t *testing.T) {
	env := setupTestEnv(t)
	dune, emma, zen := seedList(t, env)

	opts := byTitle()
	opts.Read = ptr(true)
	assert.Equal(t, []string{emma}, listIDs(t, env, opts))
	opts.Read = ptr(false)
	assert.Equal(t, []string{dune, zen}, listIDs(t, env, opts))

	opts = byTitle()
	opts.Tag = "SciFi"
	assert.Equal(t, []string{dune}, listIDs(t, env, opts))
}

func TestList_UnknownTagIgnored(t *testing.T) {
	env := setupTestEnv(t)
	seedList(t, env)

	all := listIDs(t, env, byTitle())
	opts := byTitle()
	opts.Tag = "fantasy"
	assert.Equal(t, all, listIDs(t, env, opts))
}

func TestList_InvalidSortColumn(t *testing.T) {
	env := setupTestEnv(t)
	env.createUser(t, "user-1")

	_, err := env.books.List(context.Background(), "user-1", ListOptions{Sort: store.SortCriteria{Column: 42}})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestUpdateCover(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")
	ubID, err := env.books.AddManual(ctx, "user-1", ManualBookRequest{Title: "Dune", Author: "Herbert", ISBN10: ptr("0441013597")})
	require.NoError(t, err)

	assert.ErrorIs(t, env.books.UpdateCover(ctx, "user-1", ubID, " "), domainerrors.ErrValidation)

	require.NoError(t, env.books.UpdateCover(ctx, "user-1", ubID, "https://covers.example.com/new.jpg"))
	cover, err := env.books.CoverImage(ctx, ubID)
	require.NoError(t, err)
	assert.False(t, cover.Placeholder)
	assert.Equal(t, []byte("jpeg:https://covers.example.com/new.jpg"), cover.Data)

	env.covers.err = errors.New("404 from cover host")
	err = env.books.UpdateCover(ctx, "user-1", ubID, "https://covers.example.com/missing.jpg")
	assert.ErrorIs(t, err, domainerrors.ErrDownloadCover)
}

func TestCoverImage_PlaceholderWhenMissing(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")
	ubID, err := env.books.AddManual(ctx, "user-1", ManualBookRequest{Title: "Dune", Author: "Herbert", ISBN10: ptr("0441013597")})
	require.NoError(t, err)

	cover, err := env.books.CoverImage(ctx, ubID)
	require.NoError(t, err)
	assert.True(t, cover.Placeholder)
	assert.Equal(t, images.Placeholder(), cover.Data)

	_, err = env.books.CoverImage(ctx, "ub-missing")
	assert.ErrorIs(t, err, domainerrors.ErrBookNotFound)
}

func TestReindex_RebuildsEmptyIndex(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "user-1")
	_, err := env.books.AddManual(ctx, "user-1", ManualBookRequest{Title: "Dune", Author: "Herbert", ISBN10: ptr("0441013597")})
	require.NoError(t, err)

	require.NoError(t, env.index.Rebuild())
	count, err := env.index.DocumentCount()
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, env.books.Reindex(ctx))
	count, err = env.index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}
