package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfapp/shelf-server/internal/metadata"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c, err := Open(t.TempDir(), ttl, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_SetGet(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	got, err := c.Get(ctx, "9780441013593")
	require.NoError(t, err)
	assert.Nil(t, got)

	published := time.Date(2005, 8, 2, 0, 0, 0, 0, time.UTC)
	want := &metadata.Result{
		Title:       "Dune",
		Author:      "Frank Herbert",
		ISBN13:      "9780441013593",
		PageCount:   528,
		PublishDate: &published,
		Source:      "googlebooks",
	}
	require.NoError(t, c.Set(ctx, "9780441013593", want))

	got, err = c.Get(ctx, "9780441013593")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.PageCount, got.PageCount)
	assert.Equal(t, "googlebooks", got.Source)
	require.NotNil(t, got.PublishDate)
	assert.True(t, published.Equal(*got.PublishDate))
}

func TestCache_ExpiredIsMiss(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "0441013597", &metadata.Result{Title: "Dune"}))

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	got, err := c.Get(ctx, "0441013597")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_Delete(t *testing.T) {
	c := newTestCache(t, 0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "0441013597", &metadata.Result{Title: "Dune"}))
	require.NoError(t, c.Delete(ctx, "0441013597"))
	require.NoError(t, c.Delete(ctx, "0441013597"))

	got, err := c.Get(ctx, "0441013597")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_CanceledContext(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx, "0441013597")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, c.Set(ctx, "0441013597", &metadata.Result{}), context.Canceled)
}
