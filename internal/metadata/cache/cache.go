// Package cache persists ISBN lookup results in Badger so repeated adds of
// the same ISBN do not hit external providers.
package cache

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/shelfapp/shelf-server/internal/metadata"
)

const (
	isbnKeyPrefix = "metadata:isbn:"

	// DefaultTTL is used when Open is given a non-positive TTL.
	DefaultTTL = 7 * 24 * time.Hour
)

// cachedResult wraps a lookup result with its fetch time.
type cachedResult struct {
	Result    *metadata.Result `json:"result"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// Cache is a Badger-backed metadata.Cache.
type Cache struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) the cache database in dir.
func Open(dir string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open metadata cache: %w", err)
	}

	logger.Info("metadata cache opened", "path", dir, "ttl", ttl)
	return &Cache{db: db, ttl: ttl, logger: logger, now: time.Now}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Shutdown closes the database when the DI container shuts down.
func (c *Cache) Shutdown() error {
	return c.Close()
}

func isbnKey(isbn string) []byte {
	return fmt.Appendf(nil, "%s%s", isbnKeyPrefix, isbn)
}

// Get returns the cached result for isbn. Returns nil, nil on a miss or
// when the entry is older than the TTL.
func (c *Cache) Get(ctx context.Context, isbn string) (*metadata.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var cached cachedResult
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(isbnKey(isbn))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cached)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached isbn %s: %w", isbn, err)
	}

	if cached.Result == nil || c.now().Sub(cached.FetchedAt) > c.ttl {
		return nil, nil
	}
	return cached.Result, nil
}

// Set stores result for isbn. Badger expires the entry after the TTL.
func (c *Cache) Set(ctx context.Context, isbn string, result *metadata.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(cachedResult{Result: result, FetchedAt: c.now()})
	if err != nil {
		return fmt.Errorf("marshal cached isbn: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(isbnKey(isbn), data).WithTTL(c.ttl))
	})
}

// Delete removes the entry for isbn. Deleting a missing entry is not an error.
func (c *Cache) Delete(ctx context.Context, isbn string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(isbnKey(isbn))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}
