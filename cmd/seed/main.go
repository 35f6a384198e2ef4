// Package main provides a tool to seed a development database with a demo
// user, tags and a handful of books.
//
// Books are added manually, so no metadata provider is contacted. Running it
// twice is harmless: existing users, tags and books are reused.
//
// Usage:
//
//	SHELF_DATA_DIR=~/.shelf go run ./cmd/seed
//	SHELF_DATA_DIR=~/.shelf go run ./cmd/seed --email demo@example.com --password "demo password"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shelfapp/shelf-server/internal/auth"
	"github.com/shelfapp/shelf-server/internal/domain"
	domainerrors "github.com/shelfapp/shelf-server/internal/errors"
	"github.com/shelfapp/shelf-server/internal/id"
	"github.com/shelfapp/shelf-server/internal/media/images"
	"github.com/shelfapp/shelf-server/internal/search"
	"github.com/shelfapp/shelf-server/internal/service"
	"github.com/shelfapp/shelf-server/internal/store"
	"github.com/shelfapp/shelf-server/internal/store/sqlite"
)

var (
	email    = flag.String("email", "demo@example.com", "Email of the demo user")
	password = flag.String("password", "demo password", "Password of the demo user")
)

type seedBook struct {
	req  service.ManualBookRequest
	tags []string
	read bool
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

var books = []seedBook{
	{
		req: service.ManualBookRequest{
			Title: "Dune", Author: "Frank Herbert",
			ISBN10: strPtr("0441013597"), ISBN13: strPtr("9780441013593"),
			PageCount: intPtr(612), Language: strPtr("en"), PublishDate: strPtr("1965-08-01"),
		},
		tags: []string{"scifi", "classic"},
		read: true,
	},
	{
		req: service.ManualBookRequest{
			Title: "Emma", Author: "Jane Austen",
			ISBN10: strPtr("0141439580"), Language: strPtr("en"), PublishDate: strPtr("1815-12-23"),
		},
		tags: []string{"classic"},
	},
	{
		req: service.ManualBookRequest{
			Title: "Hyperion", Author: "Dan Simmons",
			ISBN10: strPtr("0553283685"), PageCount: intPtr(482), Language: strPtr("en"),
		},
		tags: []string{"scifi"},
	},
	{
		req: service.ManualBookRequest{
			Title: "Le Petit Prince", Author: "Antoine de Saint-Exupéry",
			ISBN13: strPtr("9782070612758"), Language: strPtr("fr"),
		},
	},
}

func main() {
	flag.Parse()

	dataPath := os.Getenv("SHELF_DATA_DIR")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/.shelf")
	}
	if err := os.MkdirAll(dataPath, 0o750); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	fmt.Printf("Seeding data directory: %s\n", dataPath)

	logger := slog.New(slog.DiscardHandler)

	st, err := sqlite.Open(filepath.Join(dataPath, "shelf.db"), logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	index, err := search.NewIndex(search.Options{DataPath: dataPath, Logger: logger})
	if err != nil {
		log.Fatalf("Failed to open search index: %v", err)
	}
	defer index.Close()

	coverFiles, err := images.NewStorage(filepath.Join(dataPath, "covers"))
	if err != nil {
		log.Fatalf("Failed to open cover storage: %v", err)
	}

	ctx := context.Background()

	user, err := ensureUser(ctx, st, *email, *password)
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}
	fmt.Printf("User: %s (%s)\n", user.Email, user.ID)

	// Manual adds never reach the metadata lookup or the cover downloader.
	bookService := service.NewBookService(st, index, nil, nil, coverFiles, logger)
	tagService := service.NewTagService(st, logger)

	added := 0
	for _, b := range books {
		req := b.req
		for _, name := range b.tags {
			tag, err := tagService.FindOrCreate(ctx, user.ID, name)
			if err != nil {
				log.Printf("Failed to create tag %q: %v", name, err)
				continue
			}
			req.Tags = append(req.Tags, tag.ID)
		}

		userBookID, err := bookService.AddManual(ctx, user.ID, req)
		if errors.Is(err, domainerrors.ErrBookAlreadyAdded) {
			fmt.Printf("  %s already in catalog, skipping\n", req.Title)
			continue
		}
		if err != nil {
			log.Printf("Failed to add %s: %v", req.Title, err)
			continue
		}

		if b.read {
			if err := bookService.SetRead(ctx, user.ID, userBookID, true); err != nil {
				log.Printf("Failed to mark %s read: %v", req.Title, err)
			}
		}

		added++
		fmt.Printf("  Added: %s (%s)\n", req.Title, userBookID)
	}

	fmt.Printf("\nDone: %d books added\n", added)
}

// ensureUser returns the user with the given email, creating it when missing.
func ensureUser(ctx context.Context, st *sqlite.Store, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := st.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user = &domain.User{
		ID:           id.MustGenerate("user"),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := st.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
