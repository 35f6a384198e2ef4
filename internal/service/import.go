package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	domainerrors "github.com/shelfapp/shelf-server/internal/errors"
	"github.com/shelfapp/shelf-server/internal/id"
	"github.com/shelfapp/shelf-server/internal/store/sqlite"
)

const (
	// maxImportSize bounds a stored upload.
	maxImportSize = 32 << 20 // 32MB

	importQueueSize = 8

	goodreadsDateLayout = "2006/01/02"
)

// Goodreads export columns.
const (
	colISBN        = "ISBN"
	colISBN13      = "ISBN13"
	colDateRead    = "Date Read"
	colBookshelves = "Bookshelves"
)

// Exclusive shelves are Goodreads reading states, not user shelves.
var exclusiveShelves = map[string]struct{}{
	"read":              {},
	"to-read":           {},
	"currently-reading": {},
}

// ImportSummary counts the outcome of one import.
type ImportSummary struct {
	Rows         int
	Added        int
	AlreadyAdded int
	NotFound     int
	Skipped      int
	Failed       int
}

type importJob struct {
	id     string
	userID string
	path   string
}

// ImportService imports Goodreads CSV exports into a user's library.
// Uploads are stored on disk and processed by a background worker.
type ImportService struct {
	books  *BookService
	tags   *TagService
	store  *sqlite.Store
	dir    string
	logger *slog.Logger

	jobs   chan importJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewImportService creates an import service storing uploads under dir.
func NewImportService(books *BookService, tags *TagService, store *sqlite.Store, dir string, logger *slog.Logger) (*ImportService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create import directory: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ImportService{
		books:  books,
		tags:   tags,
		store:  store,
		dir:    dir,
		logger: logger,
		jobs:   make(chan importJob, importQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start launches the import worker.
func (s *ImportService) Start() {
	s.once.Do(func() {
		s.wg.Add(1)
		go s.worker()
		s.logger.Info("import worker started", "dir", s.dir)
	})
}

// Stop cancels in-flight imports, waits for the worker to exit and
// discards jobs still queued along with their uploads.
func (s *ImportService) Stop() {
	s.cancel()
	s.wg.Wait()

	dropped := 0
	for {
		select {
		case job := <-s.jobs:
			os.Remove(job.path)
			dropped++
		default:
			s.logger.Info("import worker stopped", "dropped_jobs", dropped)
			return
		}
	}
}

// Shutdown implements do.Shutdowner.
func (s *ImportService) Shutdown() error {
	s.Stop()
	return nil
}

// Submit stores the upload and queues it for userID. Returns the job ID.
func (s *ImportService) Submit(userID string, r io.Reader) (string, error) {
	if s.ctx.Err() != nil {
		return "", domainerrors.Internal("Import service is shutting down")
	}

	jobID := id.MustGenerate("import")

	f, err := os.CreateTemp(s.dir, jobID+"-*.csv")
	if err != nil {
		return "", fmt.Errorf("create import file: %w", err)
	}
	path := f.Name()

	n, err := io.Copy(f, io.LimitReader(r, maxImportSize+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		os.Remove(path)
		return "", fmt.Errorf("store import file: %w", err)
	case closeErr != nil:
		os.Remove(path)
		return "", fmt.Errorf("close import file: %w", closeErr)
	case n == 0:
		os.Remove(path)
		return "", domainerrors.Validation("file must not be empty")
	case n > maxImportSize:
		os.Remove(path)
		return "", domainerrors.Validationf("file must not exceed %d bytes", maxImportSize)
	}

	job := importJob{id: jobID, userID: userID, path: path}
	select {
	case s.jobs <- job:
	default:
		os.Remove(path)
		return "", domainerrors.RateLimited("Too many imports in progress, try again later")
	}

	s.logger.Info("import queued", "job_id", jobID, "user_id", userID, "bytes", n)
	return jobID, nil
}

func (s *ImportService) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-s.jobs:
			s.run(job)
		}
	}
}

func (s *ImportService) run(job importJob) {
	defer os.Remove(job.path)

	f, err := os.Open(job.path)
	if err != nil {
		s.logger.Error("failed to open import file", "job_id", job.id, "error", err)
		return
	}
	defer f.Close()

	start := time.Now()
	summary, err := s.ImportCSV(s.ctx, job.userID, f)
	if err != nil {
		s.logger.Error("import failed", "job_id", job.id, "user_id", job.userID, "error", err)
		return
	}

	s.logger.Info("import completed",
		"job_id", job.id,
		"user_id", job.userID,
		"rows", summary.Rows,
		"added", summary.Added,
		"already_added", summary.AlreadyAdded,
		"not_found", summary.NotFound,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", time.Since(start),
	)
}

// ImportCSV reads a Goodreads export and adds each row's book to userID's
// library. Rows already in the library or unknown to metadata providers are
// counted and skipped.
func (s *ImportService) ImportCSV(ctx context.Context, userID string, r io.Reader) (*ImportSummary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		cols[strings.TrimSpace(name)] = i
	}
	_, hasISBN := cols[colISBN]
	_, hasISBN13 := cols[colISBN13]
	if !hasISBN && !hasISBN13 {
		return nil, fmt.Errorf("not a Goodreads export: missing %s and %s columns", colISBN, colISBN13)
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	summary := &ImportSummary{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("read row %d: %w", summary.Rows+1, err)
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Rows++

		isbn := cleanGoodreadsISBN(field(record, colISBN13))
		if isbn == "" {
			isbn = cleanGoodreadsISBN(field(record, colISBN))
		}
		if isbn == "" {
			summary.Skipped++
			continue
		}

		userBookID, err := s.books.AddBook(ctx, userID, isbn)
		switch {
		case errors.Is(err, domainerrors.ErrBookAlreadyAdded):
			summary.AlreadyAdded++
			continue
		case errors.Is(err, domainerrors.ErrBookNotFound):
			summary.NotFound++
			continue
		case err != nil:
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Failed++
			s.logger.Warn("import row failed", "isbn", isbn, "error", err)
			continue
		}
		summary.Added++

		if readDate, ok := parseGoodreadsDate(field(record, colDateRead)); ok {
			if err := s.books.setReadDate(ctx, userID, userBookID, &readDate); err != nil {
				s.logger.Warn("failed to set read date", "user_book_id", userBookID, "error", err)
			}
		}

		if shelves := goodreadsShelves(field(record, colBookshelves)); len(shelves) > 0 {
			s.applyShelves(ctx, userID, userBookID, shelves)
		}
	}

	return summary, nil
}

// applyShelves tags a new library entry with one tag per Goodreads shelf.
func (s *ImportService) applyShelves(ctx context.Context, userID, userBookID string, shelves []string) {
	tagIDs := make([]string, 0, len(shelves))
	for _, shelf := range shelves {
		tag, err := s.tags.FindOrCreate(ctx, userID, shelf)
		if err != nil {
			s.logger.Warn("failed to create tag for shelf", "shelf", shelf, "error", err)
			continue
		}
		tagIDs = append(tagIDs, tag.ID)
	}
	if len(tagIDs) == 0 {
		return
	}
	if err := s.store.SetUserBookTags(ctx, userBookID, tagIDs); err != nil {
		s.logger.Warn("failed to tag imported book", "user_book_id", userBookID, "error", err)
	}
}

// cleanGoodreadsISBN unwraps the ="0441013597" spreadsheet escaping Goodreads uses.
func cleanGoodreadsISBN(raw string) string {
	v := strings.TrimSpace(raw)
	v = strings.TrimPrefix(v, "=")
	v = strings.Trim(v, `"`)
	return strings.TrimSpace(v)
}

func parseGoodreadsDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(goodreadsDateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func goodreadsShelves(raw string) []string {
	var shelves []string
	for part := range strings.SplitSeq(raw, ",") {
		shelf := strings.TrimSpace(part)
		if shelf == "" {
			continue
		}
		if _, ok := exclusiveShelves[shelf]; ok {
			continue
		}
		shelves = append(shelves, shelf)
	}
	return shelves
}
