// Package openlibrary looks up books by ISBN in the Open Library books API.
package openlibrary

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/shelfapp/shelf-server/internal/metadata"
)

const (
	providerName   = "openlibrary"
	defaultBaseURL = "https://openlibrary.org"
	defaultTimeout = 10 * time.Second
	maxBodySize    = 2 << 20
)

// Sentinel errors for Open Library requests.
var (
	ErrRateLimited = errors.New("openlibrary: rate limited by server")
	ErrServer      = errors.New("openlibrary: server error")
)

// Client is a rate-limited Open Library client.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	baseURL string
	logger  *slog.Logger
}

// New creates an Open Library client. Requests are limited to one per
// second with a burst of 3, as Open Library asks of API consumers.
func New(timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
		baseURL: defaultBaseURL,
		logger:  logger,
	}
}

// Name identifies the provider in logs and cached results.
func (c *Client) Name() string { return providerName }

// LookupISBN returns the edition matching isbn.
func (c *Client) LookupISBN(ctx context.Context, isbn string) (*metadata.Result, error) {
	key := "ISBN:" + isbn

	query := url.Values{}
	query.Set("bibkeys", key)
	query.Set("jscmd", "data")
	query.Set("format", "json")

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/books?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Shelf/1.0")

	c.logger.Debug("openlibrary request", "isbn", isbn)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openlibrary lookup %s: %w", isbn, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, metadata.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, ErrServer
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("openlibrary lookup %s: unexpected status %d", isbn, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var editions map[string]edition
	if err := json.Unmarshal(body, &editions); err != nil {
		return nil, fmt.Errorf("openlibrary lookup %s: parse response: %w", isbn, err)
	}

	ed, ok := editions[key]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	return ed.toResult(), nil
}

type edition struct {
	Title         string              `json:"title"`
	Subtitle      string              `json:"subtitle"`
	Authors       []namedEntity       `json:"authors"`
	NumberOfPages int                 `json:"number_of_pages"`
	PublishDate   string              `json:"publish_date"`
	Identifiers   map[string][]string `json:"identifiers"`
	Cover         map[string]string   `json:"cover"`
	Languages     []struct {
		Key string `json:"key"` // e.g. "/languages/eng"
	} `json:"languages"`
}

type namedEntity struct {
	Name string `json:"name"`
}

func (e *edition) toResult() *metadata.Result {
	names := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		names = append(names, a.Name)
	}

	r := &metadata.Result{
		Title:       e.Title,
		Subtitle:    e.Subtitle,
		Author:      metadata.JoinAuthors(names),
		PageCount:   e.NumberOfPages,
		PublishDate: metadata.ParsePublishDate(e.PublishDate),
	}
	if ids := e.Identifiers["isbn_10"]; len(ids) > 0 {
		r.ISBN10 = ids[0]
	}
	if ids := e.Identifiers["isbn_13"]; len(ids) > 0 {
		r.ISBN13 = ids[0]
	}
	if len(e.Languages) > 0 {
		r.Language = strings.TrimPrefix(e.Languages[0].Key, "/languages/")
	}
	for _, size := range []string{"large", "medium", "small"} {
		if u := e.Cover[size]; u != "" {
			r.ThumbnailURL = u
			break
		}
	}
	return r
}
