// Package googlebooks looks up books by ISBN in the Google Books volumes API.
package googlebooks

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
	providerName   = "googlebooks"
	defaultBaseURL = "https://www.googleapis.com/books/v1"
	defaultTimeout = 10 * time.Second
	maxBodySize    = 2 << 20
)

// Sentinel errors for Google Books requests.
var (
	ErrRateLimited = errors.New("googlebooks: rate limited by server")
	ErrServer      = errors.New("googlebooks: server error")
)

// Client is a rate-limited Google Books client.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// Options configures the client.
type Options struct {
	APIKey  string        // Optional; raises the anonymous quota
	Timeout time.Duration // Defaults to 10s
	Logger  *slog.Logger
}

// New creates a Google Books client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		baseURL: defaultBaseURL,
		apiKey:  opts.APIKey,
		logger:  logger,
	}
}

// Name identifies the provider in logs and cached results.
func (c *Client) Name() string { return providerName }

// LookupISBN returns the first volume matching isbn.
func (c *Client) LookupISBN(ctx context.Context, isbn string) (*metadata.Result, error) {
	query := url.Values{}
	query.Set("q", "isbn:"+isbn)
	query.Set("maxResults", "1")
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}

	body, err := c.doRequest(ctx, c.baseURL+"/volumes?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("googlebooks lookup %s: %w", isbn, err)
	}

	var resp volumesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("googlebooks lookup %s: parse response: %w", isbn, err)
	}
	if len(resp.Items) == 0 {
		return nil, metadata.ErrNotFound
	}

	return resp.Items[0].VolumeInfo.toResult(), nil
}

func (c *Client) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Shelf/1.0")

	c.logger.Debug("googlebooks request", "url", req.URL.Path)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, metadata.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, ErrServer
	default:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title               string               `json:"title"`
	Subtitle            string               `json:"subtitle"`
	Authors             []string             `json:"authors"`
	Description         string               `json:"description"`
	PublishedDate       string               `json:"publishedDate"`
	PageCount           int                  `json:"pageCount"`
	Language            string               `json:"language"`
	IndustryIdentifiers []industryIdentifier `json:"industryIdentifiers"`
	ImageLinks          map[string]string    `json:"imageLinks"`
}

type industryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

func (v *volumeInfo) toResult() *metadata.Result {
	r := &metadata.Result{
		Title:        v.Title,
		Subtitle:     v.Subtitle,
		Author:       metadata.JoinAuthors(v.Authors),
		Description:  v.Description,
		PageCount:    v.PageCount,
		Language:     v.Language,
		PublishDate:  metadata.ParsePublishDate(v.PublishedDate),
		ThumbnailURL: selectThumbnail(v.ImageLinks),
	}
	for _, id := range v.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_10":
			r.ISBN10 = id.Identifier
		case "ISBN_13":
			r.ISBN13 = id.Identifier
		}
	}
	return r
}

// selectThumbnail picks the largest image link and forces https.
func selectThumbnail(links map[string]string) string {
	for _, size := range []string{"large", "medium", "thumbnail", "smallThumbnail"} {
		if u, ok := links[size]; ok && u != "" {
			u = strings.Replace(u, "&edge=curl", "", 1)
			if strings.HasPrefix(u, "http://") {
				u = "https://" + strings.TrimPrefix(u, "http://")
			}
			return u
		}
	}
	return ""
}
