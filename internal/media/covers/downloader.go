// Package covers downloads book cover thumbnails into image storage.
package covers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/shelfapp/shelf-server/internal/domain"
	"github.com/shelfapp/shelf-server/internal/media/images"
)

const (
	// maxCoverSize limits download size to prevent memory exhaustion.
	maxCoverSize = 10 * 1024 * 1024 // 10MB

	// downloadTimeout is the maximum time for a cover download.
	downloadTimeout = 30 * time.Second

	// Stored covers are fitted inside this box.
	maxCoverWidth  = 800
	maxCoverHeight = 1200

	jpegQuality = 85
)

var (
	// ErrInvalidURL is returned for empty or non-http(s) URLs.
	ErrInvalidURL = errors.New("invalid cover URL")
	// ErrNotImage is returned when the downloaded body cannot be decoded.
	ErrNotImage = errors.New("downloaded file is not an image")
	// ErrTooLarge is returned when the body exceeds maxCoverSize.
	ErrTooLarge = errors.New("cover image too large")
)

// Downloader fetches cover images and stores them as JPEG under the book ID.
type Downloader struct {
	httpClient *http.Client
	storage    *images.Storage
	logger     *slog.Logger
}

// NewDownloader creates a new cover downloader.
func NewDownloader(storage *images.Storage, logger *slog.Logger) *Downloader {
	return &Downloader{
		httpClient: &http.Client{
			Timeout: downloadTimeout,
		},
		storage: storage,
		logger:  logger,
	}
}

// DownloadThumbnail fetches rawURL, re-encodes it as JPEG and stores it as
// the cover of book, replacing any existing cover.
func (d *Downloader) DownloadThumbnail(ctx context.Context, book *domain.Book, rawURL string) error {
	if book == nil || book.ID == "" {
		return fmt.Errorf("book is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	data, err := d.fetch(ctx, u.String())
	if err != nil {
		return err
	}

	img, format, err := decode(data)
	if err != nil {
		return err
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxCoverWidth || bounds.Dy() > maxCoverHeight {
		img = imaging.Fit(img, maxCoverWidth, maxCoverHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("encode cover: %w", err)
	}

	if err := d.storage.Save(book.ID, buf.Bytes()); err != nil {
		return fmt.Errorf("store cover: %w", err)
	}

	// A blurhash failure leaves the stored cover in place.
	if hash, err := images.BlurHash(img); err != nil {
		d.logger.Warn("failed to compute cover blurhash", "book_id", book.ID, "error", err)
	} else if err := d.storage.SaveBlurHash(book.ID, hash); err != nil {
		d.logger.Warn("failed to store cover blurhash", "book_id", book.ID, "error", err)
	}

	d.logger.Info("downloaded cover",
		"book_id", book.ID,
		"host", u.Host,
		"format", format,
		"size", buf.Len(),
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
	)
	return nil
}

func (d *Downloader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	downloadCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	// Read one byte past the limit to detect oversized bodies.
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverSize+1))
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	if len(data) > maxCoverSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

func decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrNotImage
	}
	decoded, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return decoded, http.DetectContentType(data), nil
}
