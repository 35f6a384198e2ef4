package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/shelfapp/shelf-server/internal/http/response"
)

func (s *Server) registerCoverRoutes() {
	// Cover reads stream JPEG bytes, so they use chi directly. Covers are
	// public: the library entry ID is the capability.
	s.router.Get("/api/v1/book/{id}/cover", s.handleGetCover)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBookCover",
		Method:      http.MethodPost,
		Path:        "/api/v1/book/{id}/cover",
		Summary:     "Update book cover",
		Description: "Downloads the image at url and stores it as the book's cover",
		Tags:        []string{"Covers"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateCover)
}

// === DTOs ===

// UpdateCoverRequest is the body for replacing a cover.
type UpdateCoverRequest struct {
	URL string `json:"url" doc:"HTTP(S) URL of a JPEG, PNG, GIF or WebP image"`
}

// UpdateCoverInput wraps the update cover request for Huma.
type UpdateCoverInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Library entry ID"`
	Body          UpdateCoverRequest
}

// === Handlers ===

func (s *Server) handleGetCover(w http.ResponseWriter, r *http.Request) {
	cover, err := s.services.Book.CoverImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "image/jpeg")
	h.Set("Content-Length", strconv.Itoa(len(cover.Data)))
	h.Set("Expires", time.Now().Add(coverLifetime).UTC().Format(time.RFC1123Z))
	if !cover.Placeholder {
		h.Set("Cache-Control", CacheOneHour)
	}
	if cover.BlurHash != "" {
		h.Set(headerBlurHash, cover.BlurHash)
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(cover.Data); err != nil {
		s.logger.Debug("cover write aborted", "error", err)
	}
}

func (s *Server) handleUpdateCover(ctx context.Context, input *UpdateCoverInput) (*StatusOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Book.UpdateCover(ctx, userID, input.ID, input.Body.URL); err != nil {
		return nil, err
	}
	return statusOK(), nil
}
