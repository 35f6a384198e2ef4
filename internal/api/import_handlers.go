package api

import (
	"errors"
	"net/http"

	"github.com/shelfapp/shelf-server/internal/http/response"
)

func (s *Server) registerImportRoutes() {
	// Multipart upload, handled by chi directly.
	s.router.With(s.requireAuth).Put("/api/v1/book/import", s.handleImport)
}

// ImportResponse acknowledges a queued import.
type ImportResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// handleImport accepts a Goodreads CSV export as the multipart field "file"
// and queues it for background processing.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, MaxImportUploadSize+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.BadRequest(w, "File is too large", s.logger)
			return
		}
		response.BadRequest(w, "File is required", s.logger)
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp files only

	file, _, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "File is required", s.logger)
		return
	}
	defer file.Close()

	jobID, err := s.services.Import.Submit(userID, file)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, ImportResponse{Status: "ok", JobID: jobID}, s.logger)
}
