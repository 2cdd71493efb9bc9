package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/cardwatch/agreements-tracker/internal/pipeline"
)

// handleUpload accepts a multipart ZIP payload plus quarter/year tags,
// registers a batch job, stages the archive, and starts the pipeline in the
// background. The response carries the id to poll progress with.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httpError(w, http.StatusBadRequest, "invalid multipart payload: %v", err)
		return
	}

	quarter := strings.TrimSpace(r.FormValue("quarter"))
	if quarter == "" {
		httpError(w, http.StatusBadRequest, "quarter is required")
		return
	}
	year, err := strconv.Atoi(strings.TrimSpace(r.FormValue("year")))
	if err != nil || year <= 0 {
		httpError(w, http.StatusBadRequest, "year must be a positive integer")
		return
	}

	file, header, err := r.FormFile("zip_file")
	if err != nil {
		httpError(w, http.StatusBadRequest, "zip_file is required: %v", err)
		return
	}
	defer file.Close()

	uploadID := uuid.New().String()
	if _, err := s.registry.Create(uploadID); err != nil {
		httpError(w, http.StatusConflict, "%v", err)
		return
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		httpError(w, http.StatusInternalServerError, "prepare upload directory: %v", err)
		return
	}
	uploadPath := filepath.Join(s.cfg.UploadDir, fmt.Sprintf("%s_%s", uploadID, filepath.Base(header.Filename)))
	out, err := os.Create(uploadPath)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "stage upload: %v", err)
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		_ = os.Remove(uploadPath)
		httpError(w, http.StatusInternalServerError, "stage upload: %v", err)
		return
	}
	if err := out.Close(); err != nil {
		httpError(w, http.StatusInternalServerError, "stage upload: %v", err)
		return
	}

	s.logger.Info("upload.accepted",
		"job_id", uploadID,
		"filename", header.Filename,
		"bytes", header.Size,
		"quarter", quarter,
		"year", year,
	)

	// The batch outlives this request; detach from the request context.
	go s.runner.Run(context.WithoutCancel(r.Context()), pipeline.BatchRequest{
		ArchivePath: uploadPath,
		Quarter:     quarter,
		Year:        year,
		JobID:       uploadID,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "File uploaded and processing started",
		"upload_id":    uploadID,
		"progress_url": "/progress/" + uploadID,
	})
}
