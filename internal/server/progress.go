package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// pollInterval paces the SSE loop between registry snapshots.
const pollInterval = 500 * time.Millisecond

// handleProgress streams job snapshots over SSE. An event is emitted whenever
// progress or status changes; once the job is terminal the stream ends and
// eviction is scheduled after the retention window.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	if _, ok := s.registry.Get(uploadID); !ok {
		httpError(w, http.StatusNotFound, "upload id not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	lastProgress := -1
	lastStatus := ""
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		job, ok := s.registry.Get(uploadID)
		if !ok {
			return
		}

		if job.Progress != lastProgress || string(job.Status) != lastStatus {
			lastProgress = job.Progress
			lastStatus = string(job.Status)

			payload, err := json.Marshal(job)
			if err != nil {
				s.logger.Error("progress.encode_error", "job_id", uploadID, "error", err)
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()

			if job.Status.Terminal() {
				// Retain the terminal record for late observers, then evict.
				// The janitor covers jobs nobody subscribed to.
				id := uploadID
				time.AfterFunc(s.cfg.RetentionWindow, func() {
					s.registry.Delete(id)
				})
				return
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
