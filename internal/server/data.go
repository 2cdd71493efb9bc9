package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cardwatch/agreements-tracker/internal/repository"
)

func filterFromQuery(r *http.Request) repository.Filter {
	f := repository.Filter{
		Quarter: strings.TrimSpace(r.URL.Query().Get("quarter")),
	}
	if y, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil {
		f.Year = y
	}
	return f
}

// handleData lists extracted records, optionally filtered by quarter/year.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	recs, err := s.repo.List(r.Context(), filterFromQuery(r))
	if err != nil {
		s.logger.Error("data.list_failed", "error", err)
		httpError(w, http.StatusInternalServerError, "listing agreements failed")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleExport streams the matching records as an XLSX workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.exporter.ExportAgreementsXLSX(r.Context(), filterFromQuery(r))
	if err != nil {
		s.logger.Error("export.failed", "error", err)
		httpError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="extracted_data.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
