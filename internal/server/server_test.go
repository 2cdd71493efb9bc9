package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cardwatch/agreements-tracker/constants"
	"github.com/cardwatch/agreements-tracker/internal/entity"
	"github.com/cardwatch/agreements-tracker/internal/export"
	"github.com/cardwatch/agreements-tracker/internal/pipeline"
	"github.com/cardwatch/agreements-tracker/internal/progress"
	"github.com/cardwatch/agreements-tracker/internal/repository"
)

// stubRunner records the batch request and signals when it was invoked.
type stubRunner struct {
	mu      sync.Mutex
	reqs    []pipeline.BatchRequest
	started chan struct{}
}

func newStubRunner() *stubRunner {
	return &stubRunner{started: make(chan struct{}, 8)}
}

func (s *stubRunner) Run(_ context.Context, req pipeline.BatchRequest) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	s.started <- struct{}{}
}

func (s *stubRunner) last(t *testing.T) pipeline.BatchRequest {
	t.Helper()
	select {
	case <-s.started:
	case <-time.After(2 * time.Second):
		t.Fatal("batch runner was never invoked")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reqs[len(s.reqs)-1]
}

type listRepo struct {
	recs []*entity.AgreementRecord
	last repository.Filter
}

func (l *listRepo) Save(context.Context, *entity.AgreementRecord) error { return nil }

func (l *listRepo) List(_ context.Context, f repository.Filter) ([]*entity.AgreementRecord, error) {
	l.last = f
	return l.recs, nil
}

type fixture struct {
	srv      *Server
	registry *progress.MemoryRegistry
	repo     *listRepo
	runner   *stubRunner
	handler  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry := progress.NewMemoryRegistry(time.Minute)
	repo := &listRepo{}
	runner := newStubRunner()
	srv := New(nil, Config{
		UploadDir:       t.TempDir(),
		RetentionWindow: time.Minute,
	}, registry, repo, export.NewService(repo, nil), runner)
	return &fixture{
		srv:      srv,
		registry: registry,
		repo:     repo,
		runner:   runner,
		handler:  srv.Router(),
	}
}

func multipartUpload(t *testing.T, quarter, year string, withFile bool) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if quarter != "" {
		mw.WriteField("quarter", quarter)
	}
	if year != "" {
		mw.WriteField("year", year)
	}
	if withFile {
		fw, err := mw.CreateFormFile("zip_file", "agreements.zip")
		if err != nil {
			t.Fatal(err)
		}
		zw := zip.NewWriter(fw)
		w, _ := zw.Create("a.pdf")
		w.Write([]byte("%PDF-1.4 stub"))
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

func TestHandleUpload(t *testing.T) {
	f := newFixture(t)
	body, contentType := multipartUpload(t, "Q1", "2025", true)

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Message     string `json:"message"`
		UploadID    string `json:"upload_id"`
		ProgressURL string `json:"progress_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UploadID == "" {
		t.Fatal("missing upload_id")
	}
	if resp.ProgressURL != "/progress/"+resp.UploadID {
		t.Errorf("progress_url = %q", resp.ProgressURL)
	}

	job, ok := f.registry.Get(resp.UploadID)
	if !ok {
		t.Fatal("job not registered")
	}
	if job.Status != constants.JobStatusUploading {
		t.Errorf("fresh job status = %s", job.Status)
	}

	br := f.runner.last(t)
	if br.JobID != resp.UploadID || br.Quarter != "Q1" || br.Year != 2025 {
		t.Errorf("batch request = %+v", br)
	}
	if filepath.Base(br.ArchivePath) != resp.UploadID+"_agreements.zip" {
		t.Errorf("staged name = %s", filepath.Base(br.ArchivePath))
	}
	if _, err := os.Stat(br.ArchivePath); err != nil {
		t.Errorf("staged archive missing: %v", err)
	}
}

func TestHandleUploadValidation(t *testing.T) {
	tests := []struct {
		name     string
		quarter  string
		year     string
		withFile bool
	}{
		{"missing quarter", "", "2025", true},
		{"missing year", "Q1", "", true},
		{"bad year", "Q1", "soon", true},
		{"negative year", "Q1", "-3", true},
		{"missing file", "Q1", "2025", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			body, contentType := multipartUpload(t, tt.quarter, tt.year, tt.withFile)

			req := httptest.NewRequest(http.MethodPost, "/upload", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			select {
			case <-f.runner.started:
				t.Error("rejected upload still started a batch")
			case <-time.After(50 * time.Millisecond):
			}
		})
	}
}

func TestHandleData(t *testing.T) {
	f := newFixture(t)
	f.repo.recs = []*entity.AgreementRecord{
		{ID: 1, Quarter: "Q1", Year: 2025, SourceFilename: "a.pdf", Issuer: "Bank A"},
	}

	req := httptest.NewRequest(http.MethodGet, "/data?quarter=Q1&year=2025", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if f.repo.last.Quarter != "Q1" || f.repo.last.Year != 2025 {
		t.Errorf("filter = %+v", f.repo.last)
	}
	var got []entity.AgreementRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].Issuer != "Bank A" {
		t.Errorf("records = %+v", got)
	}
}

func TestHandleExport(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/export", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "spreadsheetml") {
		t.Errorf("content type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "extracted_data.xlsx") {
		t.Errorf("content disposition = %q", got)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty workbook body")
	}
}

func TestHandleProgressUnknownID(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/progress/nope", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleProgressTerminalJobStreamsOnceAndEnds(t *testing.T) {
	f := newFixture(t)
	f.registry.Create("job-1")
	f.registry.Upsert("job-1", progress.Update{
		Status:   progress.Status(constants.JobStatusCompleted),
		Progress: progress.Int(100),
		Message:  progress.String("Successfully processed 2 of 2 files."),
	})

	req := httptest.NewRequest(http.MethodGet, "/progress/job-1", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.HasPrefix(string(body), "data: ") {
		t.Fatalf("not an SSE payload: %q", body)
	}
	var job progress.BatchJob
	payload := strings.TrimSpace(strings.TrimPrefix(string(body), "data: "))
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if job.Status != constants.JobStatusCompleted || job.Progress != 100 {
		t.Errorf("event = %+v", job)
	}

	// Eviction is scheduled, not immediate: the record stays for late readers.
	if _, ok := f.registry.Get("job-1"); !ok {
		t.Error("terminal job evicted before retention window")
	}
}
