package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cardwatch/agreements-tracker/constants"
	"github.com/cardwatch/agreements-tracker/internal/archive"
	"github.com/cardwatch/agreements-tracker/internal/common"
	"github.com/cardwatch/agreements-tracker/internal/extract"
	"github.com/cardwatch/agreements-tracker/internal/llm"
	"github.com/cardwatch/agreements-tracker/internal/normalize"
	"github.com/cardwatch/agreements-tracker/internal/progress"
	"github.com/cardwatch/agreements-tracker/internal/repository"
)

// NoDocumentsMessage is the user-visible message for archives that contain
// no eligible documents.
const NoDocumentsMessage = "No PDF files found in the archive"

// staleUploadAge bounds the best-effort purge of the upload staging area so
// a finishing batch never deletes another batch's in-flight payload.
const staleUploadAge = time.Hour

// Config holds the orchestrator's directories and pacing.
type Config struct {
	// ExtractDir is the parent scratch directory; each job unpacks into its
	// own subdirectory so concurrent batches never share scratch space.
	ExtractDir string
	// UploadDir is the staging area holding uploaded archives.
	UploadDir string
	// YieldInterval is the inter-document pause that lets progress
	// subscribers observe interim state.
	YieldInterval time.Duration
}

// BatchRequest describes one batch run.
type BatchRequest struct {
	ArchivePath string
	Quarter     string
	Year        int
	JobID       string
}

// Orchestrator drives one archive upload end to end: unpack, per-document
// extraction, progress publication, and cleanup. A single document failure
// never aborts the batch.
type Orchestrator struct {
	logger   *slog.Logger
	cfg      Config
	registry progress.Registry
	text     extract.TextExtractor
	fields   llm.FieldExtractor
	repo     repository.AgreementRepository
}

func NewOrchestrator(
	logger *slog.Logger,
	cfg Config,
	registry progress.Registry,
	text extract.TextExtractor,
	fields llm.FieldExtractor,
	repo repository.AgreementRepository,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.YieldInterval <= 0 {
		cfg.YieldInterval = 100 * time.Millisecond
	}
	return &Orchestrator{
		logger:   logger,
		cfg:      cfg,
		registry: registry,
		text:     text,
		fields:   fields,
		repo:     repo,
	}
}

// Run processes the batch to a terminal state. The job must already exist in
// the registry (created on upload); Run owns every transition after that.
func (o *Orchestrator) Run(ctx context.Context, req BatchRequest) {
	scratchDir := filepath.Join(o.cfg.ExtractDir, req.JobID)
	defer o.cleanup(req, scratchDir)

	o.registry.Upsert(req.JobID, progress.Update{
		Status:  progress.Status(constants.JobStatusProcessing),
		Message: progress.String("Starting file extraction..."),
	})

	docs, err := archive.Unpack(req.ArchivePath, scratchDir)
	if err != nil {
		o.logger.Error("batch.unpack.failed", "job_id", req.JobID, "archive", req.ArchivePath, "error", err)
		o.fail(req.JobID, fmt.Sprintf("Processing failed: %v", err))
		return
	}

	total := len(docs)
	if total == 0 {
		o.logger.Warn("batch.no_documents", "job_id", req.JobID, "archive", req.ArchivePath)
		// An empty archive still "finishes": the progress bar runs to 100
		// with the failure message.
		o.registry.Upsert(req.JobID, progress.Update{
			Status:   progress.Status(constants.JobStatusFailed),
			Progress: progress.Int(100),
			Message:  progress.String(NoDocumentsMessage),
		})
		return
	}

	o.registry.Upsert(req.JobID, progress.Update{
		TotalFiles: progress.Int(total),
		Message:    progress.String(fmt.Sprintf("Found %d PDF files to process...", total)),
	})

	processed := 0
	start := time.Now()

	for i, docPath := range docs {
		n := i + 1
		filename := filepath.Base(docPath)

		elapsed := time.Since(start)
		eta := elapsed / time.Duration(n) * time.Duration(total-n)
		o.registry.Upsert(req.JobID, progress.Update{
			Status:         progress.Status(constants.JobStatusProcessing),
			Progress:       progress.Int((n - 1) * 100 / total),
			CurrentFile:    progress.String(filename),
			ProcessedFiles: progress.Int(n - 1),
			ETASeconds:     progress.Int(int(eta.Seconds())),
			Message:        progress.String(fmt.Sprintf("Processing %d of %d: %s", n, total, filename)),
		})

		if err := o.processDocument(ctx, docPath, req); err != nil {
			// Document-local failure: log, skip, keep going.
			o.logger.Error("batch.document.failed",
				"job_id", req.JobID,
				"filename", filename,
				"error", err,
			)
		} else {
			processed++
		}

		// Cooperative yield so concurrent progress observers are not starved.
		select {
		case <-ctx.Done():
			o.logger.Error("batch.cancelled", "job_id", req.JobID, "error", ctx.Err())
			o.fail(req.JobID, fmt.Sprintf("Processing failed: %v",
				fmt.Errorf("%w: %v", common.ErrOrchestration, ctx.Err())))
			return
		case <-time.After(o.cfg.YieldInterval):
		}
	}

	o.registry.Upsert(req.JobID, progress.Update{
		Status:         progress.Status(constants.JobStatusCompleted),
		Progress:       progress.Int(100),
		ProcessedFiles: progress.Int(processed),
		CurrentFile:    progress.String(""),
		ETASeconds:     progress.Int(0),
		Message:        progress.String(fmt.Sprintf("Successfully processed %d of %d files.", processed, total)),
	})
	o.logger.Info("batch.completed",
		"job_id", req.JobID,
		"total_files", total,
		"processed_files", processed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

// processDocument runs the text -> fields -> normalize -> persist chain for
// one document. Every failure wraps a document-local sentinel; no partial
// record is persisted.
func (o *Orchestrator) processDocument(ctx context.Context, docPath string, req BatchRequest) error {
	filename := filepath.Base(docPath)

	res, err := o.text.Extract(ctx, docPath)
	if err != nil {
		return err
	}

	fields, _, err := o.fields.ExtractFields(ctx, res.Text)
	if err != nil {
		return err
	}

	rec := normalize.Record(fields, req.Quarter, req.Year, filename, time.Now().UTC())
	if err := o.repo.Save(ctx, rec); err != nil {
		return err
	}

	o.logger.Info("batch.document.ok",
		"job_id", req.JobID,
		"filename", filename,
		"pages", res.Pages,
	)
	return nil
}

func (o *Orchestrator) fail(jobID, message string) {
	o.registry.Upsert(jobID, progress.Update{
		Status:  progress.Status(constants.JobStatusFailed),
		Message: progress.String(message),
	})
}

// cleanup removes the uploaded archive and the scratch directory, and purges
// stale leftovers in the upload staging area. It runs on every exit path;
// failures are logged, never raised, and only annotate the message of a
// batch that otherwise completed.
func (o *Orchestrator) cleanup(req BatchRequest, scratchDir string) {
	var failed bool

	if err := os.Remove(req.ArchivePath); err != nil && !os.IsNotExist(err) {
		failed = true
		o.logger.Warn("batch.cleanup.archive", "job_id", req.JobID,
			"error", fmt.Errorf("%w: remove archive: %v", common.ErrCleanup, err))
	}

	if _, err := os.Stat(scratchDir); err == nil {
		forcePermissive(scratchDir)
		if err := os.RemoveAll(scratchDir); err != nil {
			failed = true
			o.logger.Warn("batch.cleanup.scratch", "job_id", req.JobID,
				"error", fmt.Errorf("%w: remove scratch dir: %v", common.ErrCleanup, err))
		}
	}

	if err := o.purgeStaleUploads(); err != nil {
		failed = true
		o.logger.Warn("batch.cleanup.staging", "job_id", req.JobID,
			"error", fmt.Errorf("%w: %v", common.ErrCleanup, err))
	}

	if failed {
		if job, ok := o.registry.Get(req.JobID); ok && job.Status == constants.JobStatusCompleted {
			o.registry.Upsert(req.JobID, progress.Update{
				Message: progress.String(job.Message + " (Note: some temporary files could not be cleaned up)"),
			})
		}
	}
}

// purgeStaleUploads removes staging files old enough that no live batch can
// still own them.
func (o *Orchestrator) purgeStaleUploads() error {
	if o.cfg.UploadDir == "" {
		return nil
	}
	entries, err := os.ReadDir(o.cfg.UploadDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read staging dir: %v", err)
	}
	cutoff := time.Now().Add(-staleUploadAge)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(o.cfg.UploadDir, e.Name())
		_ = os.Chmod(path, 0o666)
		if err := os.Remove(path); err != nil {
			o.logger.Warn("batch.cleanup.stale_upload", "path", path, "error", err)
		}
	}
	return nil
}

// forcePermissive relaxes file modes under root so a restrictive archive
// entry cannot block removal.
func forcePermissive(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			_ = os.Chmod(path, 0o755)
		} else {
			_ = os.Chmod(path, 0o666)
		}
		return nil
	})
}
