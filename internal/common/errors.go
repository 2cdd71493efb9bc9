package common

import (
	"errors"
	"fmt"
)

// Batch error taxonomy. Batch-fatal errors terminate a run in the failed
// state; document-local errors are caught at the per-document boundary and
// the loop continues.
var (
	// ErrArchive: the uploaded payload is unreadable or corrupt. Batch-fatal.
	ErrArchive = errors.New("archive error")
	// ErrNoDocuments: the archive held zero eligible documents. Batch-fatal.
	ErrNoDocuments = errors.New("no documents in archive")
	// ErrDocumentRead: one document could not be opened or parsed. Document-local.
	ErrDocumentRead = errors.New("document read error")
	// ErrExtractionParse: the extraction service returned unparsable content. Document-local.
	ErrExtractionParse = errors.New("extraction parse error")
	// ErrExtractionService: the extraction call failed or timed out. Document-local.
	ErrExtractionService = errors.New("extraction service error")
	// ErrStorage: persisting one document's record failed. Document-local.
	ErrStorage = errors.New("storage error")
	// ErrOrchestration: an unexpected fault in the batch loop itself. Batch-fatal.
	ErrOrchestration = errors.New("orchestration error")
	// ErrCleanup: temporary artifacts could not be removed. Never fatal.
	ErrCleanup = errors.New("cleanup error")
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates an AppError wrapping cause.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapError annotates err with a message, preserving the chain.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// DocumentLocal reports whether err should be isolated to a single document
// rather than aborting the batch.
func DocumentLocal(err error) bool {
	return errors.Is(err, ErrDocumentRead) ||
		errors.Is(err, ErrExtractionParse) ||
		errors.Is(err, ErrExtractionService) ||
		errors.Is(err, ErrStorage)
}
