package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cardwatch/agreements-tracker/internal/common"
)

type scriptedExtractor struct {
	calls int
	errs  []error
}

func (s *scriptedExtractor) ExtractFields(_ context.Context, _ string) (FieldMap, []byte, error) {
	s.calls++
	if s.calls <= len(s.errs) && s.errs[s.calls-1] != nil {
		return nil, nil, s.errs[s.calls-1]
	}
	return FieldMap{"Issuer": "Bank A"}, []byte(`{"Issuer":"Bank A"}`), nil
}

func TestWithRetryRecoversFromServiceErrors(t *testing.T) {
	inner := &scriptedExtractor{errs: []error{
		fmt.Errorf("%w: status 503", common.ErrExtractionService),
		fmt.Errorf("%w: timeout", common.ErrExtractionService),
	}}
	ex := WithRetry(inner, 3, time.Millisecond, nil)

	fields, _, err := ex.ExtractFields(context.Background(), "text")
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if fields["Issuer"] != "Bank A" {
		t.Errorf("unexpected fields: %v", fields)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestWithRetryBoundsAttempts(t *testing.T) {
	inner := &scriptedExtractor{errs: []error{
		fmt.Errorf("%w: down", common.ErrExtractionService),
		fmt.Errorf("%w: down", common.ErrExtractionService),
		fmt.Errorf("%w: down", common.ErrExtractionService),
	}}
	ex := WithRetry(inner, 3, time.Millisecond, nil)

	_, _, err := ex.ExtractFields(context.Background(), "text")
	if !errors.Is(err, common.ErrExtractionService) {
		t.Fatalf("expected ErrExtractionService, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestWithRetryDoesNotRetryParseErrors(t *testing.T) {
	inner := &scriptedExtractor{errs: []error{
		fmt.Errorf("%w: bad json", common.ErrExtractionParse),
	}}
	ex := WithRetry(inner, 5, time.Millisecond, nil)

	_, _, err := ex.ExtractFields(context.Background(), "text")
	if !errors.Is(err, common.ErrExtractionParse) {
		t.Fatalf("expected ErrExtractionParse, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1 (parse errors are not retried)", inner.calls)
	}
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	inner := &scriptedExtractor{errs: []error{
		fmt.Errorf("%w: down", common.ErrExtractionService),
		fmt.Errorf("%w: down", common.ErrExtractionService),
	}}
	ex := WithRetry(inner, 3, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err := ex.ExtractFields(ctx, "text")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
