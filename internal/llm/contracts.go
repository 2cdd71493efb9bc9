package llm

import "context"

// FieldMap is the raw field mapping returned by the extraction service.
// Values may be strings, numbers, lists, or nested objects; the normalizer
// flattens them into the record schema.
type FieldMap map[string]any

// FieldExtractor is the interface the pipeline depends on: agreement text in,
// a raw field mapping out (plus the cleaned response bytes for diagnostics).
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text string) (FieldMap, []byte, error)
}
