package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cardwatch/agreements-tracker/internal/common"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "test-model",
	}, nil)
}

func completionResponse(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return b
}

func TestExtractFieldsParsesCleanResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["temperature"] != float64(0) {
			t.Errorf("temperature = %v, want 0", body["temperature"])
		}
		w.Write(completionResponse(`{"Issuer": "Bank A", "Annual Fee ($)": "95"}`))
	})

	fields, raw, err := c.ExtractFields(context.Background(), "agreement text")
	if err != nil {
		t.Fatalf("ExtractFields failed: %v", err)
	}
	if fields["Issuer"] != "Bank A" {
		t.Errorf("Issuer = %v", fields["Issuer"])
	}
	if len(raw) == 0 {
		t.Error("expected cleaned response bytes")
	}
}

func TestExtractFieldsStripsFencedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write(completionResponse("```json\n{\"Issuer\": \"Bank A\"}\n```"))
	})

	fields, _, err := c.ExtractFields(context.Background(), "text")
	if err != nil {
		t.Fatalf("ExtractFields failed: %v", err)
	}
	if fields["Issuer"] != "Bank A" {
		t.Errorf("Issuer = %v", fields["Issuer"])
	}
}

func TestExtractFieldsUnparsableContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write(completionResponse("I could not find any fields, sorry."))
	})

	_, _, err := c.ExtractFields(context.Background(), "text")
	if !errors.Is(err, common.ErrExtractionParse) {
		t.Fatalf("expected ErrExtractionParse, got %v", err)
	}
}

func TestExtractFieldsServiceError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, _, err := c.ExtractFields(context.Background(), "text")
	if !errors.Is(err, common.ErrExtractionService) {
		t.Fatalf("expected ErrExtractionService, got %v", err)
	}
}

func TestExtractFieldsNoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	})

	_, _, err := c.ExtractFields(context.Background(), "text")
	if !errors.Is(err, common.ErrExtractionParse) {
		t.Fatalf("expected ErrExtractionParse, got %v", err)
	}
}
