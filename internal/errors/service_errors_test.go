package errors

import (
	"net/http"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Authoritative code lists (keep in sync with the handlers that emit them).
// ---------------------------------------------------------------------------

var expectedGallery = []string{
	"invalid_user_id", "subject_not_found", "store_failed",
	"remove_failed", "list_failed", "index_build_failed",
}

var expectedPipeline = []string{
	"decode_failed", "image_too_small",
}

var expectedRequest = []string{
	"missing_file", "missing_user_id", "file_read_failed",
	"file_too_large", "db_not_configured", "audit_query_failed",
	"not_found",
}

// ---------------------------------------------------------------------------
// Completeness: every code a handler can emit is mapped.
// ---------------------------------------------------------------------------

func TestGalleryCompleteness(t *testing.T) {
	for _, code := range expectedGallery {
		msg := Message(Gallery, code)
		if strings.HasPrefix(msg, "Unknown") {
			t.Errorf("gallery code %q is unmapped", code)
		}
	}
}

func TestPipelineCompleteness(t *testing.T) {
	for _, code := range expectedPipeline {
		msg := Message(Pipeline, code)
		if strings.HasPrefix(msg, "Unknown") {
			t.Errorf("pipeline code %q is unmapped", code)
		}
	}
}

func TestRequestCompleteness(t *testing.T) {
	for _, code := range expectedRequest {
		msg := Message(Request, code)
		if strings.HasPrefix(msg, "Unknown") {
			t.Errorf("request code %q is unmapped", code)
		}
	}
}

// ---------------------------------------------------------------------------
// Messages are non-empty and human-readable; statuses are valid HTTP.
// ---------------------------------------------------------------------------

func TestAllEntriesSane(t *testing.T) {
	for _, kind := range []Kind{Gallery, Pipeline, Request} {
		codes := AllCodes(kind)
		if len(codes) == 0 {
			t.Errorf("no codes registered for %s", kind)
		}
		for _, code := range codes {
			msg := Message(kind, code)
			if msg == "" {
				t.Errorf("%s code %q has empty message", kind, code)
			}
			if len(msg) < 10 {
				t.Errorf("%s code %q message too short: %q", kind, code, msg)
			}
			status := Status(kind, code)
			if status < 200 || status > 599 {
				t.Errorf("%s code %q has invalid status %d", kind, code, status)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Unknown codes return a descriptive fallback (never empty) and a 500.
// ---------------------------------------------------------------------------

func TestUnknownCodeFallback(t *testing.T) {
	msg := Message(Gallery, "does_not_exist")
	if !strings.Contains(msg, "Unknown") {
		t.Errorf("expected fallback message for unknown code, got %q", msg)
	}
	if !strings.Contains(msg, "does_not_exist") {
		t.Errorf("expected code in fallback message, got %q", msg)
	}
	if got := Status(Gallery, "does_not_exist"); got != http.StatusInternalServerError {
		t.Errorf("expected 500 for unknown code, got %d", got)
	}
}

func TestUnknownKind(t *testing.T) {
	msg := Message("nonexistent", "decode_failed")
	if !strings.Contains(msg, "Unknown") {
		t.Errorf("expected fallback for unknown kind, got %q", msg)
	}
}

// ---------------------------------------------------------------------------
// Specific status spot-checks.
// ---------------------------------------------------------------------------

func TestSpecificStatuses(t *testing.T) {
	cases := []struct {
		kind Kind
		code string
		want int
	}{
		{Gallery, "invalid_user_id", http.StatusBadRequest},
		{Gallery, "subject_not_found", http.StatusNotFound},
		{Gallery, "store_failed", http.StatusInternalServerError},
		{Pipeline, "decode_failed", http.StatusBadRequest},
		{Request, "file_too_large", http.StatusRequestEntityTooLarge},
		{Request, "db_not_configured", http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		if got := Status(tc.kind, tc.code); got != tc.want {
			t.Errorf("%s/%s: expected status %d, got %d", tc.kind, tc.code, tc.want, got)
		}
	}
}

// ---------------------------------------------------------------------------
// Count guards: if a handler starts emitting a new code, update this test.
// ---------------------------------------------------------------------------

func TestRegistryCounts(t *testing.T) {
	if got := len(AllCodes(Gallery)); got != 6 {
		t.Errorf("Gallery: expected 6 error codes, got %d", got)
	}
	if got := len(AllCodes(Pipeline)); got != 2 {
		t.Errorf("Pipeline: expected 2 error codes, got %d", got)
	}
	if got := len(AllCodes(Request)); got != 7 {
		t.Errorf("Request: expected 7 error codes, got %d", got)
	}
}
