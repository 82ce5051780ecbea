// Package errors provides a centralised mapping from service error codes
// to HTTP statuses and human-readable messages.  This keeps every layer
// (API handlers, the index rebuilder, webhook delivery) consistent in what
// it reports to callers.
package errors

import (
	"fmt"
	"net/http"
)

// Kind identifies which subsystem produced the error so the same code
// string (e.g. "not_found" for a subject vs. a route) resolves
// unambiguously.
type Kind string

const (
	Gallery  Kind = "gallery"
	Pipeline Kind = "pipeline"
	Request  Kind = "request"
)

type serviceErrorEntry struct {
	Status  int    // HTTP status to respond with
	Message string // human-readable explanation
}

// ---------------------------------------------------------------------------
// Gallery (filesystem store + representations index)
// ---------------------------------------------------------------------------

var galleryErrors = map[string]serviceErrorEntry{
	"invalid_user_id":    {http.StatusBadRequest, "Subject ID is invalid (1-64 chars of A-Z, a-z, 0-9, dot, underscore, hyphen)"},
	"subject_not_found":  {http.StatusNotFound, "No enrolled face for this subject ID"},
	"store_failed":       {http.StatusInternalServerError, "Failed to write the face image to the gallery"},
	"remove_failed":      {http.StatusInternalServerError, "Failed to remove the subject from the gallery"},
	"list_failed":        {http.StatusInternalServerError, "Failed to read the gallery directory"},
	"index_build_failed": {http.StatusInternalServerError, "Failed to rebuild the representations index"},
}

// ---------------------------------------------------------------------------
// Pipeline (decode + embedding)
// ---------------------------------------------------------------------------

var pipelineErrors = map[string]serviceErrorEntry{
	"decode_failed":   {http.StatusBadRequest, "Uploaded file is not a decodable JPEG, PNG, GIF, or WebP image"},
	"image_too_small": {http.StatusBadRequest, "Uploaded image is too small to embed"},
}

// ---------------------------------------------------------------------------
// Request (transport-level validation)
// ---------------------------------------------------------------------------

var requestErrors = map[string]serviceErrorEntry{
	"missing_file":       {http.StatusBadRequest, "Multipart field 'file' is required"},
	"missing_user_id":    {http.StatusBadRequest, "Multipart field 'user_id' is required"},
	"file_read_failed":   {http.StatusBadRequest, "Failed to read the uploaded file"},
	"file_too_large":     {http.StatusRequestEntityTooLarge, "Uploaded file exceeds the configured size limit"},
	"db_not_configured":  {http.StatusServiceUnavailable, "The audit database is not configured"},
	"audit_query_failed": {http.StatusInternalServerError, "Failed to read the recognition audit log"},
	"not_found":          {http.StatusNotFound, "No such route"},
}

// registry groups all maps by Kind.
var registry = map[Kind]map[string]serviceErrorEntry{
	Gallery:  galleryErrors,
	Pipeline: pipelineErrors,
	Request:  requestErrors,
}

// Message returns a human-readable message for the given error code and
// subsystem kind.  If the code is unknown it returns a descriptive
// fallback rather than an empty string.
func Message(kind Kind, code string) string {
	if m, ok := registry[kind]; ok {
		if entry, ok := m[code]; ok {
			return entry.Message
		}
	}
	return fmt.Sprintf("Unknown %s error (code %s)", kind, code)
}

// Status returns the HTTP status to respond with for the given code.
// Unknown codes map to 500 so a missing registry entry never turns a
// failure into a silent success.
func Status(kind Kind, code string) int {
	if m, ok := registry[kind]; ok {
		if entry, ok := m[code]; ok {
			return entry.Status
		}
	}
	return http.StatusInternalServerError
}

// AllCodes returns every registered code for the given kind.
// Useful for completeness assertions in tests.
func AllCodes(kind Kind) []string {
	m := registry[kind]
	codes := make([]string, 0, len(m))
	for c := range m {
		codes = append(codes, c)
	}
	return codes
}
