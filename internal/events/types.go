package events

import "time"

const (
	SubjectFaceRegistered = "face.registered"
	SubjectFaceRemoved    = "face.removed"
	SubjectFaceIdentified = "face.identified"
	SubjectIndexRebuilt   = "face.index.rebuilt"
)

// ---------------------------------------------------------------------------
// Event payloads — published on the bus and delivered to the outbound
// webhook. EventID is a UUID so downstream consumers can deduplicate
// redeliveries.
// ---------------------------------------------------------------------------

type FaceRegistered struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	ImageHash  string    `json:"image_hash"`
	SizeBytes  int64     `json:"size_bytes"`
	Updated    bool      `json:"updated"` // true when re-registering an existing subject
	OccurredAt time.Time `json:"occurred_at"`
}

type FaceRemoved struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// FaceIdentified reports the outcome of one identification request.
// UserID is empty when Matched is false. Distance is the cosine distance
// of the nearest neighbor, or -1 against an empty gallery.
type FaceIdentified struct {
	EventID    string    `json:"event_id"`
	Matched    bool      `json:"matched"`
	UserID     string    `json:"user_id,omitempty"`
	Distance   float64   `json:"distance"`
	Model      string    `json:"model"`
	OccurredAt time.Time `json:"occurred_at"`
}

type IndexRebuilt struct {
	EventID    string    `json:"event_id"`
	Model      string    `json:"model"`
	Entries    int       `json:"entries"`
	OccurredAt time.Time `json:"occurred_at"`
}
