package gallery

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/arunangsur/modern-face-api/internal/embedding"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding: the same index state always produces identical bytes, so
// rebuilds of an unchanged gallery are byte-stable.
var encMode cbor.EncMode

// decMode accepts standard CBOR; unknown fields are ignored for forward
// compatibility.
var decMode cbor.DecMode

// zstdEncoder and zstdDecoder are reused across calls to avoid repeated
// initialization overhead; both are safe for concurrent use via
// EncodeAll/DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("gallery: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("gallery: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("gallery: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("gallery: zstd decoder initialization failed: " + err.Error())
	}
}

// IndexEntry caches the embedding of one enrolled image. ImageHash is
// the hex BLAKE3 digest of the image bytes the vector was computed from;
// a mismatch against the current file marks the entry stale.
type IndexEntry struct {
	UserID    string           `cbor:"user_id"`
	ImageHash string           `cbor:"image_hash"`
	Vector    embedding.Vector `cbor:"vector"`
}

// Index is the cached representation of the whole gallery under one
// embedding model.
type Index struct {
	Model   string       `cbor:"model"`
	BuiltAt time.Time    `cbor:"built_at"`
	Entries []IndexEntry `cbor:"entries"`
}

// Search returns the entry nearest to query by cosine distance, or nil
// for an empty index.
func (idx *Index) Search(query embedding.Vector) (*IndexEntry, float64) {
	var best *IndexEntry
	bestDist := 0.0
	for i := range idx.Entries {
		d := embedding.Cosine(query, idx.Entries[i].Vector)
		if best == nil || d < bestDist {
			best = &idx.Entries[i]
			bestDist = d
		}
	}
	return best, bestDist
}

// EmbedFunc computes a vector from raw image bytes.
type EmbedFunc func(data []byte) (embedding.Vector, error)

// RefreshIndex returns an index that is consistent with the current
// gallery contents under the given model:
//
//   - a cached entry whose image hash still matches is reused as-is,
//   - new or changed images are re-embedded,
//   - entries for vanished subjects are dropped,
//   - an index built by a different model is discarded wholesale.
//
// The refreshed index is persisted unless nothing changed; the returned
// bool reports whether a rebuild happened. Subjects whose stored image
// no longer embeds (e.g. a corrupt file) are skipped with a warning
// rather than failing the whole refresh.
func (s *Store) RefreshIndex(model string, embed EmbedFunc) (*Index, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached := s.loadIndexLocked()
	if cached != nil && cached.Model != model {
		slog.Info("discarding representations index built by another model",
			"index_model", cached.Model,
			"current_model", model,
		)
		cached = nil
	}

	byUser := map[string]IndexEntry{}
	if cached != nil {
		for _, e := range cached.Entries {
			byUser[e.UserID] = e
		}
	}

	subjects, err := s.List()
	if err != nil {
		return nil, false, err
	}

	idx := &Index{Model: model, BuiltAt: time.Now().UTC()}
	changed := cached == nil || len(subjects) != len(cached.Entries)

	for _, sub := range subjects {
		if e, ok := byUser[sub.UserID]; ok && e.ImageHash == sub.ImageHash {
			idx.Entries = append(idx.Entries, e)
			continue
		}

		data, err := os.ReadFile(s.imagePath(sub.UserID))
		if err != nil {
			slog.Warn("skipping unreadable gallery image", "user_id", sub.UserID, "error", err)
			changed = true
			continue
		}
		vec, err := embed(data)
		if err != nil {
			slog.Warn("skipping unembeddable gallery image", "user_id", sub.UserID, "error", err)
			changed = true
			continue
		}
		sum := blake3.Sum256(data)
		idx.Entries = append(idx.Entries, IndexEntry{
			UserID:    sub.UserID,
			ImageHash: hex.EncodeToString(sum[:]),
			Vector:    vec,
		})
		changed = true
	}

	if changed {
		if err := s.saveIndexLocked(idx); err != nil {
			return nil, false, err
		}
		slog.Info("representations index rebuilt",
			"entries", len(idx.Entries),
			"model", model,
		)
	} else {
		// Keep the cached build timestamp when serving an unchanged index.
		idx.BuiltAt = cached.BuiltAt
	}
	return idx, changed, nil
}

// IndexInfo reports whether an index file exists and when it was built.
// Used by the stats endpoint; never triggers a rebuild.
func (s *Store) IndexInfo() (built bool, model string, builtAt time.Time, entries int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.loadIndexLocked()
	if idx == nil {
		return false, "", time.Time{}, 0
	}
	return true, idx.Model, idx.BuiltAt, len(idx.Entries)
}

func (s *Store) imagePath(userID string) string {
	return filepath.Join(s.root, userID, imageFileName)
}

// loadIndexLocked reads the index file. A missing file returns nil; a
// corrupt file is deleted and also returns nil, mirroring how the
// service treats the index as a disposable cache.
func (s *Store) loadIndexLocked() *Index {
	raw, err := os.ReadFile(s.indexPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		slog.Warn("failed to read representations index", "error", err)
		return nil
	}

	plain, err := zstdDecoder.DecodeAll(raw, nil)
	if err != nil {
		slog.Warn("corrupt representations index, discarding", "error", err)
		os.Remove(s.indexPath())
		return nil
	}
	var idx Index
	if err := decMode.Unmarshal(plain, &idx); err != nil {
		slog.Warn("undecodable representations index, discarding", "error", err)
		os.Remove(s.indexPath())
		return nil
	}
	return &idx
}

func (s *Store) saveIndexLocked(idx *Index) error {
	plain, err := encMode.Marshal(idx)
	if err != nil {
		return fmt.Errorf("gallery: encode index: %w", err)
	}
	raw := zstdEncoder.EncodeAll(plain, nil)

	tmp := s.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("gallery: write index: %w", err)
	}
	if err := os.Rename(tmp, s.indexPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("gallery: place index: %w", err)
	}
	return nil
}
