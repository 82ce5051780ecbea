// Package gallery is the filesystem face store. Each enrolled subject
// owns one directory under the gallery root holding a single image file;
// a compressed representations index caches the embedding of every
// enrolled image so identification does not re-embed the whole gallery
// on every request.
package gallery

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/blake3"
)

const (
	// imageFileName is the stored image name inside a subject directory.
	// Uploads are stored byte-for-byte under this name regardless of
	// their actual format; decoding sniffs content, not extension.
	imageFileName = "face.jpg"

	indexFileName = "representations.cbor.zst"
)

var (
	ErrInvalidUserID = errors.New("gallery: invalid user id")
	ErrNotFound      = errors.New("gallery: subject not found")
)

// userIDPattern keeps subject IDs safe to use as directory names.
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Store is a filesystem-backed face gallery rooted at a single directory.
// All mutating operations and index refreshes serialize on one mutex:
// the gallery is small and correctness of the index file matters more
// than write throughput.
type Store struct {
	root string
	mu   sync.Mutex
}

// SubjectInfo describes one enrolled subject.
type SubjectInfo struct {
	UserID       string    `json:"user_id"`
	ImageHash    string    `json:"image_hash"`
	SizeBytes    int64     `json:"size_bytes"`
	RegisteredAt time.Time `json:"registered_at"`
}

func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("gallery: create root: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Root() string { return s.root }

// ValidateUserID reports whether id is acceptable as a subject ID.
// "." and ".." pass the character pattern but are path components.
func ValidateUserID(id string) error {
	if id == "." || id == ".." || !userIDPattern.MatchString(id) {
		return ErrInvalidUserID
	}
	return nil
}

// Put enrolls or updates a subject. The image bytes are written verbatim;
// the representations index is invalidated so the next identification
// re-embeds against the fresh gallery state.
func (s *Store) Put(userID string, data []byte) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("gallery: create subject dir: %w", err)
	}

	// Write-then-rename so a concurrent identification never reads a
	// half-written image.
	tmp := filepath.Join(dir, ".face.jpg.tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("gallery: write image: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, imageFileName)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("gallery: place image: %w", err)
	}

	return s.invalidateIndexLocked()
}

// Remove unenrolls a subject and invalidates the index.
func (s *Store) Remove(userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, userID)
	if _, err := os.Stat(filepath.Join(dir, imageFileName)); err != nil {
		return ErrNotFound
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("gallery: remove subject: %w", err)
	}
	return s.invalidateIndexLocked()
}

// Get returns metadata for one subject.
func (s *Store) Get(userID string) (SubjectInfo, error) {
	if err := ValidateUserID(userID); err != nil {
		return SubjectInfo{}, err
	}
	return s.subjectInfo(userID)
}

// ReadImage returns the stored image bytes for a subject.
func (s *Store) ReadImage(userID string) ([]byte, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, userID, imageFileName))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

// List returns every enrolled subject, sorted by user ID.
func (s *Store) List() ([]SubjectInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("gallery: read root: %w", err)
	}

	var out []SubjectInfo
	for _, e := range entries {
		if !e.IsDir() || ValidateUserID(e.Name()) != nil {
			continue
		}
		info, err := s.subjectInfo(e.Name())
		if err != nil {
			// A directory without an image (interrupted enrollment) is
			// not an enrolled subject.
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Count returns the number of enrolled subjects.
func (s *Store) Count() (int, error) {
	list, err := s.List()
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

func (s *Store) subjectInfo(userID string) (SubjectInfo, error) {
	path := filepath.Join(s.root, userID, imageFileName)
	st, err := os.Stat(path)
	if os.IsNotExist(err) {
		return SubjectInfo{}, ErrNotFound
	}
	if err != nil {
		return SubjectInfo{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return SubjectInfo{}, err
	}
	sum := blake3.Sum256(data)
	return SubjectInfo{
		UserID:       userID,
		ImageHash:    hex.EncodeToString(sum[:]),
		SizeBytes:    st.Size(),
		RegisteredAt: st.ModTime().UTC(),
	}, nil
}

func (s *Store) indexPath() string {
	return filepath.Join(s.root, indexFileName)
}

func (s *Store) invalidateIndexLocked() error {
	err := os.Remove(s.indexPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("gallery: invalidate index: %w", err)
	}
	return nil
}

// InvalidateIndex deletes the representations index file if present.
func (s *Store) InvalidateIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidateIndexLocked()
}
