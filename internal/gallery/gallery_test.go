package gallery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestNew_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "face_db")
	s, err := New(root)
	require.NoError(t, err)

	st, err := os.Stat(s.Root())
	require.NoError(t, err)
	assert.True(t, st.IsDir())
}

func TestValidateUserID(t *testing.T) {
	valid := []string{"STU2025101", "alice", "a", "user_1", "x.y-z"}
	for _, id := range valid {
		assert.NoError(t, ValidateUserID(id), "id %q should be valid", id)
	}

	invalid := []string{"", ".", "..", "a/b", "../etc", "a b", "ü", string(make([]byte, 65))}
	for _, id := range invalid {
		assert.ErrorIs(t, ValidateUserID(id), ErrInvalidUserID, "id %q should be invalid", id)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Put("alice", []byte("image-bytes")))

	info, err := s.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", info.UserID)
	assert.Equal(t, int64(len("image-bytes")), info.SizeBytes)
	assert.Len(t, info.ImageHash, 64)

	data, err := s.ReadImage("alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)
}

func TestPut_OverwriteUpdates(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Put("alice", []byte("v1")))
	first, err := s.Get("alice")
	require.NoError(t, err)

	require.NoError(t, s.Put("alice", []byte("v2-longer")))
	second, err := s.Get("alice")
	require.NoError(t, err)

	assert.NotEqual(t, first.ImageHash, second.ImageHash)
	assert.Equal(t, int64(len("v2-longer")), second.SizeBytes)

	// Still exactly one enrolled subject.
	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPut_RejectsTraversal(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.Put("../escape", []byte("x")), ErrInvalidUserID)
	assert.ErrorIs(t, s.Put("..", []byte("x")), ErrInvalidUserID)
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Put("alice", []byte("x")))
	require.NoError(t, s.Remove("alice"))

	_, err := s.Get("alice")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Remove("alice"), ErrNotFound)
}

func TestList_SortedAndFiltered(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Put("carol", []byte("c")))
	require.NoError(t, s.Put("alice", []byte("a")))
	require.NoError(t, s.Put("bob", []byte("b")))

	// An empty subject directory (interrupted enrollment) is ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "ghost"), 0o755))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "alice", list[0].UserID)
	assert.Equal(t, "bob", list[1].UserID)
	assert.Equal(t, "carol", list[2].UserID)
}

func TestGet_UnknownSubject(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ReadImage("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
