package blobstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/vsp-server/internal/crypto"
	"github.com/and161185/vsp-server/internal/errs"
	"github.com/and161185/vsp-server/internal/model"
)

func i64(v int64) *int64 { return &v }

func newStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	s, err := New(filepath.Join(root, "uploads"), filepath.Join(root, "videos"))
	require.NoError(t, err)
	return s
}

func prepareSession(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(s.uploadsDir, id), 0o755))
}

func TestChunkPath_ZeroPadded(t *testing.T) {
	s := newStore(t)
	require.Equal(t, "chunk_000007.part", filepath.Base(s.ChunkPath("u", 7)))
	require.Equal(t, "chunk_1234567.part", filepath.Base(s.ChunkPath("u", 1234567)))
}

func TestWriteChunk_LastWriteWins(t *testing.T) {
	s := newStore(t)
	prepareSession(t, s, "u1")

	require.NoError(t, s.WriteChunk("u1", 0, []byte("old")))
	require.NoError(t, s.WriteChunk("u1", 0, []byte("new!")))
	b, err := os.ReadFile(s.ChunkPath("u1", 0))
	require.NoError(t, err)
	require.Equal(t, "new!", string(b))

	require.Error(t, s.WriteChunk("no-such-session", 0, []byte("x")))
}

func TestAssemble_OrdersBySliceAndHashes(t *testing.T) {
	s := newStore(t)
	prepareSession(t, s, "u1")
	require.NoError(t, s.WriteChunk("u1", 1, []byte("BBBBB")))
	require.NoError(t, s.WriteChunk("u1", 0, []byte("AAAAA")))

	chunks := []model.ChunkRecord{{Index: 0, Size: 5}, {Index: 1, Size: 5}}
	size, sum, err := s.Assemble("u1", "u1", chunks, "")
	require.NoError(t, err)
	require.Equal(t, int64(10), size)
	require.Equal(t, crypto.SHA256Hex([]byte("AAAAABBBBB")), sum)

	b, err := os.ReadFile(s.ArtifactPath("u1"))
	require.NoError(t, err)
	require.Equal(t, "AAAAABBBBB", string(b))
}

func TestAssemble_ChecksumMismatchLeavesNothing(t *testing.T) {
	s := newStore(t)
	prepareSession(t, s, "u1")
	require.NoError(t, s.WriteChunk("u1", 0, []byte("data")))

	_, _, err := s.Assemble("u1", "u1", []model.ChunkRecord{{Index: 0}}, "deadbeef")
	require.ErrorIs(t, err, errs.ErrChecksumMismatch)
	require.NoFileExists(t, s.ArtifactPath("u1"))

	entries, err := os.ReadDir(s.videosDir)
	require.NoError(t, err)
	require.Empty(t, entries, "temp file must be cleaned up")

	_, _, err = s.Assemble("u1", "u1", []model.ChunkRecord{{Index: 0}}, crypto.SHA256Hex([]byte("data")))
	require.NoError(t, err)
	require.FileExists(t, s.ArtifactPath("u1"))
}

func TestAssemble_MissingChunk(t *testing.T) {
	s := newStore(t)
	prepareSession(t, s, "u1")
	require.NoError(t, s.WriteChunk("u1", 0, []byte("a")))

	_, _, err := s.Assemble("u1", "u1", []model.ChunkRecord{{Index: 0}, {Index: 1}}, "")
	require.ErrorIs(t, err, errs.ErrMissingChunk)
	require.NoFileExists(t, s.ArtifactPath("u1"))
}

func TestReadRange(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.ArtifactPath("v"), []byte("AAAAABBBBB"), 0o644))

	data, rs, re, total, err := s.ReadRange("v", i64(0), i64(9))
	require.NoError(t, err)
	require.Equal(t, "AAAAABBBBB", string(data))
	require.Equal(t, []int64{0, 9, 10}, []int64{rs, re, total})

	data, rs, re, total, err = s.ReadRange("v", i64(3), nil)
	require.NoError(t, err)
	require.Equal(t, "AABBBBB", string(data))
	require.Equal(t, []int64{3, 9, 10}, []int64{rs, re, total})

	data, _, _, _, err = s.ReadRange("v", nil, nil)
	require.NoError(t, err)
	require.Len(t, data, 10)

	data, _, _, _, err = s.ReadRange("v", i64(4), i64(4))
	require.NoError(t, err)
	require.Equal(t, "A", string(data))

	_, _, _, _, err = s.ReadRange("v", i64(5), i64(4))
	require.ErrorIs(t, err, errs.ErrRangeNotSatisfiable)
	_, _, _, total, err = s.ReadRange("v", i64(0), i64(10))
	require.ErrorIs(t, err, errs.ErrRangeNotSatisfiable)
	require.Equal(t, int64(10), total)
	_, _, _, _, err = s.ReadRange("v", i64(10), nil)
	require.ErrorIs(t, err, errs.ErrRangeNotSatisfiable)

	_, _, _, _, err = s.ReadRange("missing", nil, nil)
	require.ErrorIs(t, err, errs.ErrVideoNotFound)
}

func TestReadRange_EmptyArtifact(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.ArtifactPath("empty"), nil, 0o644))

	data, _, _, total, err := s.ReadRange("empty", nil, nil)
	require.NoError(t, err)
	require.Empty(t, data)
	require.Zero(t, total)

	_, _, _, _, err = s.ReadRange("empty", i64(0), nil)
	require.ErrorIs(t, err, errs.ErrRangeNotSatisfiable)
}

func TestRemoveChunksAndArtifact(t *testing.T) {
	s := newStore(t)
	prepareSession(t, s, "u1")
	require.NoError(t, s.WriteChunk("u1", 0, []byte("a")))
	require.NoError(t, s.WriteChunk("u1", 1, []byte("b")))
	meta := filepath.Join(s.uploadsDir, "u1", "meta.json")
	require.NoError(t, os.WriteFile(meta, []byte("{}"), 0o644))

	require.NoError(t, s.RemoveChunks("u1"))
	require.NoFileExists(t, s.ChunkPath("u1", 0))
	require.NoFileExists(t, s.ChunkPath("u1", 1))
	require.FileExists(t, meta)
	require.NoError(t, s.RemoveChunks("ghost"))

	require.NoError(t, os.WriteFile(s.ArtifactPath("v"), []byte("x"), 0o644))
	require.NoError(t, s.RemoveArtifact("v"))
	require.NoFileExists(t, s.ArtifactPath("v"))
	require.NoError(t, s.RemoveArtifact("v"))
}
