// Package blobstore owns the bytes on disk: chunk files of upload sessions and
// the assembled video artifacts. Metadata lives in the repositories.
package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/and161185/vsp-server/internal/crypto"
	"github.com/and161185/vsp-server/internal/errs"
	"github.com/and161185/vsp-server/internal/model"
)

const (
	chunkFilenameFormat = "chunk_%06d.part"
	artifactExt         = ".video"
)

// Store lays files out as <uploads>/<session>/chunk_NNNNNN.part and <videos>/<id>.video.
type Store struct {
	uploadsDir string
	videosDir  string
}

// New constructs a store and creates its directories.
func New(uploadsDir, videosDir string) (*Store, error) {
	for _, d := range []string{uploadsDir, videosDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, err
		}
	}
	return &Store{uploadsDir: uploadsDir, videosDir: videosDir}, nil
}

// ChunkPath is derived from the session id and the zero-padded index.
func (s *Store) ChunkPath(sessionID string, index int) string {
	return filepath.Join(s.uploadsDir, sessionID, fmt.Sprintf(chunkFilenameFormat, index))
}

// ArtifactPath is the location of a committed video.
func (s *Store) ArtifactPath(videoID string) string {
	return filepath.Join(s.videosDir, videoID+artifactExt)
}

// WriteChunk stores data for (sessionID, index), replacing earlier bytes for
// that index. The file is swapped in by rename so readers never see a torn chunk.
func (s *Store) WriteChunk(sessionID string, index int, data []byte) error {
	final := s.ChunkPath(sessionID, index)
	tmp, err := os.CreateTemp(filepath.Dir(final), ".chunk-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), final)
}

// Assemble concatenates the chunk files of chunks, in slice order, into the
// artifact for videoID. When expectedSHA is set the digest of the written bytes
// must match or nothing is left behind. It returns the artifact size and digest.
func (s *Store) Assemble(sessionID, videoID string, chunks []model.ChunkRecord, expectedSHA string) (int64, string, error) {
	final := s.ArtifactPath(videoID)
	out, err := os.CreateTemp(s.videosDir, "."+videoID+".*.tmp")
	if err != nil {
		return 0, "", err
	}
	defer os.Remove(out.Name())

	h := sha256.New()
	w := io.MultiWriter(out, h)
	var size int64
	for _, c := range chunks {
		n, err := appendFile(w, s.ChunkPath(sessionID, c.Index))
		if err != nil {
			out.Close()
			if errors.Is(err, fs.ErrNotExist) {
				return 0, "", fmt.Errorf("chunk %d: %w", c.Index, errs.ErrMissingChunk)
			}
			return 0, "", err
		}
		size += n
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return 0, "", err
	}
	if err := out.Close(); err != nil {
		return 0, "", err
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if expectedSHA != "" && !crypto.EqualHex(sum, expectedSHA) {
		return 0, "", fmt.Errorf("artifact sha256 %s: %w", sum, errs.ErrChecksumMismatch)
	}
	if err := os.Rename(out.Name(), final); err != nil {
		return 0, "", err
	}
	return size, sum, nil
}

func appendFile(w io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}

// ReadRange returns the inclusive span [start, end] of the artifact together
// with the resolved bounds and total size. Nil bounds default to the whole file.
func (s *Store) ReadRange(videoID string, start, end *int64) ([]byte, int64, int64, int64, error) {
	f, err := os.Open(s.ArtifactPath(videoID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, 0, 0, errs.ErrVideoNotFound
		}
		return nil, 0, 0, 0, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, 0, 0, 0, err
	}
	total := st.Size()

	var rs int64
	re := total - 1
	if start != nil {
		rs = *start
	}
	if end != nil {
		re = *end
	}
	if start == nil && end == nil && total == 0 {
		return []byte{}, 0, 0, 0, nil
	}
	if rs < 0 || rs > re || re >= total {
		return nil, rs, re, total, errs.ErrRangeNotSatisfiable
	}

	buf := make([]byte, re-rs+1)
	if _, err := f.ReadAt(buf, rs); err != nil && !errors.Is(err, io.EOF) {
		return nil, 0, 0, 0, err
	}
	return buf, rs, re, total, nil
}

// RemoveArtifact deletes the artifact; a missing file is not an error.
func (s *Store) RemoveArtifact(videoID string) error {
	err := os.Remove(s.ArtifactPath(videoID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveChunks deletes the chunk files of a session and leaves its metadata.
func (s *Store) RemoveChunks(sessionID string) error {
	dir := filepath.Join(s.uploadsDir, sessionID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	var errList []error
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "chunk_") && strings.HasSuffix(e.Name(), ".part") {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				errList = append(errList, err)
			}
		}
	}
	return errors.Join(errList...)
}
