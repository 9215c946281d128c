// Package model defines domain entities used by services and repositories.
package model

import (
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"
)

// DefaultMIME is assumed when an upload does not declare a type.
const DefaultMIME = "video/mp4"

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	PwdHash   []byte    `json:"pwd_hash"` // bcrypt
	CreatedAt time.Time `json:"created_at"`
}

// ChunkRecord describes one received chunk of an upload session.
type ChunkRecord struct {
	Index  int    `json:"index"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// UploadSession is an upload in progress. At most one ChunkRecord exists per index.
type UploadSession struct {
	ID        string        `json:"upload_id"`
	Owner     string        `json:"owner"`
	Title     string        `json:"title"`
	MIME      string        `json:"mime"`
	TotalSize int64         `json:"total_size"`
	CreatedAt time.Time     `json:"created"`
	Received  int64         `json:"received"`
	Chunks    []ChunkRecord `json:"chunks"`
	Committed bool          `json:"committed"`
}

// Chunk returns the record for index, if any.
func (s *UploadSession) Chunk(index int) (ChunkRecord, bool) {
	for _, c := range s.Chunks {
		if c.Index == index {
			return c, true
		}
	}
	return ChunkRecord{}, false
}

// PutChunk records a chunk once per index and recomputes Received from all records.
// It reports whether a new record was added.
func (s *UploadSession) PutChunk(rec ChunkRecord) bool {
	_, exists := s.Chunk(rec.Index)
	if !exists {
		s.Chunks = append(s.Chunks, rec)
	}
	var total int64
	for _, c := range s.Chunks {
		total += c.Size
	}
	s.Received = total
	return !exists
}

// SortedChunks returns a copy of the chunk records ordered by index.
func (s *UploadSession) SortedChunks() []ChunkRecord {
	out := append([]ChunkRecord(nil), s.Chunks...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// MissingIndices lists the indices absent from [0, max recorded index].
func (s *UploadSession) MissingIndices() []int {
	missing := []int{}
	next := 0
	for _, c := range s.SortedChunks() {
		for ; next < c.Index; next++ {
			missing = append(missing, next)
		}
		next = c.Index + 1
	}
	return missing
}

// Video is a committed artifact registered in the catalog.
type Video struct {
	ID        string    `json:"video_id"`
	Title     string    `json:"title"`
	Owner     string    `json:"owner"`
	MIME      string    `json:"mime"`
	Size      int64     `json:"size"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created"`
}
