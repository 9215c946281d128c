package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/vsp-server/internal/crypto"
	"github.com/and161185/vsp-server/internal/errs"
	"github.com/and161185/vsp-server/internal/model"
	"github.com/and161185/vsp-server/internal/repository"
)

// Blobs is the byte storage used by the upload and video services.
type Blobs interface {
	WriteChunk(sessionID string, index int, data []byte) error
	Assemble(sessionID, videoID string, chunks []model.ChunkRecord, expectedSHA string) (int64, string, error)
	ArtifactPath(videoID string) string
	ReadRange(videoID string, start, end *int64) ([]byte, int64, int64, int64, error)
	RemoveArtifact(videoID string) error
	RemoveChunks(sessionID string) error
}

// UploadService drives the create / append / commit lifecycle of an upload session.
type UploadService interface {
	// CreateSession allocates a new session owned by owner.
	CreateSession(ctx context.Context, owner, title string, totalSize int64, mime string) (model.UploadSession, error)
	// AppendChunk stores one indexed chunk; repeating an index replaces the bytes only.
	AppendChunk(ctx context.Context, owner, sessionID string, index int, data []byte, expectedSHA string) (model.UploadSession, error)
	// Commit assembles the chunks in index order and registers the video.
	Commit(ctx context.Context, owner, sessionID, expectedSHA string) (model.Video, error)
	// Status returns the session record.
	Status(ctx context.Context, owner, sessionID string) (model.UploadSession, error)
}

// UploadServiceImpl serializes all mutations of one session behind a per-id lock.
type UploadServiceImpl struct {
	sessions repository.SessionRepository
	catalog  repository.CatalogRepository
	blobs    Blobs
	log      *zap.Logger
	locks    *keyLock
	now      func() time.Time
}

// NewUploadService constructs UploadService.
func NewUploadService(sessions repository.SessionRepository, catalog repository.CatalogRepository, blobs Blobs, log *zap.Logger) *UploadServiceImpl {
	return &UploadServiceImpl{
		sessions: sessions,
		catalog:  catalog,
		blobs:    blobs,
		log:      log,
		locks:    newKeyLock(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession validates input and persists a fresh session.
func (s *UploadServiceImpl) CreateSession(ctx context.Context, owner, title string, totalSize int64, mime string) (model.UploadSession, error) {
	if owner == "" {
		return model.UploadSession{}, errs.ErrUnauthorized
	}
	if totalSize < 0 {
		return model.UploadSession{}, fmt.Errorf("%w: negative total_size", errs.ErrValidation)
	}
	if strings.TrimSpace(title) == "" {
		title = "untitled"
	}
	if mime == "" {
		mime = model.DefaultMIME
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.UploadSession{}, err
	}
	sess := model.UploadSession{
		ID:        id.String(),
		Owner:     owner,
		Title:     title,
		MIME:      mime,
		TotalSize: totalSize,
		CreatedAt: s.now(),
		Chunks:    []model.ChunkRecord{},
	}
	if err := s.sessions.Create(ctx, &sess); err != nil {
		return model.UploadSession{}, err
	}
	s.log.Info("upload session created",
		zap.String("upload_id", sess.ID),
		zap.String("owner", owner),
		zap.Int64("total_size", totalSize),
	)
	return sess, nil
}

// load fetches a session and checks ownership. Ids that are not UUIDs can never
// name a session and are rejected before touching storage.
func (s *UploadServiceImpl) load(ctx context.Context, owner, sessionID string) (*model.UploadSession, error) {
	if _, err := uuid.FromString(sessionID); err != nil {
		return nil, errs.ErrSessionNotFound
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Owner != owner {
		return nil, errs.ErrNotOwner
	}
	return sess, nil
}

// AppendChunk writes the chunk bytes and records the chunk once per index.
// Received is recomputed from the records, so client retries are safe.
func (s *UploadServiceImpl) AppendChunk(ctx context.Context, owner, sessionID string, index int, data []byte, expectedSHA string) (model.UploadSession, error) {
	if index < 0 {
		return model.UploadSession{}, fmt.Errorf("%w: negative chunk index", errs.ErrValidation)
	}
	sum := crypto.SHA256Hex(data)
	if expectedSHA != "" && !crypto.EqualHex(sum, expectedSHA) {
		return model.UploadSession{}, fmt.Errorf("chunk %d: %w", index, errs.ErrChecksumMismatch)
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.load(ctx, owner, sessionID)
	if err != nil {
		return model.UploadSession{}, err
	}
	if sess.Committed {
		return model.UploadSession{}, errs.ErrSessionCommitted
	}
	if err := s.blobs.WriteChunk(sessionID, index, data); err != nil {
		return model.UploadSession{}, fmt.Errorf("write chunk %d: %w", index, err)
	}
	sess.PutChunk(model.ChunkRecord{Index: index, Size: int64(len(data)), SHA256: sum})
	if err := s.sessions.Put(ctx, sess); err != nil {
		return model.UploadSession{}, err
	}
	return *sess, nil
}

// Commit concatenates chunks sorted by index into the artifact, verifies the
// optional whole-file digest, and appends the video to the catalog.
// Indices must be contiguous from zero and, when a total size was declared,
// the artifact must match it.
func (s *UploadServiceImpl) Commit(ctx context.Context, owner, sessionID, expectedSHA string) (model.Video, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.load(ctx, owner, sessionID)
	if err != nil {
		return model.Video{}, err
	}
	if sess.Committed {
		return model.Video{}, errs.ErrSessionCommitted
	}
	if missing := sess.MissingIndices(); len(missing) > 0 {
		return model.Video{}, fmt.Errorf("%w: missing chunk indices %v", errs.ErrIncompleteUpload, missing)
	}
	if sess.TotalSize > 0 && sess.Received != sess.TotalSize {
		return model.Video{}, fmt.Errorf("%w: received %d of %d bytes", errs.ErrIncompleteUpload, sess.Received, sess.TotalSize)
	}

	size, sum, err := s.blobs.Assemble(sess.ID, sess.ID, sess.SortedChunks(), expectedSHA)
	if err != nil {
		return model.Video{}, err
	}
	if sess.TotalSize > 0 && size != sess.TotalSize {
		// chunk files changed under the records
		_ = s.blobs.RemoveArtifact(sess.ID)
		return model.Video{}, fmt.Errorf("%w: assembled %d of %d bytes", errs.ErrIncompleteUpload, size, sess.TotalSize)
	}

	video := model.Video{
		ID:        sess.ID,
		Title:     sess.Title,
		Owner:     sess.Owner,
		MIME:      sess.MIME,
		Size:      size,
		Path:      s.blobs.ArtifactPath(sess.ID),
		CreatedAt: s.now(),
	}
	if err := s.catalog.Append(ctx, video); err != nil {
		if !errors.Is(err, errs.ErrAlreadyExists) {
			_ = s.blobs.RemoveArtifact(sess.ID)
			return model.Video{}, err
		}
		// An earlier commit registered the video but failed before marking the
		// session. The entry points at this artifact, so keep it and finish.
		existing, gerr := s.catalog.Get(ctx, sess.ID)
		if gerr != nil {
			return model.Video{}, fmt.Errorf("commit %s: %w", sess.ID, gerr)
		}
		if existing.Owner != sess.Owner {
			return model.Video{}, errs.ErrNotOwner
		}
		video = *existing
	}

	sess.Committed = true
	if err := s.sessions.Put(ctx, sess); err != nil {
		return model.Video{}, err
	}
	if err := s.blobs.RemoveChunks(sess.ID); err != nil {
		s.log.Warn("chunk cleanup failed", zap.String("upload_id", sess.ID), zap.Error(err))
	}
	s.log.Info("upload committed",
		zap.String("video_id", video.ID),
		zap.Int64("size", size),
		zap.String("sha256", sum),
	)
	return video, nil
}

// Status returns the session for its owner.
func (s *UploadServiceImpl) Status(ctx context.Context, owner, sessionID string) (model.UploadSession, error) {
	sess, err := s.load(ctx, owner, sessionID)
	if err != nil {
		return model.UploadSession{}, err
	}
	return *sess, nil
}
