package service

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/vsp-server/internal/errs"
	"github.com/and161185/vsp-server/internal/model"
	"github.com/and161185/vsp-server/internal/repository"
)

// VideoService defines read and delete operations over committed videos.
type VideoService interface {
	// List returns the videos owned by owner in commit order.
	List(ctx context.Context, owner string) ([]model.Video, error)
	// Get returns the catalog entry of a video.
	Get(ctx context.Context, id string) (model.Video, error)
	// ReadRange returns an inclusive byte span; nil bounds default to the whole file.
	ReadRange(ctx context.Context, id string, start, end *int64) (data []byte, rangeStart, rangeEnd, total int64, err error)
	// Delete removes a video owned by owner together with its artifact.
	Delete(ctx context.Context, owner, id string) error
}

// VideoServiceImpl serves the catalog and artifacts.
type VideoServiceImpl struct {
	catalog repository.CatalogRepository
	blobs   Blobs
	log     *zap.Logger
}

// NewVideoService constructs VideoService.
func NewVideoService(catalog repository.CatalogRepository, blobs Blobs, log *zap.Logger) *VideoServiceImpl {
	return &VideoServiceImpl{catalog: catalog, blobs: blobs, log: log}
}

func validVideoID(id string) bool {
	_, err := uuid.FromString(id)
	return err == nil
}

// List filters the catalog by owner.
func (s *VideoServiceImpl) List(ctx context.Context, owner string) ([]model.Video, error) {
	if owner == "" {
		return nil, errs.ErrUnauthorized
	}
	all, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []model.Video{}
	for _, v := range all {
		if v.Owner == owner {
			out = append(out, v)
		}
	}
	return out, nil
}

// Get returns the catalog entry for id.
func (s *VideoServiceImpl) Get(ctx context.Context, id string) (model.Video, error) {
	if !validVideoID(id) {
		return model.Video{}, errs.ErrVideoNotFound
	}
	v, err := s.catalog.Get(ctx, id)
	if err != nil {
		return model.Video{}, err
	}
	return *v, nil
}

// ReadRange reads from the artifact at the path derived from id.
func (s *VideoServiceImpl) ReadRange(_ context.Context, id string, start, end *int64) ([]byte, int64, int64, int64, error) {
	if !validVideoID(id) {
		return nil, 0, 0, 0, errs.ErrVideoNotFound
	}
	return s.blobs.ReadRange(id, start, end)
}

// Delete drops the catalog entry first, then the artifact.
func (s *VideoServiceImpl) Delete(ctx context.Context, owner, id string) error {
	if owner == "" {
		return errs.ErrUnauthorized
	}
	if !validVideoID(id) {
		return errs.ErrVideoNotFound
	}
	v, err := s.catalog.Delete(ctx, id, owner)
	if err != nil {
		return err
	}
	if err := s.blobs.RemoveArtifact(v.ID); err != nil {
		// the entry is gone; an orphaned file is only wasted space
		s.log.Warn("artifact removal failed", zap.String("video_id", v.ID), zap.Error(err))
	}
	s.log.Info("video deleted", zap.String("video_id", v.ID), zap.String("owner", owner))
	return nil
}
