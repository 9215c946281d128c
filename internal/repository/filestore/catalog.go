package filestore

import (
	"context"
	"sync"

	"github.com/and161185/vsp-server/internal/errs"
	"github.com/and161185/vsp-server/internal/model"
)

// CatalogRepo keeps the video catalog in a single JSON array file.
// Mutations are serialized by mu.
type CatalogRepo struct {
	path string
	mu   sync.Mutex
}

// NewCatalogRepo constructs a catalog stored at path.
func NewCatalogRepo(path string) *CatalogRepo { return &CatalogRepo{path: path} }

func (r *CatalogRepo) load() ([]model.Video, error) {
	var vids []model.Video
	if _, err := readJSON(r.path, &vids); err != nil {
		return nil, err
	}
	if vids == nil {
		vids = []model.Video{}
	}
	return vids, nil
}

// List returns all videos in commit order.
func (r *CatalogRepo) List(_ context.Context) ([]model.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Get returns one video by id.
func (r *CatalogRepo) Get(_ context.Context, id string) (*model.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vids, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range vids {
		if vids[i].ID == id {
			v := vids[i]
			return &v, nil
		}
	}
	return nil, errs.ErrVideoNotFound
}

// Append adds v to the end of the catalog.
func (r *CatalogRepo) Append(_ context.Context, v model.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	vids, err := r.load()
	if err != nil {
		return err
	}
	for _, e := range vids {
		if e.ID == v.ID {
			return errs.ErrAlreadyExists
		}
	}
	return writeJSON(r.path, append(vids, v))
}

// Delete removes the entry for id when owned by owner.
func (r *CatalogRepo) Delete(_ context.Context, id, owner string) (model.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vids, err := r.load()
	if err != nil {
		return model.Video{}, err
	}
	for i, v := range vids {
		if v.ID != id {
			continue
		}
		if v.Owner != owner {
			return model.Video{}, errs.ErrNotOwner
		}
		rest := append(vids[:i:i], vids[i+1:]...)
		if err := writeJSON(r.path, rest); err != nil {
			return model.Video{}, err
		}
		return v, nil
	}
	return model.Video{}, errs.ErrVideoNotFound
}
