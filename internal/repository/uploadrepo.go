package repository

import (
	"context"

	"github.com/and161185/vsp-server/internal/model"
)

// SessionRepository persists upload session records. Each record is read and
// written whole; callers serialize writers per session id.
type SessionRepository interface {
	// Create stores a fresh session and prepares its storage area.
	Create(ctx context.Context, s *model.UploadSession) error
	// Get loads a session; errs.ErrSessionNotFound when absent.
	Get(ctx context.Context, id string) (*model.UploadSession, error)
	// Put replaces the stored record.
	Put(ctx context.Context, s *model.UploadSession) error
}

// CatalogRepository persists the ordered list of committed videos.
type CatalogRepository interface {
	// List returns all entries in commit order.
	List(ctx context.Context) ([]model.Video, error)
	// Get returns one entry; errs.ErrVideoNotFound when absent.
	Get(ctx context.Context, id string) (*model.Video, error)
	// Append adds an entry at the end.
	Append(ctx context.Context, v model.Video) error
	// Delete removes the entry if owned by owner and returns it.
	// errs.ErrVideoNotFound when absent, errs.ErrNotOwner on owner mismatch.
	Delete(ctx context.Context, id, owner string) (model.Video, error)
}
