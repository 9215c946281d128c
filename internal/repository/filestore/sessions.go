package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/and161185/vsp-server/internal/errs"
	"github.com/and161185/vsp-server/internal/model"
)

const metaFileName = "meta.json"

// SessionRepo stores one meta.json per session under <dir>/<id>/.
type SessionRepo struct{ dir string }

// NewSessionRepo constructs a session repository rooted at dir.
func NewSessionRepo(dir string) *SessionRepo { return &SessionRepo{dir: dir} }

func (r *SessionRepo) metaPath(id string) string {
	return filepath.Join(r.dir, id, metaFileName)
}

// Create makes the session directory and writes the initial record.
func (r *SessionRepo) Create(_ context.Context, s *model.UploadSession) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	// an existing id is never reused
	if err := os.Mkdir(filepath.Join(r.dir, s.ID), 0o755); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("session %s: %w", s.ID, errs.ErrAlreadyExists)
		}
		return err
	}
	return writeJSON(r.metaPath(s.ID), s)
}

// Get reads the session record.
func (r *SessionRepo) Get(_ context.Context, id string) (*model.UploadSession, error) {
	var s model.UploadSession
	found, err := readJSON(r.metaPath(id), &s)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.ErrSessionNotFound
	}
	return &s, nil
}

// Put rewrites the session record; the session must exist.
func (r *SessionRepo) Put(_ context.Context, s *model.UploadSession) error {
	if _, err := os.Stat(filepath.Join(r.dir, s.ID)); err != nil {
		if os.IsNotExist(err) {
			return errs.ErrSessionNotFound
		}
		return err
	}
	return writeJSON(r.metaPath(s.ID), s)
}
