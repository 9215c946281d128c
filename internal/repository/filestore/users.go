package filestore

import (
	"context"
	"sync"

	"github.com/and161185/vsp-server/internal/errs"
	"github.com/and161185/vsp-server/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepo keeps accounts in one JSON object keyed by username.
// Used when no database DSN is configured.
type UserRepo struct {
	path string
	mu   sync.Mutex
}

// NewUserRepo constructs a user repository stored at path.
func NewUserRepo(path string) *UserRepo { return &UserRepo{path: path} }

func (r *UserRepo) load() (map[string]model.User, error) {
	users := map[string]model.User{}
	if _, err := readJSON(r.path, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Create inserts a new user.
func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	users, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := users[u.Username]; ok {
		return errs.ErrAlreadyExists
	}
	users[u.Username] = *u
	return writeJSON(r.path, users)
}

// GetByID loads a user by ID.
func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, errs.ErrNotFound
}

// GetByUsername loads a user by username.
func (r *UserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users, err := r.load()
	if err != nil {
		return nil, err
	}
	u, ok := users[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}
