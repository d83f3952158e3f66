package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/google/uuid"
)

type UserRepository struct {
	s *Store
}

func (r *UserRepository) Create(ctx context.Context, email, passwordHash string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.usersByEmail[email]; ok {
		return nil, common.ErrDuplicateEmail
	}

	u := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    r.s.clock.Now(),
		Roles:        []models.Role{r.s.defaultRole},
	}
	r.s.users[u.ID] = u
	r.s.usersByEmail[email] = u.ID

	return copyUser(u), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.usersByEmail[email]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	return copyUser(r.s.users[id]), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (r *UserRepository) Enable(ctx context.Context, userID string) error {
	return r.update(userID, func(u models.User) models.User { return u.Enable() })
}

func (r *UserRepository) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	return r.update(userID, func(u models.User) models.User { return u.WithLastLogin(at) })
}

func (r *UserRepository) update(userID string, fn func(models.User) models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return common.ErrUserNotFound
	}
	r.s.users[userID] = fn(u)
	return nil
}
