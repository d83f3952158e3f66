// Package users declares the user directory contract and its PostgreSQL
// implementation.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// Repository is the user directory consumed by the auth service.
type Repository interface {
	// Create stores a disabled user holding the default role.
	// A taken email yields common.ErrDuplicateEmail.
	Create(ctx context.Context, email, passwordHash string) (*models.User, error)

	// FindByEmail and FindByID return common.ErrUserNotFound when absent.
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)

	// Enable marks the user verified. Enabling an enabled user is a no-op.
	Enable(ctx context.Context, userID string) error

	RecordLogin(ctx context.Context, userID string, at time.Time) error
}
