// Package refreshtokens declares the refresh-token ledger contract and its
// PostgreSQL implementation.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// MaxCreateAttempts bounds retries after a token uniqueness conflict.
const MaxCreateAttempts = 3

// Repository defines operations for issuing, retrieving, and revoking refresh tokens.
type Repository interface {
	// Create stores a new opaque token for userID, valid until expiresAt.
	Create(ctx context.Context, userID string, expiresAt time.Time, deviceInfo string) (*models.RefreshToken, error)

	// Find looks up a refresh token by its opaque token string.
	// Implementations return common.ErrTokenNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Resolve is Find for the refresh path: an expired token is revoked
	// before its state is returned, under the same transaction.
	Resolve(ctx context.Context, token string, now time.Time) (*models.RefreshToken, error)

	// Revoke marks a token revoked. Revoking a revoked or unknown token is
	// not an error.
	Revoke(ctx context.Context, token string) error

	// RevokeAllForUser revokes every live token of userID and reports how
	// many were revoked by this call.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

// IsUsable reports whether rt can be exchanged at now.
func IsUsable(rt *models.RefreshToken, now time.Time) bool {
	return rt != nil && rt.IsUsable(now)
}
