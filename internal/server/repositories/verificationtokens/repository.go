// Package verificationtokens declares the single-use verification token
// ledger and its PostgreSQL implementation.
package verificationtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// MaxCreateAttempts bounds retries after a token uniqueness conflict.
const MaxCreateAttempts = 3

// Repository stores verification tokens and consumes them at most once.
type Repository interface {
	// Create stores a fresh unused token for userID.
	Create(ctx context.Context, userID string, expiresAt time.Time) (*models.VerificationToken, error)

	// TryConsume atomically marks token used when it is unused and not
	// expired at now. Of any number of concurrent callers for the same
	// token at most one observes models.Consumed; the user id is only
	// meaningful for that outcome.
	TryConsume(ctx context.Context, token string, now time.Time) (models.ConsumeOutcome, string, error)

	// InvalidateAllForUser marks every unused token of userID as used.
	InvalidateAllForUser(ctx context.Context, userID string) (int64, error)
}
