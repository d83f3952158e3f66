package verificationtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/timex"
	"github.com/google/uuid"
)

// ErrTokenCollision is returned when every generated token clashed.
var ErrTokenCollision = errors.New("could not generate a unique verification token")

type PostgresRepository struct {
	db       dbx.DBTX
	clock    timex.Clock
	newToken func() (string, error)
}

func NewPostgresRepository(db dbx.DBTX, clock timex.Clock) *PostgresRepository {
	return &PostgresRepository{
		db:       db,
		clock:    clock,
		newToken: common.NewOpaqueToken,
	}
}

// Create stores an unused token. Token clashes insert nothing and are
// retried, which leaves an enclosing transaction usable.
func (r *PostgresRepository) Create(ctx context.Context, userID string, expiresAt time.Time) (*models.VerificationToken, error) {
	query := `
		INSERT INTO verification_tokens (id, user_id, token, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, false, $5)
		ON CONFLICT (token) DO NOTHING
	`

	for attempt := 0; attempt < MaxCreateAttempts; attempt++ {
		token, err := r.newToken()
		if err != nil {
			return nil, fmt.Errorf("error generating verification token: %w", err)
		}

		vt := &models.VerificationToken{
			ID:        uuid.NewString(),
			UserID:    userID,
			Token:     token,
			ExpiresAt: expiresAt,
			CreatedAt: r.clock.Now(),
		}

		res, err := r.db.ExecContext(ctx, query, vt.ID, vt.UserID, vt.Token, vt.ExpiresAt, vt.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error performing sql request: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("error performing sql request: %w", err)
		}
		if n == 1 {
			return vt, nil
		}
	}

	return nil, ErrTokenCollision
}

// TryConsume flips used with a single conditional UPDATE, so the row lock
// taken by the database decides the winner among concurrent callers.
// When nothing was updated the row is read back only to classify the failure.
func (r *PostgresRepository) TryConsume(ctx context.Context, token string, now time.Time) (models.ConsumeOutcome, string, error) {
	consume := `
		UPDATE verification_tokens SET used = true
		WHERE token = $1 AND used = false AND expires_at > $2
		RETURNING user_id
	`

	var userID string
	err := r.db.QueryRowContext(ctx, consume, token, now).Scan(&userID)
	if err == nil {
		return models.Consumed, userID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.NotFound, "", fmt.Errorf("db error: %w", err)
	}

	classify := `
		SELECT id, user_id, token, expires_at, used, created_at
		FROM verification_tokens
		WHERE token = $1
	`

	vt := models.VerificationToken{}
	err = r.db.QueryRowContext(ctx, classify, token).
		Scan(&vt.ID, &vt.UserID, &vt.Token, &vt.ExpiresAt, &vt.Used, &vt.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NotFound, "", nil
		}
		return models.NotFound, "", fmt.Errorf("db error: %w", err)
	}

	outcome := vt.Outcome(now)
	if outcome == models.Consumed {
		// lost a race with a concurrent consumer between the two statements
		outcome = models.AlreadyUsed
	}
	return outcome, "", nil
}

func (r *PostgresRepository) InvalidateAllForUser(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE verification_tokens SET used = true
		WHERE user_id = $1 AND used = false
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
