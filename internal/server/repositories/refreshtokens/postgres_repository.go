package refreshtokens

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
var ErrTokenCollision = errors.New("could not generate a unique refresh token")

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db       dbx.DBTX
	clock    timex.Clock
	newToken func() (string, error)
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX, clock timex.Clock) *PostgresRepository {
	return &PostgresRepository{
		db:       db,
		clock:    clock,
		newToken: common.NewOpaqueToken,
	}
}

// Create inserts a new refresh token. A clash on the token column inserts
// nothing and is retried with fresh randomness up to MaxCreateAttempts times;
// it never raises an error, so Create is safe inside a caller's transaction.
func (r *PostgresRepository) Create(ctx context.Context, userID string, expiresAt time.Time, deviceInfo string) (*models.RefreshToken, error) {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at, revoked, device_info, created_at)
		VALUES ($1, $2, $3, $4, false, $5, $6)
		ON CONFLICT (token) DO NOTHING
	`

	for attempt := 0; attempt < MaxCreateAttempts; attempt++ {
		token, err := r.newToken()
		if err != nil {
			return nil, fmt.Errorf("error generating refresh token: %w", err)
		}

		rt := &models.RefreshToken{
			ID:         uuid.NewString(),
			UserID:     userID,
			Token:      token,
			ExpiresAt:  expiresAt,
			DeviceInfo: deviceInfo,
			CreatedAt:  r.clock.Now(),
		}

		res, err := r.db.ExecContext(ctx, query, rt.ID, rt.UserID, rt.Token, rt.ExpiresAt, rt.DeviceInfo, rt.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error performing sql request: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("error performing sql request: %w", err)
		}
		if n == 1 {
			return rt, nil
		}
	}

	return nil, ErrTokenCollision
}

const selectColumns = `id, user_id, token, expires_at, revoked, device_info, created_at`

// Find returns the refresh token row for the given token string.
// If not found, it returns common.ErrTokenNotFound.
func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE token = $1
	`
	return scanOne(r.db.QueryRowContext(ctx, query, token))
}

// Resolve locks the row, revokes it when expired at now and returns the
// resulting state. Concurrent callers serialize on the row lock, so they all
// observe the same outcome for an expired token.
func (r *PostgresRepository) Resolve(ctx context.Context, token string, now time.Time) (*models.RefreshToken, error) {
	lock := `
		SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE token = $1
		FOR UPDATE
	`
	revoke := `
		UPDATE refresh_tokens SET revoked = true
		WHERE id = $1
	`

	var rt *models.RefreshToken
	err := dbx.InTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		found, err := scanOne(tx.QueryRowContext(ctx, lock, token))
		if err != nil {
			return err
		}
		if !found.Revoked && found.IsExpired(now) {
			if _, err := tx.ExecContext(ctx, revoke, found.ID); err != nil {
				return fmt.Errorf("db error: %w", err)
			}
			revoked := found.Revoke()
			found = &revoked
		}
		rt = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// Revoke flips revoked for the given token string; unknown tokens are ignored.
func (r *PostgresRepository) Revoke(ctx context.Context, token string) error {
	query := `
		UPDATE refresh_tokens SET revoked = true
		WHERE token = $1 AND revoked = false
	`
	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every live token owned by userID.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE refresh_tokens SET revoked = true
		WHERE user_id = $1 AND revoked = false
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

func scanOne(row *sql.Row) (*models.RefreshToken, error) {
	rt := &models.RefreshToken{}
	err := row.Scan(&rt.ID, &rt.UserID, &rt.Token, &rt.ExpiresAt, &rt.Revoked, &rt.DeviceInfo, &rt.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrTokenNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rt, nil
}
