package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/google/uuid"
)

const maxCreateAttempts = 3

var errTokenCollision = errors.New("could not generate a unique token")

// freshToken returns a token string not present in taken. Caller holds s.mu.
func (s *Store) freshToken(taken func(string) bool) (string, error) {
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return "", fmt.Errorf("error generating token: %w", err)
		}
		if !taken(token) {
			return token, nil
		}
	}
	return "", errTokenCollision
}

type RefreshTokenRepository struct {
	s *Store
}

func (r *RefreshTokenRepository) Create(ctx context.Context, userID string, expiresAt time.Time, deviceInfo string) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	token, err := r.s.freshToken(func(t string) bool { _, ok := r.s.refresh[t]; return ok })
	if err != nil {
		return nil, err
	}

	rt := models.RefreshToken{
		ID:         uuid.NewString(),
		UserID:     userID,
		Token:      token,
		ExpiresAt:  expiresAt,
		DeviceInfo: deviceInfo,
		CreatedAt:  r.s.clock.Now(),
	}
	r.s.refresh[token] = rt
	return &rt, nil
}

func (r *RefreshTokenRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rt, ok := r.s.refresh[token]
	if !ok {
		return nil, common.ErrTokenNotFound
	}
	return &rt, nil
}

func (r *RefreshTokenRepository) Resolve(ctx context.Context, token string, now time.Time) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rt, ok := r.s.refresh[token]
	if !ok {
		return nil, common.ErrTokenNotFound
	}
	if !rt.Revoked && rt.IsExpired(now) {
		rt = rt.Revoke()
		r.s.refresh[token] = rt
	}
	return &rt, nil
}

func (r *RefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if rt, ok := r.s.refresh[token]; ok {
		r.s.refresh[token] = rt.Revoke()
	}
	return nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for token, rt := range r.s.refresh {
		if rt.UserID == userID && !rt.Revoked {
			r.s.refresh[token] = rt.Revoke()
			n++
		}
	}
	return n, nil
}

type VerificationTokenRepository struct {
	s *Store
}

func (r *VerificationTokenRepository) Create(ctx context.Context, userID string, expiresAt time.Time) (*models.VerificationToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	token, err := r.s.freshToken(func(t string) bool { _, ok := r.s.verification[t]; return ok })
	if err != nil {
		return nil, err
	}

	vt := models.VerificationToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: r.s.clock.Now(),
	}
	r.s.verification[token] = vt
	return &vt, nil
}

// TryConsume checks and flips used under the store lock, so exactly one
// concurrent caller wins.
func (r *VerificationTokenRepository) TryConsume(ctx context.Context, token string, now time.Time) (models.ConsumeOutcome, string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	vt, ok := r.s.verification[token]
	if !ok {
		return models.NotFound, "", nil
	}

	outcome := vt.Outcome(now)
	if outcome != models.Consumed {
		return outcome, "", nil
	}
	r.s.verification[token] = vt.Consume()
	return models.Consumed, vt.UserID, nil
}

func (r *VerificationTokenRepository) InvalidateAllForUser(ctx context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for token, vt := range r.s.verification {
		if vt.UserID == userID && !vt.Used {
			r.s.verification[token] = vt.Consume()
			n++
		}
	}
	return n, nil
}
