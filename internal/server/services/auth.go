// Package services contains server-side business logic. AuthService drives
// the account state machine (unverified → verified) and the three credential
// kinds: access tokens, refresh tokens and verification tokens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/notify"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/credkeeper/internal/timex"
)

// AuthResponse is what register, login and refresh hand back. Register
// returns it empty: an unverified account gets no credentials.
type AuthResponse struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

// TokenIssuer signs and reads access tokens. *auth.Issuer implements it.
type TokenIssuer interface {
	Sign(subject string, claims map[string]any, now time.Time) (string, error)
	Parse(token string, now time.Time) (*auth.Claims, error)
	AccessTTL() time.Duration
}

type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      TokenIssuer
	hasher      cryptox.PasswordHasher
	notifier    notify.Notifier
	clock       timex.Clock
	log         logging.Logger

	refreshTokenValidityDuration      time.Duration
	verificationTokenValidityDuration time.Duration

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService wires the service. db may be nil when m keeps state in
// memory; multi-step writes then run without a transaction.
func NewAuthService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	issuer TokenIssuer,
	hasher cryptox.PasswordHasher,
	notifier notify.Notifier,
	clock timex.Clock,
	log logging.Logger,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		db:                                db,
		repomanager:                       m,
		issuer:                            issuer,
		hasher:                            hasher,
		notifier:                          notifier,
		clock:                             clock,
		log:                               log.With("module", "auth"),
		refreshTokenValidityDuration:      cfg.RefreshTokenValidityDuration,
		verificationTokenValidityDuration: cfg.VerificationTokenValidityDuration,
	}
}

// Register creates an unverified account and mails its activation link.
//
// The user row and its verification token are written together. Mail goes
// out after they are stored and a delivery failure does not undo them: the
// error is returned and ResendVerification can issue a new link.
func (s *AuthService) Register(ctx context.Context, email, password, appBaseURL string) (*AuthResponse, error) {
	_, err := s.repomanager.Users(s.db).FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, common.ErrDuplicateEmail
	case !errors.Is(err, common.ErrUserNotFound):
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	var (
		user  *models.User
		token *models.VerificationToken
	)
	err = s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		user, err = s.repomanager.Users(tx).Create(ctx, email, hash)
		if err != nil {
			return err
		}
		token, err = s.issueVerificationToken(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)

	if err := s.sendVerification(ctx, user.Email, token.Token, appBaseURL); err != nil {
		return nil, err
	}
	return &AuthResponse{}, nil
}

// Login checks the password, then the verified state, and issues a fresh
// access token plus a new refresh token tagged with deviceInfo.
func (s *AuthService) Login(ctx context.Context, email, password, deviceInfo string) (*AuthResponse, error) {
	usersRepo := s.repomanager.Users(s.db)

	user, err := usersRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			s.burnPasswordCheck(password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("error verifying password: %w", err)
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}
	if !user.Enabled {
		return nil, common.ErrAccountNotVerified
	}

	now := s.clock.Now()

	access, err := s.signAccessToken(user, now)
	if err != nil {
		return nil, err
	}

	// The refresh token is only kept if lastLogin is recorded with it.
	var rt *models.RefreshToken
	err = s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		rt, err = s.repomanager.RefreshTokens(tx).Create(ctx, user.ID, now.Add(s.refreshTokenValidityDuration), deviceInfo)
		if err != nil {
			return fmt.Errorf("error creating refresh token: %w", err)
		}
		if err := s.repomanager.Users(tx).RecordLogin(ctx, user.ID, now); err != nil {
			return fmt.Errorf("error recording login: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID, "device", deviceInfo)

	return &AuthResponse{
		AccessToken:     access,
		RefreshToken:    rt.Token,
		AccessExpiresAt: now.Add(s.issuer.AccessTTL()),
	}, nil
}

// Refresh exchanges a live refresh token for a new access token. The refresh
// token itself is returned unchanged; it is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	now := s.clock.Now()

	rt, err := s.repomanager.RefreshTokens(s.db).Resolve(ctx, refreshToken, now)
	if err != nil {
		if errors.Is(err, common.ErrTokenNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}

	switch {
	case rt.IsExpired(now):
		return nil, common.ErrTokenExpired
	case rt.Revoked:
		return nil, common.ErrTokenRevoked
	}

	user, err := s.repomanager.Users(s.db).FindByID(ctx, rt.UserID)
	if err != nil {
		return nil, fmt.Errorf("error searching token owner: %w", err)
	}

	access, err := s.signAccessToken(user, now)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		AccessToken:     access,
		RefreshToken:    rt.Token,
		AccessExpiresAt: now.Add(s.issuer.AccessTTL()),
	}, nil
}

// Logout revokes the refresh token. Unknown or already revoked tokens are
// not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.repomanager.RefreshTokens(s.db).Revoke(ctx, refreshToken); err != nil {
		return fmt.Errorf("error revoking refresh token: %w", err)
	}
	return nil
}

// VerifyAccount consumes a verification token and enables its owner.
// Unknown, used and expired tokens all fail with ErrInvalidOrExpiredToken.
func (s *AuthService) VerifyAccount(ctx context.Context, token string) error {
	var userID string
	err := s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		outcome, id, err := s.repomanager.VerificationTokens(tx).TryConsume(ctx, token, s.clock.Now())
		if err != nil {
			return fmt.Errorf("error consuming verification token: %w", err)
		}
		if reason := outcome.Err(); reason != nil {
			s.log.Debug(ctx, "verification rejected", "reason", reason.Error())
			return common.ErrInvalidOrExpiredToken
		}
		if err := s.repomanager.Users(tx).Enable(ctx, id); err != nil {
			return fmt.Errorf("error enabling user: %w", err)
		}
		userID = id
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "account verified", "user_id", userID)
	return nil
}

// ResendVerification invalidates the outstanding links of an unverified
// account and mails a new one. Unknown and already verified addresses get
// the same nil result and no mail.
func (s *AuthService) ResendVerification(ctx context.Context, email, appBaseURL string) error {
	user, err := s.repomanager.Users(s.db).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("error searching user: %w", err)
	}
	if user.Enabled {
		return nil
	}

	var token *models.VerificationToken
	err = s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.VerificationTokens(tx).InvalidateAllForUser(ctx, user.ID); err != nil {
			return err
		}
		var err error
		token, err = s.issueVerificationToken(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return fmt.Errorf("error reissuing verification token: %w", err)
	}

	return s.sendVerification(ctx, user.Email, token.Token, appBaseURL)
}

// RevokeAllSessions revokes every refresh token of userID and reports how
// many were still live.
func (s *AuthService) RevokeAllSessions(ctx context.Context, userID string) (int64, error) {
	n, err := s.repomanager.RefreshTokens(s.db).RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("error revoking sessions: %w", err)
	}
	s.log.Info(ctx, "sessions revoked", "user_id", userID, "count", n)
	return n, nil
}

// Authenticate turns a bearer access token into a Principal. Every failure
// matches common.ErrTokenInvalid.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*auth.Principal, error) {
	claims, err := s.issuer.Parse(accessToken, s.clock.Now())
	if err != nil {
		return nil, err
	}
	return &auth.Principal{
		Subject:   claims.Subject,
		Roles:     claims.Roles(),
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// ActivationLink is <base>/api/auth/verify?token=<token>, with trailing
// slashes of base dropped.
func ActivationLink(appBaseURL, token string) string {
	return strings.TrimRight(appBaseURL, "/") + common.VerifyPath + "?token=" + url.QueryEscape(token)
}

// --- helpers below ---

func (s *AuthService) signAccessToken(user *models.User, now time.Time) (string, error) {
	token, err := s.issuer.Sign(user.Email, map[string]any{auth.RolesClaim: user.RoleNames()}, now)
	if err != nil {
		return "", fmt.Errorf("error signing access token: %w", err)
	}
	return token, nil
}

func (s *AuthService) issueVerificationToken(ctx context.Context, tx dbx.DBTX, userID string) (*models.VerificationToken, error) {
	expiresAt := s.clock.Now().Add(s.verificationTokenValidityDuration)
	return s.repomanager.VerificationTokens(tx).Create(ctx, userID, expiresAt)
}

func (s *AuthService) sendVerification(ctx context.Context, email, token, appBaseURL string) error {
	link := ActivationLink(appBaseURL, token)
	if err := s.notifier.Send(ctx, email, notify.VerificationSubject, notify.VerificationBody(link)); err != nil {
		s.log.Error(ctx, "verification mail not sent", "email", email, "error", err)
		return fmt.Errorf("error sending verification email: %w", err)
	}
	return nil
}

// burnPasswordCheck spends the same work as a real password check, so an
// unknown email cannot be told apart by response time.
func (s *AuthService) burnPasswordCheck(password string) {
	s.dummyOnce.Do(func() {
		if seed, err := common.NewOpaqueToken(); err == nil {
			s.dummyHash, _ = s.hasher.Hash(seed)
		}
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash)
	}
}

// inTx groups writes in one transaction when a database is configured.
func (s *AuthService) inTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if s.db == nil {
		return fn(ctx, nil)
	}
	return dbx.WithTx(ctx, s.db, nil, fn)
}
