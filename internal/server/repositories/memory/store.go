// Package memory keeps users and tokens in process memory. It backs the
// "memory" storage kind and the service tests; every value handed out is a
// copy, so callers never share state with the store.
package memory

import (
	"sync"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/timex"
	"github.com/google/uuid"
)

// Store is the shared state behind the three repository views.
type Store struct {
	mu    sync.Mutex
	clock timex.Clock

	defaultRole models.Role

	users        map[string]models.User // by id
	usersByEmail map[string]string      // email -> id

	refresh      map[string]models.RefreshToken      // by token
	verification map[string]models.VerificationToken // by token

	newToken func() (string, error)
}

func NewStore(clock timex.Clock) *Store {
	return &Store{
		clock:        clock,
		defaultRole:  models.Role{ID: uuid.NewString(), Name: common.DefaultRoleName},
		users:        make(map[string]models.User),
		usersByEmail: make(map[string]string),
		refresh:      make(map[string]models.RefreshToken),
		verification: make(map[string]models.VerificationToken),
		newToken:     common.NewOpaqueToken,
	}
}

// Users returns the user directory view of s.
func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

// RefreshTokens returns the refresh-token ledger view of s.
func (s *Store) RefreshTokens() *RefreshTokenRepository {
	return &RefreshTokenRepository{s: s}
}

// VerificationTokens returns the verification-token ledger view of s.
func (s *Store) VerificationTokens() *VerificationTokenRepository {
	return &VerificationTokenRepository{s: s}
}

func copyUser(u models.User) *models.User {
	u.Roles = append([]models.Role(nil), u.Roles...)
	if u.LastLogin != nil {
		at := *u.LastLogin
		u.LastLogin = &at
	}
	return &u
}
