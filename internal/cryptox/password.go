// Package cryptox holds the password hashing schemes the server can be
// configured with. Hashes are self-describing strings, so a stored hash
// carries the parameters needed to check it.
package cryptox

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPassword = errors.New("password must not be empty")
	ErrMalformedHash = errors.New("malformed password hash")
)

// PasswordHasher hashes raw passwords and checks them against stored hashes.
type PasswordHasher interface {
	Hash(raw string) (string, error)
	// Verify reports whether raw matches hash. A mismatch is (false, nil);
	// an error means hash could not be interpreted.
	Verify(raw, hash string) (bool, error)
}

const (
	KindArgon2id = "argon2id"
	KindBcrypt   = "bcrypt"
)

// NewPasswordHasher returns the hasher for a configured kind with its
// default cost parameters.
func NewPasswordHasher(kind string) (PasswordHasher, error) {
	switch kind {
	case KindArgon2id, "":
		return NewArgon2id(DefaultArgon2Params())
	case KindBcrypt:
		return NewBcrypt(DefaultBcryptCost)
	default:
		return nil, fmt.Errorf("unknown password hasher %q", kind)
	}
}
