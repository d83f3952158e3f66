package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"golang.org/x/crypto/argon2"
)

const argon2ID = "argon2id"

// Argon2Params are the argon2id cost settings. Memory is in KiB.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follows the RFC 9106 second recommended option.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2id produces PHC strings of the form
// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash> (unpadded base64).
type Argon2id struct {
	params Argon2Params
}

func NewArgon2id(p Argon2Params) (*Argon2id, error) {
	switch {
	case p.Memory < 8*1024:
		return nil, errors.New("argon2 memory must be >= 8192 KiB")
	case p.Time < 1:
		return nil, errors.New("argon2 time must be >= 1")
	case p.Parallelism < 1:
		return nil, errors.New("argon2 parallelism must be >= 1")
	case p.SaltLength < 16:
		return nil, errors.New("argon2 salt length must be >= 16")
	case p.KeyLength < 16:
		return nil, errors.New("argon2 key length must be >= 16")
	}
	return &Argon2id{params: p}, nil
}

func (a *Argon2id) Hash(raw string) (string, error) {
	if raw == "" {
		return "", ErrEmptyPassword
	}

	salt, err := common.RandomBytes(int(a.params.SaltLength))
	if err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(raw), salt, a.params.Time, a.params.Memory, a.params.Parallelism, a.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2ID,
		argon2.Version,
		a.params.Memory, a.params.Time, a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the key with the parameters stored in hash, not the
// hasher's own, so hashes survive a cost change.
func (a *Argon2id) Verify(raw, hash string) (bool, error) {
	p, salt, key, err := decodeArgon2(hash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(raw), salt, p.Time, p.Memory, p.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

func decodeArgon2(hash string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != argon2ID {
		return p, nil, nil, ErrMalformedHash
	}

	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return p, nil, nil, fmt.Errorf("%w: unsupported version %s", ErrMalformedHash, parts[2])
	}

	for _, kv := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return p, nil, nil, ErrMalformedHash
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil || n == 0 {
			return p, nil, nil, ErrMalformedHash
		}
		switch name {
		case "m":
			p.Memory = uint32(n)
		case "t":
			p.Time = uint32(n)
		case "p":
			if n > 255 {
				return p, nil, nil, ErrMalformedHash
			}
			p.Parallelism = uint8(n)
		default:
			return p, nil, nil, ErrMalformedHash
		}
	}
	if p.Memory == 0 || p.Time == 0 || p.Parallelism == 0 {
		return p, nil, nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, ErrMalformedHash
	}

	return p, salt, key, nil
}
