package models

import (
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
)

type VerificationToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

func (vt VerificationToken) IsUsable(now time.Time) bool {
	return !vt.Used && now.Before(vt.ExpiresAt)
}

// Consume returns vt marked used.
func (vt VerificationToken) Consume() VerificationToken {
	vt.Used = true
	return vt
}

// Outcome classifies vt for a consumption attempt at now without changing it.
func (vt VerificationToken) Outcome(now time.Time) ConsumeOutcome {
	switch {
	case vt.Used:
		return AlreadyUsed
	case !now.Before(vt.ExpiresAt):
		return Expired
	default:
		return Consumed
	}
}

// ConsumeOutcome is the result of a single-use token consumption attempt.
type ConsumeOutcome int

const (
	NotFound ConsumeOutcome = iota
	Consumed
	AlreadyUsed
	Expired
)

func (o ConsumeOutcome) String() string {
	switch o {
	case Consumed:
		return "consumed"
	case AlreadyUsed:
		return "already_used"
	case Expired:
		return "expired"
	default:
		return "not_found"
	}
}

// Err maps a failed outcome to its token error; Consumed maps to nil.
func (o ConsumeOutcome) Err() error {
	switch o {
	case Consumed:
		return nil
	case AlreadyUsed:
		return common.ErrTokenAlreadyUsed
	case Expired:
		return common.ErrTokenExpired
	default:
		return common.ErrTokenNotFound
	}
}
