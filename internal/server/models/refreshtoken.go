package models

import "time"

type RefreshToken struct {
	ID         string
	UserID     string
	Token      string
	ExpiresAt  time.Time
	Revoked    bool
	DeviceInfo string
	CreatedAt  time.Time
}

// IsUsable reports whether the token can still be exchanged at now.
// Once revoked a token is never usable again.
func (rt RefreshToken) IsUsable(now time.Time) bool {
	return !rt.Revoked && now.Before(rt.ExpiresAt)
}

// IsExpired reports whether now is at or past the expiry instant.
func (rt RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(rt.ExpiresAt)
}

// Revoke returns rt marked revoked.
func (rt RefreshToken) Revoke() RefreshToken {
	rt.Revoked = true
	return rt
}
