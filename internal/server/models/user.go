// Package models defines the immutable records the server persists: users,
// roles and the two opaque token kinds. State changes go through the
// transition methods, which return an updated copy.
package models

import "time"

// Role is referenced by users, never owned by them.
type Role struct {
	ID   string
	Name string
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Enabled      bool
	CreatedAt    time.Time
	LastLogin    *time.Time
	Roles        []Role
}

// Enable returns u with Enabled set. Enabling twice is harmless.
func (u User) Enable() User {
	u.Enabled = true
	return u
}

// WithLastLogin returns u with LastLogin set to at.
func (u User) WithLastLogin(at time.Time) User {
	u.LastLogin = &at
	return u
}

// RoleNames lists role names in stored order.
func (u User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

func (u User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}
