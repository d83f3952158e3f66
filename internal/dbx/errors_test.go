package dbx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "uc_users_email"}

	assert.True(t, IsUniqueViolation(dup, ""))
	assert.True(t, IsUniqueViolation(fmt.Errorf("db error: %w", dup), "uc_users_email"))
	assert.False(t, IsUniqueViolation(dup, "uc_refresh_tokens_token"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}
