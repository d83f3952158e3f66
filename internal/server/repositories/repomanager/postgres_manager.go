// Package repomanager provides RepositoryManager implementations for
// PostgreSQL and for process memory, wiring together repository
// constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/verificationtokens"
	"github.com/dmitrijs2005/credkeeper/internal/timex"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct {
	clock timex.Clock
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db, m.clock)
}

// RefreshTokens returns a refreshtokens.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db, m.clock)
}

// VerificationTokens returns a verificationtokens.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) VerificationTokens(db dbx.DBTX) verificationtokens.Repository {
	return verificationtokens.NewPostgresRepository(db, m.clock)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(clock timex.Clock) RepositoryManager {
	return &PostgresRepositoryManager{clock: clock}
}
