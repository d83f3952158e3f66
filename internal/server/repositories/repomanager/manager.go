package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/verificationtokens"
)

// RepositoryManager vends the three stores the auth service depends on,
// bound to a DBTX so a caller can group them in one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	VerificationTokens(db dbx.DBTX) verificationtokens.Repository
}
