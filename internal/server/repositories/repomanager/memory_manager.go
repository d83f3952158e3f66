package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/memory"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/verificationtokens"
	"github.com/dmitrijs2005/credkeeper/internal/timex"
)

// InMemoryRepositoryManager serves every repository from one shared
// memory.Store. The DBTX argument is ignored and may be nil.
type InMemoryRepositoryManager struct {
	store *memory.Store
}

func NewInMemoryRepositoryManager(clock timex.Clock) RepositoryManager {
	return &InMemoryRepositoryManager{store: memory.NewStore(clock)}
}

// RunMigrations is a no-op: there is no schema.
func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository {
	return m.store.Users()
}

func (m *InMemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.store.RefreshTokens()
}

func (m *InMemoryRepositoryManager) VerificationTokens(dbx.DBTX) verificationtokens.Repository {
	return m.store.VerificationTokens()
}
