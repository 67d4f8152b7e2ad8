package repomanager

import (
	"context"
	"database/sql"

	"github.com/sessionworks/authd/internal/dbx"
	"github.com/sessionworks/authd/internal/server/repositories/refreshtokens"
	"github.com/sessionworks/authd/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a concrete handle. Passing a
// *sql.Tx rebinds a repository into a transaction, which is how the rotation
// flow keeps consume-old and persist-new atomic.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
