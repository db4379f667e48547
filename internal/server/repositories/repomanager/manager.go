package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/tentech/internal/dbx"
	"github.com/dmitrijs2005/tentech/internal/server/repositories/products"
	"github.com/dmitrijs2005/tentech/internal/server/repositories/producttags"
	"github.com/dmitrijs2005/tentech/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tentech/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same service
// code runs against *sql.DB or inside a *sql.Tx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Products(db dbx.DBTX) products.Repository
	ProductTags(db dbx.DBTX) producttags.Repository
}
