package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/market/internal/dbx"
	"github.com/dmitrijs2005/market/internal/server/repositories/locations"
	"github.com/dmitrijs2005/market/internal/server/repositories/orders"
	"github.com/dmitrijs2005/market/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/market/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Orders(db dbx.DBTX) orders.Repository
	Locations(db dbx.DBTX) locations.Repository
}
