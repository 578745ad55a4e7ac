package purchase

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/devmarket/marketplace-api/internal/domain/settlement"
	"github.com/devmarket/marketplace-api/internal/pkg/database"
)

// Scope is the set of stores bound to one transaction.
type Scope struct {
	Purchases  Repository
	Settlement *settlement.Engine
}

// UnitOfWork runs fn atomically: purchase writes and money movements made
// through the scope commit together or not at all.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(s Scope) error) error
}

type sqlUnitOfWork struct {
	db *sqlx.DB
}

func NewUnitOfWork(db *sqlx.DB) UnitOfWork {
	return &sqlUnitOfWork{db: db}
}

func (u *sqlUnitOfWork) Do(ctx context.Context, fn func(s Scope) error) error {
	return database.WithTx(ctx, u.db, func(tx *sqlx.Tx) error {
		return fn(Scope{
			Purchases:  NewRepository(tx),
			Settlement: settlement.NewEngine(settlement.NewRepository(tx)),
		})
	})
}
