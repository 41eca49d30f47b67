package querier

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxStarter is satisfied by *pgxpool.Pool and pgx.Tx (savepoint).
type TxStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// InTx runs fn inside a transaction started from q. When q cannot begin a
// transaction fn runs against q directly.
func InTx(ctx context.Context, q Querier, fn func(Querier) error) error {
	starter, ok := q.(TxStarter)
	if !ok {
		return fn(q)
	}
	return pgx.BeginFunc(ctx, starter, func(tx pgx.Tx) error {
		return fn(tx)
	})
}
