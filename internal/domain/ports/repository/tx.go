package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. The concrete type is infra-defined
// (pgx.Tx for Postgres). Repositories accept a nil Tx and fall back to the
// non-transactional path.
type Tx interface{}

// TransactionManager executes a function inside a database transaction,
// passing the transaction handle to the callback. Repository methods that
// receive the handle may use SELECT ... FOR UPDATE; this is the unit of
// mutual exclusion for a Payment row, so no application-level locks are
// needed on the synchronous paths.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
