package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Repositories accept nil to run on the pool.
type Tx interface{}

// TransactionManager runs fn inside a store transaction, passing the handle as tx.
// fn returning an error rolls the transaction back; otherwise it commits.
//
// The concrete type of tx is infra-defined (pgx.Tx for Postgres). Repository
// methods that take a Tx must accept nil for the non-transactional path.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
