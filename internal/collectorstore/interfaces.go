package collectorstore

import (
	"context"
	"database/sql"
	"time"
)

// DefaultStoreTimeout bounds any single interaction with the store.
var DefaultStoreTimeout = 10 * time.Second

const (
	DefaultNumTxRetries      = 10
	DefaultInitialRetryDelay = 40 * time.Millisecond
	DefaultMaxRetryDelay     = 3 * time.Second
)

// TxOptions controls whether a transaction is read-only.
type TxOptions interface {
	ReadOnly() bool
}

// BaseTxOptions is the concrete TxOptions every caller uses.
type BaseTxOptions struct {
	readOnly bool
}

func (o *BaseTxOptions) ReadOnly() bool { return o.readOnly }

func ReadTxOption() *BaseTxOptions  { return &BaseTxOptions{readOnly: true} }
func WriteTxOption() *BaseTxOptions { return &BaseTxOptions{readOnly: false} }

// QueryCreator builds a Q (typically a Querier) bound to a live
// transaction.
type QueryCreator[Q any] func(*sql.Tx) Q

// BatchedTx runs a sequence of operations against Q atomically.
type BatchedTx[Q any] interface {
	ExecTx(ctx context.Context, opts TxOptions, txBody func(Q) error) error
}

// BatchedQuerier is a Querier that can also begin a transaction.
type BatchedQuerier interface {
	Querier

	BeginTx(ctx context.Context, opts TxOptions) (*sql.Tx, error)
}

// BaseDB embeds the raw connection and the non-transactional Queries
// every Store builds on, mirroring internal/db.BaseDB.
type BaseDB struct {
	*sql.DB
	*Queries
}

func NewBaseDB(db *sql.DB) *BaseDB {
	return &BaseDB{DB: db, Queries: New(db)}
}

func (b *BaseDB) BeginTx(ctx context.Context, opts TxOptions) (*sql.Tx, error) {
	return b.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: opts.ReadOnly()})
}
