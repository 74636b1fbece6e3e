package collectorstore

import (
	"context"
	"database/sql"
	"log/slog"
)

// Store wraps BaseDB with transaction support and the
// Collector-specific convenience wrappers, mirroring internal/db.Store.
type Store struct {
	*BaseDB

	txExecutor *TransactionExecutor[*Queries]
	log        *slog.Logger
}

func NewStore(db *sql.DB) *Store {
	return NewStoreWithLogger(db, slog.Default())
}

func NewStoreWithLogger(db *sql.DB, log *slog.Logger) *Store {
	base := NewBaseDB(db)

	createQuery := func(tx *sql.Tx) *Queries {
		return New(tx)
	}

	return &Store{
		BaseDB:     base,
		txExecutor: NewTransactionExecutor(base, createQuery, log),
		log:        log,
	}
}

func (s *Store) ExecTx(ctx context.Context, opts TxOptions,
	txBody func(*Queries) error) error {

	return s.txExecutor.ExecTx(ctx, opts, txBody)
}

// TxFunc is the callback signature for WithTx/WithReadTx.
type TxFunc func(ctx context.Context, q *Queries) error

func (s *Store) WithTx(ctx context.Context, fn TxFunc) error {
	return s.ExecTx(ctx, WriteTxOption(), func(q *Queries) error {
		return fn(ctx, q)
	})
}

func (s *Store) WithReadTx(ctx context.Context, fn TxFunc) error {
	return s.ExecTx(ctx, ReadTxOption(), func(q *Queries) error {
		return fn(ctx, q)
	})
}
