package collectorstore

import (
	"context"
	"log/slog"
	"math"
	prand "math/rand"
	"time"
)

type txExecutorOptions struct {
	numRetries        int
	initialRetryDelay time.Duration
	maxRetryDelay     time.Duration
}

func defaultTxExecutorOptions() *txExecutorOptions {
	return &txExecutorOptions{
		numRetries:        DefaultNumTxRetries,
		initialRetryDelay: DefaultInitialRetryDelay,
		maxRetryDelay:     DefaultMaxRetryDelay,
	}
}

func (t *txExecutorOptions) randRetryDelay(attempt int) time.Duration {
	halfDelay := t.initialRetryDelay / 2
	randDelay := prand.Int63n(int64(t.initialRetryDelay)) //nolint:gosec

	initialDelay := halfDelay + time.Duration(randDelay)
	if attempt == 0 {
		return initialDelay
	}

	factor := time.Duration(math.Pow(2, math.Min(float64(attempt), 32)))
	actualDelay := initialDelay * factor
	if actualDelay > t.maxRetryDelay {
		return t.maxRetryDelay
	}
	return actualDelay
}

type TxExecutorOption func(*txExecutorOptions)

func WithTxRetries(n int) TxExecutorOption {
	return func(o *txExecutorOptions) { o.numRetries = n }
}

func WithTxRetryDelay(d time.Duration) TxExecutorOption {
	return func(o *txExecutorOptions) { o.initialRetryDelay = d }
}

// TransactionExecutor abstracts the query type a caller needs within a
// transaction from the retry/backoff policy around acquiring one,
// mirroring internal/db.TransactionExecutor.
type TransactionExecutor[Q any] struct {
	BatchedQuerier

	createQuery QueryCreator[Q]
	opts        *txExecutorOptions
	log         *slog.Logger
}

func NewTransactionExecutor[Q any](db BatchedQuerier,
	createQuery QueryCreator[Q], log *slog.Logger,
	opts ...TxExecutorOption) *TransactionExecutor[Q] {

	txOpts := defaultTxExecutorOptions()
	for _, opt := range opts {
		opt(txOpts)
	}

	return &TransactionExecutor[Q]{
		BatchedQuerier: db,
		createQuery:    createQuery,
		opts:           txOpts,
		log:            log,
	}
}

func (t *TransactionExecutor[Q]) ExecTx(ctx context.Context,
	txOptions TxOptions, txBody func(Q) error) error {

	waitBeforeRetry := func(attempt int) {
		delay := t.opts.randRetryDelay(attempt)
		t.log.DebugContext(ctx,
			"retrying transaction after serialization/deadlock error",
			"attempt", attempt, "delay", delay,
		)
		time.Sleep(delay)
	}

	for i := 0; i < t.opts.numRetries; i++ {
		tx, err := t.BeginTx(ctx, txOptions)
		if err != nil {
			dbErr := MapSQLError(err)
			if IsSerializationOrDeadlockError(dbErr) {
				waitBeforeRetry(i)
				continue
			}
			return dbErr
		}

		if err := txBody(t.createQuery(tx)); err != nil {
			_ = tx.Rollback()

			dbErr := MapSQLError(err)
			if IsSerializationOrDeadlockError(dbErr) {
				waitBeforeRetry(i)
				continue
			}
			return dbErr
		}

		if err := tx.Commit(); err != nil {
			dbErr := MapSQLError(err)
			if IsSerializationOrDeadlockError(dbErr) {
				waitBeforeRetry(i)
				continue
			}
			return dbErr
		}

		return nil
	}

	return ErrRetriesExceeded
}
