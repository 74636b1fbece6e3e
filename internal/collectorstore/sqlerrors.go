package collectorstore

import (
	"errors"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// ErrRetriesExceeded is returned when a transaction is retried more
// than the max allowed number of times without succeeding.
var ErrRetriesExceeded = errors.New("collectorstore: tx retries exceeded")

// MapSQLError interprets err as a database-agnostic SQL error when it
// recognizes the underlying driver error.
func MapSQLError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return parseSqliteError(sqliteErr)
	}
	return err
}

func parseSqliteError(sqliteErr sqlite3.Error) error {
	switch sqliteErr.Code {
	case sqlite3.ErrConstraint:
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {

			return &ErrSQLUniqueConstraintViolation{DBError: sqliteErr}
		}
		return fmt.Errorf("sqlite constraint error: %w", sqliteErr)

	case sqlite3.ErrBusy:
		return &ErrSerializationError{DBError: sqliteErr}

	case sqlite3.ErrLocked:
		return &ErrDeadlockError{DBError: sqliteErr}

	case sqlite3.ErrError:
		if strings.Contains(sqliteErr.Error(), "no such table") {
			return &ErrSchemaError{DBError: sqliteErr}
		}
		return fmt.Errorf("unknown sqlite error: %w", sqliteErr)

	default:
		return fmt.Errorf("unknown sqlite error: %w", sqliteErr)
	}
}

// ErrSQLUniqueConstraintViolation is a database-agnostic unique
// constraint violation.
type ErrSQLUniqueConstraintViolation struct {
	DBError error
}

func (e ErrSQLUniqueConstraintViolation) Error() string {
	return fmt.Sprintf("sql unique constraint violation: %v", e.DBError)
}

// ErrSerializationError indicates a transaction could not be
// serialized with other concurrent transactions and should be retried.
type ErrSerializationError struct {
	DBError error
}

func (e ErrSerializationError) Unwrap() error { return e.DBError }
func (e ErrSerializationError) Error() string { return e.DBError.Error() }

// ErrDeadlockError indicates transactions produced a cyclic lock
// dependency.
type ErrDeadlockError struct {
	DBError error
}

func (e ErrDeadlockError) Unwrap() error { return e.DBError }
func (e ErrDeadlockError) Error() string { return e.DBError.Error() }

func IsSerializationError(err error) bool {
	var e *ErrSerializationError
	return errors.As(err, &e)
}

func IsDeadlockError(err error) bool {
	var e *ErrDeadlockError
	return errors.As(err, &e)
}

func IsSerializationOrDeadlockError(err error) bool {
	return IsDeadlockError(err) || IsSerializationError(err)
}

// ErrSchemaError indicates the database schema does not match what a
// query expected (e.g. a migration has not run).
type ErrSchemaError struct {
	DBError error
}

func (e ErrSchemaError) Unwrap() error { return e.DBError }
func (e ErrSchemaError) Error() string { return e.DBError.Error() }

func IsSchemaError(err error) bool {
	var e *ErrSchemaError
	return errors.As(err, &e)
}
