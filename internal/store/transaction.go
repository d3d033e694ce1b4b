package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx. Store methods that accept a
// DBTX run against the pool when it is nil.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxFn is the unit of work executed by RunInTx.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTx executes fn within a transaction. The transaction commits when fn
// returns nil and rolls back when fn returns an error or panics; a panic is
// re-raised after the rollback.
func (s *Store) RunInTx(ctx context.Context, fn TxFn) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("begin transaction", "error", err)
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback after panic", "error", rbErr, "panic", p)
			}
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("rollback transaction", "error", rbErr, "cause", err)
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		s.logger.Debug("transaction rolled back", "error", err)
		return err
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error("commit transaction", "error", err)
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) conn(q DBTX) DBTX {
	if q == nil {
		return s.db
	}
	return q
}
