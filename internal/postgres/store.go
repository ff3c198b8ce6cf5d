package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
)

// Store runs booking transactions on Postgres. Confirm serializes on product rows with
// SELECT ... FOR UPDATE, so READ COMMITTED is enough: the availability query runs after
// the lock is granted and sees every reservation committed by the previous holder.
type Store struct{ DB *pgxpool.Pool }

var _ booking.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(q booking.Queries) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func (s *Store) View(ctx context.Context, fn func(q booking.Queries) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, fn func(q booking.Queries) error) error {
	tx, err := s.DB.BeginTx(ctx, opts)
	if err != nil {
		return booking.StorageError("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&queries{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return booking.StorageError("commit", err)
	}
	return nil
}

// wrap translates driver errors into booking errors.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &booking.Error{Kind: booking.KindNotFound, Msg: op + ": not found"}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return &booking.Error{Kind: booking.KindValidation, Msg: op + ": duplicate " + pgErr.ConstraintName, Err: err}
		case "23514", "23503": // check_violation, foreign_key_violation
			return &booking.Error{Kind: booking.KindValidation, Msg: op + ": " + pgErr.Message, Err: err}
		}
	}
	return booking.StorageError(op, err)
}
