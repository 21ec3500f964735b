package repos

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type txKey struct{}

// DefaultTxTimeout bounds every write transaction. A booking transaction
// that cannot finish in this window aborts instead of holding staff locks.
const DefaultTxTimeout = 10 * time.Second

// Store implements the coordinator's persistence boundary on Postgres.
// Methods run against the pool unless the context carries a transaction
// opened by WithTx.
type Store struct {
	pool      *pgxpool.Pool
	txTimeout time.Duration
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, txTimeout: DefaultTxTimeout}
}

func NewStoreWithTimeout(pool *pgxpool.Pool, timeout time.Duration) *Store {
	s := NewStore(pool)
	if timeout > 0 {
		s.txTimeout = timeout
	}
	return s
}

// WithTx runs fn inside one ReadCommitted transaction with the store's
// timeout. Nested calls join the ambient transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// db returns the ambient transaction when present, the pool otherwise.
func (s *Store) db(ctx context.Context) DBTX {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// isUniqueViolation reports a 23505 on one specific constraint. Other
// unique violations must not be mistaken for it; the booking-number retry
// loop keys off the constraint identity.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
