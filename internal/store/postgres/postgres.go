package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"gestorbrecho/backend/internal/store"
)

var _ store.Repository = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	tx   *TxManager
	sb   squirrel.StatementBuilderType
}

func New(ctx context.Context, databaseURL string, maxConns int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{
		pool: pool,
		tx:   NewTxManager(pool),
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.tx.RunInTransaction(ctx, fn)
}

func (s *Store) get(ctx context.Context, dst any, q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return mapErr(pgxscan.Get(ctx, s.tx.Querier(ctx), dst, sql, args...))
}

func (s *Store) selectAll(ctx context.Context, dst any, q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return mapErr(pgxscan.Select(ctx, s.tx.Querier(ctx), dst, sql, args...))
}

func (s *Store) exec(ctx context.Context, q squirrel.Sqlizer) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}
	tag, err := s.tx.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

// execOne is exec for statements that must touch exactly one row.
func (s *Store) execOne(ctx context.Context, q squirrel.Sqlizer) error {
	affected, err := s.exec(ctx, q)
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// lockOwnerLedger serialises ledger writers of one owner until the
// transaction ends. Outside a transaction the lock would be released at
// once, so callers always run inside WithinTx.
func (s *Store) lockOwnerLedger(ctx context.Context, ownerID string) error {
	_, err := s.tx.Querier(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "ledger:"+ownerID)
	return mapErr(err)
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.ConstraintName)
		case "23514", "23502", "22P02":
			return fmt.Errorf("%w: %s", store.ErrInvalidInput, pgErr.Message)
		case "23503":
			return fmt.Errorf("%w: %s", store.ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

func returning(cols []string) string {
	return "RETURNING " + strings.Join(cols, ", ")
}

func clampLimit(limit int) uint64 {
	return uint64(store.ClampLimit(limit))
}
