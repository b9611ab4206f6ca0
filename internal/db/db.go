// Package db is a hand-written, sqlc-shaped data access layer: a DBTX
// abstraction over *pgxpool.Pool / pgxpool.Tx / pgxpool.Conn, a Queries
// struct wrapping it, and one method per query. Raw SQL lives here and only
// here — domain packages never see a *sql string (§9 REDESIGN FLAGS).
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx, and *pgxpool.Conn, letting
// every Queries method run against a pool, a transaction, or a single
// acquired connection interchangeably.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries is the hand-written query surface for the core schema.
type Queries struct {
	db DBTX
}

// New wraps any DBTX in a Queries.
func New(dbtx DBTX) *Queries {
	return &Queries{db: dbtx}
}

// WithTx returns a Queries bound to the given transaction. Used so a
// component can start a transaction via the pool and keep issuing the same
// named queries against it.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}
