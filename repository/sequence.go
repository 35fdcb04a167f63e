package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"deliveryService/internal/apperr"
)

// OrdersSequenceName is the well-known globals row holding the next order id.
const OrdersSequenceName = "orders"

// SequenceAllocator hands out monotonically increasing order ids from the globals table.
// Allocate must run inside the transaction that creates the order.
type SequenceAllocator struct {
	Name string
}

// Allocate reads the counter, returns the id to use and writes back id+1 in tx.
// A missing counter starts at 1. A stored value below 1 is corrupted state and is
// reported as an internal invariant violation, never repaired.
func (a SequenceAllocator) Allocate(ctx context.Context, tx *sql.Tx) (int64, error) {
	name := a.Name
	if name == "" {
		name = OrdersSequenceName
	}
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT next_id FROM globals WHERE name = ?`, name).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = 1
	case err != nil:
		return 0, fmt.Errorf("read sequence %s: %w", name, err)
	case id < 1:
		return 0, apperr.New(apperr.Internal, "database state invalid: globals/%s holds nextId %d", name, id)
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO globals (name, next_id) VALUES (?, ?)
ON CONFLICT(name) DO UPDATE SET next_id = excluded.next_id`, name, id+1)
	if err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", name, err)
	}
	return id, nil
}
