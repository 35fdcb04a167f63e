package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"deliveryService/internal/apperr"
	"deliveryService/models"
)

const opTimeout = 3 * time.Second

// OrderRepository owns the orders table. Each exported operation runs as one
// serializable transaction: the connection takes the write lock at BEGIN, so the
// conflict check and the mutation cannot interleave with another writer.
type OrderRepository struct {
	db  *sql.DB
	seq SequenceAllocator
}

var (
	_ OrderRepositoryI = (*OrderRepository)(nil)
	_ AssignedIndexI   = (*OrderRepository)(nil)
)

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db, seq: SequenceAllocator{Name: OrdersSequenceName}}
}

// WithTx opens a transaction and executes fn within it. fn's error rolls the
// transaction back; a nil return commits.
func (r *OrderRepository) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Create allocates the next id and creates the order owned by customer in the same transaction.
func (r *OrderRepository) Create(ctx context.Context, customer string, from, to models.Location) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var id int64
	err := r.WithTx(ctx, func(tx *sql.Tx) error {
		next, err := r.seq.Allocate(ctx, tx)
		if err != nil {
			return err
		}
		if err := r.CreateAtomic(ctx, tx, next, customer, from, to); err != nil {
			return err
		}
		id = next
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CreateAtomic inserts a new unassigned order under id. An occupied id is a hard
// failure (ErrAlreadyExists), never a merge.
func (r *OrderRepository) CreateAtomic(ctx context.Context, tx *sql.Tx, id int64, customer string, from, to models.Location) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO orders (id, customer_username, from_lat, from_lng, to_lat, to_lng) VALUES (?,?,?,?,?,?)`,
		id, customer, from.Latitude, from.Longitude, to.Latitude, to.Longitude)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("order %d: %w", id, ErrAlreadyExists)
		}
		return fmt.Errorf("insert order %d: %w", id, err)
	}
	return nil
}

// ReadForUpdate fetches an order inside tx. Returns (nil, nil) if it does not exist.
func (r *OrderRepository) ReadForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	o, err := scanOrder(tx.QueryRowContext(ctx, selectOrder+` WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("read order %d: %w", id, err)
	}
	return o, nil
}

// Get fetches an order outside any transaction. Returns (nil, nil) if it does not exist.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	o, err := scanOrder(r.db.QueryRowContext(ctx, selectOrder+` WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}

// ConditionalAssign binds rider to an unassigned order. Re-assignment by the same
// rider is an idempotent success without a write; any other rider gets OutcomeConflict.
func (r *OrderRepository) ConditionalAssign(ctx context.Context, id int64, rider string) (AssignResult, error) {
	if rider == "" {
		return AssignResult{}, apperr.Invalid("riderUsername", "riderUsername is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var res AssignResult
	err := r.WithTx(ctx, func(tx *sql.Tx) error {
		o, err := r.ReadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		res.Order = o
		switch {
		case o == nil:
			res.Outcome = OutcomeNotFound
			return nil
		case o.Assigned() && o.RiderUsername == rider:
			res.Outcome = OutcomeUnchanged
			return nil
		case o.Assigned():
			res.Outcome = OutcomeConflict
			return nil
		}
		out, err := tx.ExecContext(ctx, `UPDATE orders SET rider_username = ? WHERE id = ? AND rider_username IS NULL`, rider, id)
		if err != nil {
			return fmt.Errorf("assign order %d: %w", id, err)
		}
		if n, _ := out.RowsAffected(); n != 1 {
			return fmt.Errorf("assign order %d: %d rows updated", id, n)
		}
		o.RiderUsername = rider
		res.Outcome = OutcomeApplied
		return nil
	})
	if err != nil {
		return AssignResult{}, err
	}
	return res, nil
}

// ConditionalDelete removes the order when actor is the username allowed for role:
// the creating customer, or the assigned rider. An unassigned order cannot be deleted by a rider.
func (r *OrderRepository) ConditionalDelete(ctx context.Context, id int64, role models.Role, actor string) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	outcome := OutcomeApplied
	err := r.WithTx(ctx, func(tx *sql.Tx) error {
		o, err := r.ReadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if o == nil {
			outcome = OutcomeNotFound
			return nil
		}
		if allowed := o.AllowedUsername(role); allowed == "" || allowed != actor {
			outcome = OutcomeConflict
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete order %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return outcome, nil
}

const selectOrder = `SELECT id, customer_username, rider_username, from_lat, from_lng, to_lat, to_lng FROM orders`

// scanOrder scans a single order row. Returns (nil, nil) on sql.ErrNoRows.
func scanOrder(row *sql.Row) (*models.Order, error) {
	var o models.Order
	var rider sql.NullString
	err := row.Scan(&o.ID, &o.CustomerUsername, &rider, &o.From.Latitude, &o.From.Longitude, &o.To.Latitude, &o.To.Longitude)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if rider.Valid {
		o.RiderUsername = rider.String
	}
	return &o, nil
}
