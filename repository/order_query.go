package repository

import (
	"context"
	"fmt"
	"time"

	"deliveryService/models"
)

// ListAssigned returns the ids of the orders currently tied to username: created by
// them for customers, claimed by them for riders. The scan is point-in-time and has
// no ordering guarantee beyond uniqueness.
func (r *OrderRepository) ListAssigned(ctx context.Context, role models.Role, username string) ([]int64, error) {
	var column string
	switch role {
	case models.RoleCustomer:
		column = "customer_username"
	case models.RoleRider:
		column = "rider_username"
	default:
		return nil, fmt.Errorf("list assigned: no orders are tied to role %q", role)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT id FROM orders WHERE `+column+` = ? ORDER BY id`, username)
	if err != nil {
		return nil, fmt.Errorf("list assigned: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
