package models

// Location is a validated geographic point. Orders store it as <prefix>_lat and
// <prefix>_lng columns, so it carries no db tags.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Order represents a delivery order created by a customer and optionally claimed by one rider.
// RiderUsername is empty while the order is unassigned; once set it never changes.
type Order struct {
	ID               int64    `db:"id" json:"id"`
	CustomerUsername string   `db:"customer_username" json:"customerUsername"`
	RiderUsername    string   `db:"rider_username" json:"riderUsername,omitempty"`
	From             Location `json:"from"`
	To               Location `json:"to"`
}

// Assigned reports whether a rider has claimed the order.
func (o *Order) Assigned() bool {
	return o.RiderUsername != ""
}

// AllowedUsername returns the username permitted to act on the order for the given role.
// Customers act on orders they created; riders on orders assigned to them.
func (o *Order) AllowedUsername(role Role) string {
	switch role {
	case RoleCustomer:
		return o.CustomerUsername
	case RoleRider:
		return o.RiderUsername
	default:
		return ""
	}
}
