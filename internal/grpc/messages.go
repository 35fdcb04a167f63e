package grpcserver

import (
	"deliveryService/internal/geo"
	"deliveryService/models"
)

type CreateOrderRequest struct {
	From *geo.Point `json:"from"`
	To   *geo.Point `json:"to"`
}

type AblyToken struct {
	Token string `json:"token"`
}

type GoogleMapsKey struct {
	APIKey string `json:"apiKey"`
}

type MapboxToken struct {
	Token string `json:"token"`
}

type CreateOrderResponse struct {
	OrderID    int64          `json:"orderId"`
	Ably       AblyToken      `json:"ably"`
	GoogleMaps *GoogleMapsKey `json:"googleMaps,omitempty"`
}

// AssignOrderRequest carries the order id as text so the id boundary rules
// (non-numeric vs negative) apply the same way as on HTTP paths.
type AssignOrderRequest struct {
	OrderID string `json:"orderId"`
}

type AssignOrderResponse struct {
	Order  *models.Order `json:"order"`
	Ably   AblyToken     `json:"ably"`
	Mapbox *MapboxToken  `json:"mapbox,omitempty"`
}

type DeleteOrderRequest struct {
	OrderID string `json:"orderId"`
}

type DeleteOrderResponse struct{}

type AblyTokenRequest struct{}

type GoogleMapsRequest struct{}

type MapboxRequest struct{}

type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type CreateUserResponse struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

type GetOrderRequest struct {
	OrderID string `json:"orderId"`
}

type GetOrderResponse struct {
	Order *models.Order `json:"order"`
}
