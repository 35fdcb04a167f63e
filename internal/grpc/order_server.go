package grpcserver

import (
	"context"

	"deliveryService/internal/auth"
	"deliveryService/internal/delivery"
	"deliveryService/internal/lifecycle"
)

// Server implements DeliveryServer on top of the delivery service.
type Server struct {
	Delivery *delivery.Service
}

var _ DeliveryServer = (*Server)(nil)

// CreateOrder creates an order for the calling customer.
func (s *Server) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.Delivery.CreateOrder(ctx, p, req.From, req.To)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &CreateOrderResponse{OrderID: res.OrderID, Ably: AblyToken{Token: res.AblyToken}}
	if res.GoogleMapsAPIKey != "" {
		out.GoogleMaps = &GoogleMapsKey{APIKey: res.GoogleMapsAPIKey}
	}
	return out, nil
}

// AssignOrder claims an order for the calling rider.
func (s *Server) AssignOrder(ctx context.Context, req *AssignOrderRequest) (*AssignOrderResponse, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	id, err := lifecycle.ParseOrderID(req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.Delivery.AssignOrder(ctx, p, id)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &AssignOrderResponse{Order: res.Order, Ably: AblyToken{Token: res.AblyToken}}
	if res.MapboxToken != "" {
		out.Mapbox = &MapboxToken{Token: res.MapboxToken}
	}
	return out, nil
}

// DeleteOrder removes an order owned by or assigned to the caller.
func (s *Server) DeleteOrder(ctx context.Context, req *DeleteOrderRequest) (*DeleteOrderResponse, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	id, err := lifecycle.ParseOrderID(req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.Delivery.DeleteOrder(ctx, p, id); err != nil {
		return nil, toStatus(err)
	}
	return &DeleteOrderResponse{}, nil
}

func (s *Server) GetAblyToken(ctx context.Context, _ *AblyTokenRequest) (*AblyToken, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	token, err := s.Delivery.AblyToken(ctx, p)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AblyToken{Token: token}, nil
}

func (s *Server) GetGoogleMaps(ctx context.Context, _ *GoogleMapsRequest) (*GoogleMapsKey, error) {
	key, err := s.Delivery.GoogleMaps()
	if err != nil {
		return nil, toStatus(err)
	}
	return &GoogleMapsKey{APIKey: key}, nil
}

func (s *Server) GetMapbox(ctx context.Context, _ *MapboxRequest) (*MapboxToken, error) {
	token, err := s.Delivery.Mapbox()
	if err != nil {
		return nil, toStatus(err)
	}
	return &MapboxToken{Token: token}, nil
}
