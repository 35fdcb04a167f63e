package grpcserver

import (
	"context"

	"deliveryService/internal/apperr"
	"deliveryService/internal/auth"
	"deliveryService/internal/lifecycle"
	"deliveryService/models"
	"deliveryService/repository"
)

// AdminServer implements AdminServiceServer.
type AdminServer struct {
	Accounts *auth.Accounts
	Orders   repository.OrderRepositoryI
}

var _ AdminServiceServer = (*AdminServer)(nil)

// CreateUser adds an account. Only admins may call it.
func (s *AdminServer) CreateUser(ctx context.Context, req *CreateUserRequest) (*CreateUserResponse, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	u, err := s.Accounts.CreateUser(ctx, p, req.Username, req.Password, req.Role)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CreateUserResponse{Username: u.Username, Role: u.Role}, nil
}

// GetOrder reads a single order for inspection.
func (s *AdminServer) GetOrder(ctx context.Context, req *GetOrderRequest) (*GetOrderResponse, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := p.Require(models.RoleAdmin); err != nil {
		return nil, toStatus(err)
	}
	id, err := lifecycle.ParseOrderID(req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		return nil, toStatus(apperr.New(apperr.Internal, "get order %d: %v", id, err))
	}
	if o == nil {
		return nil, toStatus(apperr.New(apperr.NotFound, "order %d does not exist", id))
	}
	return &GetOrderResponse{Order: o}, nil
}
