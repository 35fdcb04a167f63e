// Package delivery runs one authenticated request end to end: the lifecycle action,
// the caller's refreshed order set, and a capability token scoped to that set.
package delivery

import (
	"context"
	"sort"

	"deliveryService/internal/apperr"
	"deliveryService/internal/auth"
	"deliveryService/internal/capability"
	"deliveryService/internal/geo"
	"deliveryService/internal/lifecycle"
	"deliveryService/internal/logx"
	"deliveryService/models"
	"deliveryService/repository"
)

// TokenRecorder observes issued capability tokens.
type TokenRecorder interface {
	TokenIssued(role models.Role)
}

type nopTokenRecorder struct{}

func (nopTokenRecorder) TokenIssued(models.Role) {}

// MapKeys are the third-party map provider credentials handed to clients.
type MapKeys struct {
	GoogleMaps string
	Mapbox     string
}

// CreateResult is returned to a customer after creating an order.
type CreateResult struct {
	OrderID          int64
	AblyToken        string
	GoogleMapsAPIKey string
}

// AssignResult is returned to a rider after claiming an order.
type AssignResult struct {
	Order       *models.Order
	AblyToken   string
	MapboxToken string
}

// Service wires the lifecycle, the assigned-order index and the token issuer.
type Service struct {
	orders *lifecycle.Service
	index  repository.AssignedIndexI
	issuer *capability.Issuer
	keys   capability.Keyring
	maps   MapKeys
	log    logx.Logger
	rec    TokenRecorder
}

// Options carries the optional collaborators of a Service.
type Options struct {
	Issuer   *capability.Issuer
	Logger   logx.Logger
	Recorder TokenRecorder
}

func New(orders *lifecycle.Service, index repository.AssignedIndexI, keys capability.Keyring, maps MapKeys, opts Options) *Service {
	s := &Service{orders: orders, index: index, keys: keys, maps: maps, issuer: opts.Issuer, log: opts.Logger, rec: opts.Recorder}
	if s.issuer == nil {
		s.issuer = capability.NewIssuer()
	}
	if s.log == nil {
		s.log = logx.Nop()
	}
	if s.rec == nil {
		s.rec = nopTokenRecorder{}
	}
	return s
}

// CreateOrder creates an order for a customer and returns a token covering all of
// the customer's orders, the new one included.
func (s *Service) CreateOrder(ctx context.Context, p *auth.Principal, from, to *geo.Point) (*CreateResult, error) {
	if err := p.Require(models.RoleCustomer); err != nil {
		return nil, err
	}
	// A missing signing key must fail before an id is consumed.
	if _, err := s.keys.ForRole(p.Role); err != nil {
		return nil, err
	}
	id, err := s.orders.Create(ctx, p.Username, from, to)
	if err != nil {
		return nil, err
	}
	token, err := s.tokenWith(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return &CreateResult{OrderID: id, AblyToken: token, GoogleMapsAPIKey: s.maps.GoogleMaps}, nil
}

// AssignOrder claims an order for a rider and returns the order with a token
// covering every order assigned to the rider.
func (s *Service) AssignOrder(ctx context.Context, p *auth.Principal, orderID int64) (*AssignResult, error) {
	if err := p.Require(models.RoleRider); err != nil {
		return nil, err
	}
	if _, err := s.keys.ForRole(p.Role); err != nil {
		return nil, err
	}
	o, err := s.orders.Assign(ctx, orderID, p.Username)
	if err != nil {
		return nil, err
	}
	token, err := s.tokenWith(ctx, p, o.ID)
	if err != nil {
		return nil, err
	}
	return &AssignResult{Order: o, AblyToken: token, MapboxToken: s.maps.Mapbox}, nil
}

// DeleteOrder removes an order created by the calling customer or assigned to the calling rider.
func (s *Service) DeleteOrder(ctx context.Context, p *auth.Principal, orderID int64) error {
	if err := p.Require(models.RoleCustomer, models.RoleRider); err != nil {
		return err
	}
	return s.orders.Delete(ctx, orderID, p.Role, p.Username)
}

// AblyToken returns a token scoped to the caller's current orders.
func (s *Service) AblyToken(ctx context.Context, p *auth.Principal) (string, error) {
	if err := p.Require(models.RoleCustomer, models.RoleRider); err != nil {
		return "", err
	}
	ids, err := s.index.ListAssigned(ctx, p.Role, p.Username)
	if err != nil {
		return "", apperr.New(apperr.Internal, "list orders for %s: %v", p.Username, err)
	}
	return s.issue(p, ids)
}

// GoogleMaps returns the Google Maps API key.
func (s *Service) GoogleMaps() (string, error) {
	if s.maps.GoogleMaps == "" {
		return "", apperr.New(apperr.Internal, "Google Maps API key is not configured")
	}
	return s.maps.GoogleMaps, nil
}

// Mapbox returns the Mapbox access token.
func (s *Service) Mapbox() (string, error) {
	if s.maps.Mapbox == "" {
		return "", apperr.New(apperr.Internal, "Mapbox access token is not configured")
	}
	return s.maps.Mapbox, nil
}

// tokenWith issues a token over the caller's indexed orders plus id. The index read
// is not linked to the write that produced id, so id is added if it is missing; a
// failed read degrades to a token for id alone.
func (s *Service) tokenWith(ctx context.Context, p *auth.Principal, id int64) (string, error) {
	ids, err := s.index.ListAssigned(ctx, p.Role, p.Username)
	if err != nil {
		s.log.Warn("list orders failed, scoping token to the current order", logx.String("username", p.Username), logx.Int64("order_id", id), logx.Err(err))
		ids = nil
	}
	return s.issue(p, union(ids, id))
}

func (s *Service) issue(p *auth.Principal, ids []int64) (string, error) {
	token, err := s.issuer.IssueFor(s.keys, p.Role, p.Username, ids)
	if err != nil {
		return "", err
	}
	s.rec.TokenIssued(p.Role)
	s.log.Debug("capability token issued", logx.String("username", p.Username), logx.String("role", string(p.Role)), logx.Int("orders", len(ids)))
	return token, nil
}

func union(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids)+1)
	seen := make(map[int64]struct{}, len(ids)+1)
	for _, v := range append(ids, id) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
