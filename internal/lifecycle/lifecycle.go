// Package lifecycle implements the order state machine: creation by a customer,
// a single claim by a rider, and deletion by either party. Every transition is one
// conditional operation on the order store; conflicts come back as outcomes and are
// translated here into apperr kinds with messages naming the order.
package lifecycle

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"deliveryService/internal/apperr"
	"deliveryService/internal/geo"
	"deliveryService/internal/logx"
	"deliveryService/models"
	"deliveryService/repository"
)

// Recorder observes lifecycle outcomes.
type Recorder interface {
	OrderCreated()
	OrderAssigned(outcome repository.Outcome)
	OrderDeleted(outcome repository.Outcome)
}

type nopRecorder struct{}

func (nopRecorder) OrderCreated()                    {}
func (nopRecorder) OrderAssigned(repository.Outcome) {}
func (nopRecorder) OrderDeleted(repository.Outcome)  {}

// Service applies order transitions against a store.
type Service struct {
	store     repository.OrderRepositoryI
	validator *geo.Validator
	log       logx.Logger
	rec       Recorder
}

// New builds a Service. A nil logger or recorder disables that concern.
func New(store repository.OrderRepositoryI, log logx.Logger, rec Recorder) *Service {
	if log == nil {
		log = logx.Nop()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Service{store: store, validator: geo.NewValidator(), log: log, rec: rec}
}

// Create validates both points, then allocates an id and stores the order owned by
// customer. Invalid input never reaches the store, so it never consumes an id.
func (s *Service) Create(ctx context.Context, customer string, from, to *geo.Point) (int64, error) {
	if customer == "" {
		return 0, apperr.Invalid("customerUsername", "customerUsername is empty")
	}
	src, err := s.validator.Validate("from", from)
	if err != nil {
		return 0, err
	}
	dst, err := s.validator.Validate("to", to)
	if err != nil {
		return 0, err
	}

	id, err := s.store.Create(ctx, customer, src, dst)
	if err != nil {
		s.log.Error("create order failed", logx.String("customer", customer), logx.Err(err))
		return 0, fault(err, "create order for %s", customer)
	}
	s.rec.OrderCreated()
	s.log.Info("order created", logx.Int64("order_id", id), logx.String("customer", customer))
	return id, nil
}

// Assign claims order id for rider. Repeating a successful claim is a no-op that
// returns the same record.
func (s *Service) Assign(ctx context.Context, id int64, rider string) (*models.Order, error) {
	if rider == "" {
		return nil, apperr.Invalid("riderUsername", "riderUsername is empty")
	}
	if id < 0 {
		return nil, notFound(id)
	}
	res, err := s.store.ConditionalAssign(ctx, id, rider)
	if err != nil {
		s.log.Error("assign order failed", logx.Int64("order_id", id), logx.String("rider", rider), logx.Err(err))
		return nil, fault(err, "assign order %d", id)
	}
	s.rec.OrderAssigned(res.Outcome)

	switch res.Outcome {
	case repository.OutcomeApplied, repository.OutcomeUnchanged:
		s.log.Info("order assigned", logx.Int64("order_id", id), logx.String("rider", rider), logx.String("outcome", res.Outcome.String()))
		return res.Order, nil
	case repository.OutcomeNotFound:
		return nil, notFound(id)
	case repository.OutcomeConflict:
		s.log.Warn("order already assigned", logx.Int64("order_id", id), logx.String("rider", rider))
		return nil, apperr.New(apperr.Conflict, "order %d is already assigned to another rider", id)
	default:
		return nil, apperr.New(apperr.Internal, "assign order %d: unexpected outcome %s", id, res.Outcome)
	}
}

// Delete removes order id on behalf of actor. Customers may delete the orders they
// created, riders the orders assigned to them.
func (s *Service) Delete(ctx context.Context, id int64, role models.Role, actor string) error {
	if role != models.RoleCustomer && role != models.RoleRider {
		return apperr.New(apperr.Unauthorized, "only customers and riders may delete orders")
	}
	if id < 0 {
		return notFound(id)
	}
	outcome, err := s.store.ConditionalDelete(ctx, id, role, actor)
	if err != nil {
		s.log.Error("delete order failed", logx.Int64("order_id", id), logx.String("actor", actor), logx.Err(err))
		return fault(err, "delete order %d", id)
	}
	s.rec.OrderDeleted(outcome)

	switch outcome {
	case repository.OutcomeApplied:
		s.log.Info("order deleted", logx.Int64("order_id", id), logx.String("role", string(role)), logx.String("actor", actor))
		return nil
	case repository.OutcomeNotFound:
		return notFound(id)
	case repository.OutcomeConflict:
		s.log.Warn("order delete refused", logx.Int64("order_id", id), logx.String("role", string(role)), logx.String("actor", actor))
		return apperr.New(apperr.Conflict, "order %d is not assigned to this %s", id, role)
	default:
		return apperr.New(apperr.Internal, "delete order %d: unexpected outcome %s", id, outcome)
	}
}

// ParseOrderID converts a path or request value into an order id. Non-numeric input
// is InvalidArgument; a negative number cannot name an order and is NotFound.
func ParseOrderID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, apperr.Invalid("orderId", "orderId %q is not an integer", raw)
	}
	if id < 0 {
		return 0, notFound(id)
	}
	return id, nil
}

func notFound(id int64) error {
	return apperr.New(apperr.NotFound, "order %d does not exist", id)
}

// fault keeps classified errors and turns anything else into an Internal error.
func fault(err error, format string, args ...any) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.New(apperr.Internal, format+": %v", append(args, err)...)
}
