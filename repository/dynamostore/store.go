package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"deliveryService/internal/apperr"
	"deliveryService/models"
	"deliveryService/repository"
)

const defaultMaxAttempts = 32

// ErrContention is returned when an operation keeps losing optimistic races
// for longer than the store's retry budget.
var ErrContention = errors.New("too much contention")

type location struct {
	Latitude  float64 `dynamodbav:"latitude"`
	Longitude float64 `dynamodbav:"longitude"`
}

type orderItem struct {
	ID               string   `dynamodbav:"id"`
	CustomerUsername string   `dynamodbav:"customerUsername"`
	RiderUsername    string   `dynamodbav:"riderUsername,omitempty"`
	From             location `dynamodbav:"from"`
	To               location `dynamodbav:"to"`
}

type counterItem struct {
	Name   string `dynamodbav:"name"`
	NextID int64  `dynamodbav:"nextId"`
}

// Store is the DynamoDB implementation of the order repository and assigned-order index.
type Store struct {
	client      DynamoDBAPI
	tables      Tables
	maxAttempts int
	backoff     time.Duration
}

var (
	_ repository.OrderRepositoryI = (*Store)(nil)
	_ repository.AssignedIndexI   = (*Store)(nil)
)

// NewStore creates a Store over client and tables.
func NewStore(client DynamoDBAPI, tables Tables) *Store {
	return &Store{client: client, tables: tables, maxAttempts: defaultMaxAttempts, backoff: 5 * time.Millisecond}
}

// Create reads the counter, then writes the advanced counter and the new order in one
// transaction conditioned on the counter value read. Losing the counter race retries;
// an occupied order id is a hard ErrAlreadyExists.
func (s *Store) Create(ctx context.Context, customer string, from, to models.Location) (int64, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := s.pause(ctx, attempt); err != nil {
			return 0, err
		}
		id, counterPut, err := s.allocate(ctx)
		if err != nil {
			return 0, err
		}
		item, err := attributevalue.MarshalMap(orderItem{
			ID:               strconv.FormatInt(id, 10),
			CustomerUsername: customer,
			From:             location(from),
			To:               location(to),
		})
		if err != nil {
			return 0, fmt.Errorf("marshal order: %w", err)
		}
		_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
			TransactItems: []types.TransactWriteItem{
				{Put: counterPut},
				{Put: &types.Put{
					TableName:           aws.String(s.tables.Orders),
					Item:                item,
					ConditionExpression: aws.String("attribute_not_exists(id)"),
				}},
			},
		})
		if err == nil {
			return id, nil
		}
		var tce *types.TransactionCanceledException
		if !errors.As(err, &tce) {
			return 0, fmt.Errorf("create order %d: %w", id, err)
		}
		switch {
		case reasonCode(tce, 0) == "ConditionalCheckFailed", reasonCode(tce, 0) == "TransactionConflict":
			continue
		case reasonCode(tce, 1) == "ConditionalCheckFailed":
			return 0, fmt.Errorf("order %d: %w", id, repository.ErrAlreadyExists)
		case reasonCode(tce, 1) == "TransactionConflict":
			continue
		default:
			return 0, fmt.Errorf("create order %d: %w", id, err)
		}
	}
	return 0, fmt.Errorf("create order: %w", ErrContention)
}

// allocate reads the id counter and returns the id to use together with the
// conditional Put that advances it. A missing counter starts at 1; a value below 1
// is corrupted state and is reported, never repaired.
func (s *Store) allocate(ctx context.Context) (int64, *types.Put, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      aws.String(s.tables.Globals),
		Key:            map[string]types.AttributeValue{"name": &types.AttributeValueMemberS{Value: repository.OrdersSequenceName}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, nil, fmt.Errorf("read sequence: %w", err)
	}
	put := &types.Put{TableName: aws.String(s.tables.Globals)}
	id := int64(1)
	if len(out.Item) == 0 {
		put.ConditionExpression = aws.String("attribute_not_exists(#name)")
		put.ExpressionAttributeNames = map[string]string{"#name": "name"}
	} else {
		var c counterItem
		if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
			return 0, nil, fmt.Errorf("unmarshal sequence: %w", err)
		}
		if c.NextID < 1 {
			return 0, nil, apperr.New(apperr.Internal, "database state invalid: %s/%s holds nextId %d", s.tables.Globals, repository.OrdersSequenceName, c.NextID)
		}
		id = c.NextID
		put.ConditionExpression = aws.String("nextId = :expected")
		put.ExpressionAttributeValues = map[string]types.AttributeValue{":expected": number(id)}
	}
	item, err := attributevalue.MarshalMap(counterItem{Name: repository.OrdersSequenceName, NextID: id + 1})
	if err != nil {
		return 0, nil, fmt.Errorf("marshal sequence: %w", err)
	}
	put.Item = item
	return id, put, nil
}

// Get fetches an order with a strongly consistent read. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id int64) (*models.Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      aws.String(s.tables.Orders),
		Key:            orderKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return decodeOrder(out.Item)
}

// ConditionalAssign decides on a consistent read and writes the rider only if the
// order still exists and is still unassigned. A failed condition means the state
// moved underneath; the decision is retaken on a fresh read.
func (s *Store) ConditionalAssign(ctx context.Context, id int64, rider string) (repository.AssignResult, error) {
	if rider == "" {
		return repository.AssignResult{}, apperr.Invalid("riderUsername", "riderUsername is empty")
	}
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := s.pause(ctx, attempt); err != nil {
			return repository.AssignResult{}, err
		}
		o, err := s.Get(ctx, id)
		if err != nil {
			return repository.AssignResult{}, err
		}
		switch {
		case o == nil:
			return repository.AssignResult{Outcome: repository.OutcomeNotFound}, nil
		case o.Assigned() && o.RiderUsername == rider:
			return repository.AssignResult{Outcome: repository.OutcomeUnchanged, Order: o}, nil
		case o.Assigned():
			return repository.AssignResult{Outcome: repository.OutcomeConflict, Order: o}, nil
		}
		out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
			TableName:                 aws.String(s.tables.Orders),
			Key:                       orderKey(id),
			UpdateExpression:          aws.String("SET riderUsername = :rider"),
			ConditionExpression:       aws.String("attribute_exists(id) AND attribute_not_exists(riderUsername)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":rider": &types.AttributeValueMemberS{Value: rider}},
			ReturnValues:              types.ReturnValueAllNew,
		})
		if isConditionFailed(err) {
			continue
		}
		if err != nil {
			return repository.AssignResult{}, fmt.Errorf("assign order %d: %w", id, err)
		}
		assigned, err := decodeOrder(out.Attributes)
		if err != nil {
			return repository.AssignResult{}, err
		}
		return repository.AssignResult{Outcome: repository.OutcomeApplied, Order: assigned}, nil
	}
	return repository.AssignResult{}, fmt.Errorf("assign order %d: %w", id, ErrContention)
}

// ConditionalDelete removes the order if actor is still the username allowed for role.
func (s *Store) ConditionalDelete(ctx context.Context, id int64, role models.Role, actor string) (repository.Outcome, error) {
	field := ownerAttribute(role)
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := s.pause(ctx, attempt); err != nil {
			return 0, err
		}
		o, err := s.Get(ctx, id)
		if err != nil {
			return 0, err
		}
		if o == nil {
			return repository.OutcomeNotFound, nil
		}
		if allowed := o.AllowedUsername(role); field == "" || allowed == "" || allowed != actor {
			return repository.OutcomeConflict, nil
		}
		_, err = s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
			TableName:                 aws.String(s.tables.Orders),
			Key:                       orderKey(id),
			ConditionExpression:       aws.String("#owner = :actor"),
			ExpressionAttributeNames:  map[string]string{"#owner": field},
			ExpressionAttributeValues: map[string]types.AttributeValue{":actor": &types.AttributeValueMemberS{Value: actor}},
		})
		if isConditionFailed(err) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("delete order %d: %w", id, err)
		}
		return repository.OutcomeApplied, nil
	}
	return 0, fmt.Errorf("delete order %d: %w", id, ErrContention)
}

// ListAssigned scans the orders table for ids tied to username under role.
func (s *Store) ListAssigned(ctx context.Context, role models.Role, username string) ([]int64, error) {
	field := ownerAttribute(role)
	if field == "" {
		return nil, fmt.Errorf("list assigned: no orders are tied to role %q", role)
	}
	p := dyn.NewScanPaginator(s.client, &dyn.ScanInput{
		TableName:                 aws.String(s.tables.Orders),
		FilterExpression:          aws.String("#owner = :username"),
		ProjectionExpression:      aws.String("id"),
		ExpressionAttributeNames:  map[string]string{"#owner": field},
		ExpressionAttributeValues: map[string]types.AttributeValue{":username": &types.AttributeValueMemberS{Value: username}},
		ConsistentRead:            aws.Bool(true),
	})
	var ids []int64
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list assigned: %w", err)
		}
		for _, item := range page.Items {
			var row struct {
				ID string `dynamodbav:"id"`
			}
			if err := attributevalue.UnmarshalMap(item, &row); err != nil {
				return nil, fmt.Errorf("unmarshal order id: %w", err)
			}
			id, err := strconv.ParseInt(row.ID, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("order key %q: %w", row.ID, err)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// pause backs off before every retry after the first attempt.
func (s *Store) pause(ctx context.Context, attempt int) error {
	if attempt == 0 {
		return ctx.Err()
	}
	d := time.Duration(attempt) * s.backoff
	if d > 50*time.Millisecond {
		d = 50 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func ownerAttribute(role models.Role) string {
	switch role {
	case models.RoleCustomer:
		return "customerUsername"
	case models.RoleRider:
		return "riderUsername"
	default:
		return ""
	}
}

func orderKey(id int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: strconv.FormatInt(id, 10)}}
}

func number(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func decodeOrder(item map[string]types.AttributeValue) (*models.Order, error) {
	var it orderItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	id, err := strconv.ParseInt(it.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("order key %q: %w", it.ID, err)
	}
	return &models.Order{
		ID:               id,
		CustomerUsername: it.CustomerUsername,
		RiderUsername:    it.RiderUsername,
		From:             models.Location(it.From),
		To:               models.Location(it.To),
	}, nil
}

func reasonCode(tce *types.TransactionCanceledException, i int) string {
	if i >= len(tce.CancellationReasons) {
		return ""
	}
	return aws.ToString(tce.CancellationReasons[i].Code)
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
