package dynamostore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"deliveryService/models"
	"deliveryService/repository"
)

// Users stores accounts in the users table keyed by username.
type Users struct {
	client DynamoDBAPI
	table  string
}

var _ repository.UserRepositoryI = (*Users)(nil)

func NewUsers(client DynamoDBAPI, table string) *Users {
	return &Users{client: client, table: table}
}

// Create puts the account unless the username is taken.
func (u *Users) Create(ctx context.Context, user *models.User) error {
	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = u.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           aws.String(u.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(username)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("user %q: %w", user.Username, repository.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("put user %q: %w", user.Username, err)
	}
	return nil
}

// GetByUsername returns (nil, nil) for unknown usernames.
func (u *Users) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	out, err := u.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      aws.String(u.table),
		Key:            map[string]types.AttributeValue{"username": &types.AttributeValueMemberS{Value: username}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var user models.User
	if err := attributevalue.UnmarshalMap(out.Item, &user); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &user, nil
}
