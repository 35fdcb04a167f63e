package dynamostore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"deliveryService/models"
	"deliveryService/repository"
)

func TestUsers(t *testing.T) {
	u := NewUsers(newFakeDynamo(), "users")
	ctx := context.Background()

	got, err := u.GetByUsername(ctx, "rita")
	require.NoError(t, err)
	require.Nil(t, got)

	rita := &models.User{Username: "rita", Role: models.RoleRider, PasswordHash: "aGFzaA==", Salt: "c2FsdA=="}
	require.NoError(t, u.Create(ctx, rita))

	got, err = u.GetByUsername(ctx, "rita")
	require.NoError(t, err)
	require.Equal(t, rita, got)

	err = u.Create(ctx, &models.User{Username: "rita", Role: models.RoleCustomer})
	require.ErrorIs(t, err, repository.ErrAlreadyExists)
}
