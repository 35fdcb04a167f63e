package repository

import (
	"context"
	"reflect"
	"testing"

	"deliveryService/models"
)

func TestListAssigned_FiltersByRole(t *testing.T) {
	repo, _ := newOrderRepo(t, "list_assigned")
	ctx := context.Background()

	a1, _ := repo.Create(ctx, "alice", origin, dest)
	a2, _ := repo.Create(ctx, "alice", origin, dest)
	d1, _ := repo.Create(ctx, "dave", origin, dest)
	if _, err := repo.ConditionalAssign(ctx, a2, "bob"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := repo.ConditionalAssign(ctx, d1, "bob"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	got, err := repo.ListAssigned(ctx, models.RoleCustomer, "alice")
	if err != nil {
		t.Fatalf("list alice: %v", err)
	}
	if !reflect.DeepEqual(got, []int64{a1, a2}) {
		t.Fatalf("alice orders = %v", got)
	}

	got, err = repo.ListAssigned(ctx, models.RoleRider, "bob")
	if err != nil {
		t.Fatalf("list bob: %v", err)
	}
	if !reflect.DeepEqual(got, []int64{a2, d1}) {
		t.Fatalf("bob orders = %v", got)
	}

	got, err = repo.ListAssigned(ctx, models.RoleRider, "alice")
	if err != nil || len(got) != 0 {
		t.Fatalf("alice as rider = %v %v", got, err)
	}

	if _, err := repo.ListAssigned(ctx, models.RoleAdmin, "root"); err == nil {
		t.Fatalf("expected error for admin role")
	}
}
