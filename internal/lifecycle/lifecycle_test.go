package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"deliveryService/internal/apperr"
	"deliveryService/internal/geo"
	"deliveryService/internal/logx"
	"deliveryService/internal/testutil"
	"deliveryService/models"
	"deliveryService/repository"
)

type countingRecorder struct {
	mu          sync.Mutex
	created     int
	assignments map[repository.Outcome]int
	deletions   map[repository.Outcome]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{assignments: map[repository.Outcome]int{}, deletions: map[repository.Outcome]int{}}
}

func (r *countingRecorder) OrderCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
}

func (r *countingRecorder) OrderAssigned(o repository.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments[o]++
}

func (r *countingRecorder) OrderDeleted(o repository.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletions[o]++
}

func newTestService(t *testing.T) (*Service, *sql.DB, *countingRecorder) {
	t.Helper()
	d := testutil.OpenTestDB(t, "lifecycle")
	rec := newCountingRecorder()
	return New(repository.NewOrderRepository(d), logx.Nop(), rec), d, rec
}

func TestScenario(t *testing.T) {
	s, _, rec := newTestService(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "alice", geo.NewPoint(0, 0), geo.NewPoint(1, 1))
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	o, err := s.Assign(ctx, 1, "bob")
	require.NoError(t, err)
	require.Equal(t, "bob", o.RiderUsername)
	require.Equal(t, "alice", o.CustomerUsername)

	_, err = s.Assign(ctx, 1, "carol")
	require.ErrorIs(t, err, apperr.Conflict)
	require.Equal(t, "order 1 is already assigned to another rider", apperr.Message(err))

	require.NoError(t, s.Delete(ctx, 1, models.RoleCustomer, "alice"))

	_, err = s.Assign(ctx, 1, "bob")
	require.ErrorIs(t, err, apperr.NotFound)
	require.Equal(t, "order 1 does not exist", apperr.Message(err))

	require.Equal(t, 1, rec.created)
	require.Equal(t, 1, rec.assignments[repository.OutcomeApplied])
	require.Equal(t, 1, rec.assignments[repository.OutcomeConflict])
	require.Equal(t, 1, rec.assignments[repository.OutcomeNotFound])
	require.Equal(t, 1, rec.deletions[repository.OutcomeApplied])
}

func TestCreateLatitudeBoundary(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "alice", geo.NewPoint(90.0, 0), geo.NewPoint(0, 0))
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	_, err = s.Create(ctx, "alice", geo.NewPoint(90.0001, 0), geo.NewPoint(0, 0))
	require.ErrorIs(t, err, apperr.InvalidArgument)
	require.Equal(t, "from.latitude", apperr.Field(err))
	require.Contains(t, apperr.Message(err), "latitude")
	require.Contains(t, apperr.Message(err), "90.0001")
}

func TestInvalidInputDoesNotConsumeID(t *testing.T) {
	s, d, rec := newTestService(t)
	ctx := context.Background()

	invalid := []struct {
		name     string
		from, to *geo.Point
		field    string
	}{
		{name: "absent from", from: nil, to: geo.NewPoint(0, 0), field: "from"},
		{name: "absent to", from: geo.NewPoint(0, 0), to: nil, field: "to"},
		{name: "missing longitude", from: &geo.Point{Latitude: new(float64)}, to: geo.NewPoint(0, 0), field: "from.longitude"},
		{name: "longitude out of range", from: geo.NewPoint(0, 0), to: geo.NewPoint(0, -180.5), field: "to.longitude"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, "alice", tt.from, tt.to)
			require.ErrorIs(t, err, apperr.InvalidArgument)
			require.Equal(t, tt.field, apperr.Field(err))
		})
	}

	var n int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM globals`).Scan(&n))
	require.Zero(t, n)
	require.Zero(t, rec.created)

	id, err := s.Create(ctx, "alice", geo.NewPoint(0, 0), geo.NewPoint(1, 1))
	require.NoError(t, err)
	require.Equal(t, int64(1), id)
}

func TestCreateCorruptedCounterIsInternal(t *testing.T) {
	s, d, _ := newTestService(t)
	_, err := d.Exec(`INSERT INTO globals (name, next_id) VALUES ('orders', -3)`)
	require.NoError(t, err)

	_, err = s.Create(context.Background(), "alice", geo.NewPoint(0, 0), geo.NewPoint(1, 1))
	require.ErrorIs(t, err, apperr.Internal)

	var n int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&n))
	require.Zero(t, n)
}

func TestCreateMonotonicUnderConcurrency(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := s.Create(ctx, "alice", geo.NewPoint(0, 0), geo.NewPoint(1, 1))
	require.NoError(t, err)

	const n = 12
	ids := make([]int64, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = s.Create(ctx, fmt.Sprintf("customer-%d", i), geo.NewPoint(0, 0), geo.NewPoint(1, 1))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		require.Equal(t, first+int64(i)+1, id)
	}
}

func TestAssignConcurrentRidersSingleWinner(t *testing.T) {
	s, _, rec := newTestService(t)
	ctx := context.Background()
	id, err := s.Create(ctx, "alice", geo.NewPoint(0, 0), geo.NewPoint(1, 1))
	require.NoError(t, err)

	const n = 10
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Assign(ctx, id, fmt.Sprintf("rider-%d", i))
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "two riders won the claim")
			winner = i
			continue
		}
		require.ErrorIs(t, err, apperr.Conflict)
	}
	require.NotEqual(t, -1, winner)

	o, err := s.Assign(ctx, id, fmt.Sprintf("rider-%d", winner))
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("rider-%d", winner), o.RiderUsername)
	require.Equal(t, 1, rec.assignments[repository.OutcomeApplied])
	require.Equal(t, n-1, rec.assignments[repository.OutcomeConflict])
	require.Equal(t, 1, rec.assignments[repository.OutcomeUnchanged])
}

func TestAssignIsIdempotent(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()
	id, err := s.Create(ctx, "alice", geo.NewPoint(0, 0), geo.NewPoint(1, 1))
	require.NoError(t, err)

	first, err := s.Assign(ctx, id, "bob")
	require.NoError(t, err)
	second, err := s.Assign(ctx, id, "bob")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestAssignNegativeID(t *testing.T) {
	s, _, _ := newTestService(t)
	_, err := s.Assign(context.Background(), -1, "bob")
	require.ErrorIs(t, err, apperr.NotFound)
	require.Equal(t, "order -1 does not exist", apperr.Message(err))
}

func TestDeleteRequiresRelationship(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()
	id, err := s.Create(ctx, "alice", geo.NewPoint(0, 0), geo.NewPoint(1, 1))
	require.NoError(t, err)

	err = s.Delete(ctx, id, models.RoleRider, "bob")
	require.ErrorIs(t, err, apperr.Conflict)
	require.Equal(t, fmt.Sprintf("order %d is not assigned to this rider", id), apperr.Message(err))

	_, err = s.Assign(ctx, id, "bob")
	require.NoError(t, err)

	for _, actor := range []struct {
		role models.Role
		name string
	}{
		{models.RoleCustomer, "mallory"},
		{models.RoleCustomer, "bob"},
		{models.RoleRider, "alice"},
		{models.RoleRider, "carol"},
	} {
		err := s.Delete(ctx, id, actor.role, actor.name)
		require.ErrorIs(t, err, apperr.Conflict, "%s %s", actor.role, actor.name)
		require.Contains(t, apperr.Message(err), string(actor.role))
	}

	err = s.Delete(ctx, id, models.RoleAdmin, "admin")
	require.ErrorIs(t, err, apperr.Unauthorized)

	require.NoError(t, s.Delete(ctx, id, models.RoleRider, "bob"))
	err = s.Delete(ctx, id, models.RoleRider, "bob")
	require.ErrorIs(t, err, apperr.NotFound)
}

func TestDeletedIDIsNotReused(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()
	id, err := s.Create(ctx, "alice", geo.NewPoint(0, 0), geo.NewPoint(1, 1))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id, models.RoleCustomer, "alice"))

	next, err := s.Create(ctx, "alice", geo.NewPoint(0, 0), geo.NewPoint(1, 1))
	require.NoError(t, err)
	require.Greater(t, next, id)
}

func TestParseOrderID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr error
	}{
		{raw: "0", want: 0},
		{raw: "42", want: 42},
		{raw: " 7 ", want: 7},
		{raw: "-1", wantErr: apperr.NotFound},
		{raw: "abc", wantErr: apperr.InvalidArgument},
		{raw: "1.5", wantErr: apperr.InvalidArgument},
		{raw: "", wantErr: apperr.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseOrderID(tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
