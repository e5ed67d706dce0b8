package occupancy_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/club-engine/ledger"
	"github.com/courtside/club-engine/occupancy"
	"github.com/courtside/club-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type ownerPolicy struct{}

func (ownerPolicy) HasOwnerPrivilege(string) bool { return true }

var testDay = ledger.MustDayKey("2026-03-10")

func newTestManager(t *testing.T) (*occupancy.Manager, *ledger.Controller, *memory.Store) {
	t.Helper()
	store := memory.New()
	ctrl := ledger.NewController(store, ownerPolicy{}, store, time.UTC)
	at := testDay.Time(time.UTC).Add(14 * time.Hour)
	ctrl.SetClock(func() time.Time { return at })

	require.NoError(t, store.EnsureCourts(context.Background(), []occupancy.Court{
		{ID: "court-turf", Name: "Turf Court"},
		{ID: "court-1", Name: "Court 1"},
		{ID: "court-2", Name: "Court 2"},
	}))
	require.NoError(t, ctrl.OpenDay(context.Background(), testDay, "ana"))

	return occupancy.NewManager(store, ctrl, store), ctrl, store
}

func money(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// =============================================================================
// BOOKING
// =============================================================================

func TestBook_OccupyPostsRentalAndFlipsState(t *testing.T) {
	mgr, _, store := newTestManager(t)
	ctx := context.Background()

	court, res, err := mgr.Book(ctx, occupancy.BookingRequest{
		CourtID: "court-1",
		Client:  "Garcia",
		Day:     testDay,
		Start:   "14:00",
		Amount:  money("240.00"),
		Occupy:  true,
		Actor:   "luis",
	})
	require.NoError(t, err)
	require.NotNil(t, court)
	assert.Nil(t, res)

	assert.Equal(t, occupancy.StateOccupied, court.State)
	require.NotNil(t, court.Occupancy)
	assert.Equal(t, "Garcia", court.Occupancy.Client)
	assert.Equal(t, testDay, court.Occupancy.Day)

	// The rental landed in the open day's ledger
	movements, err := store.MovementsByDay(ctx, testDay)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, ledger.KindRental, movements[0].Kind)
	assert.True(t, movements[0].Amount.Equal(money("240.00")))

	detail, ok := movements[0].Detail.(ledger.RentalDetail)
	require.True(t, ok)
	assert.Equal(t, "court-1", detail.CourtID)
}

func TestBook_OccupiedCourtRejected(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	_, _, err := mgr.Book(ctx, occupancy.BookingRequest{
		CourtID: "court-1", Client: "Garcia", Day: testDay, Occupy: true, Actor: "luis",
	})
	require.NoError(t, err)

	_, _, err = mgr.Book(ctx, occupancy.BookingRequest{
		CourtID: "court-1", Client: "Lopez", Day: testDay, Occupy: true, Actor: "luis",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrCourtAlreadyOccupied)

	var occErr *occupancy.CourtOccupiedError
	require.ErrorAs(t, err, &occErr)
	assert.Equal(t, "court-1", occErr.CourtID)
	assert.Equal(t, "Garcia", occErr.Client)
}

func TestBook_ConcurrentSameCourtOneWinner(t *testing.T) {
	// GIVEN: many clients racing for the same free court
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	const racers = 12
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = mgr.Book(ctx, occupancy.BookingRequest{
				CourtID: "court-2", Client: "Racer", Day: testDay,
				Amount: money("240.00"), Occupy: true, Actor: "luis",
			})
		}(i)
	}
	wg.Wait()

	// THEN: exactly one booking succeeded, the rest saw the conflict
	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ledger.ErrCourtAlreadyOccupied)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestBook_NoOpenDayLeavesCourtFree(t *testing.T) {
	// GIVEN: the open day just closed
	mgr, ctrl, store := newTestManager(t)
	ctx := context.Background()
	_, err := ctrl.CloseDay(ctx, testDay, "ana")
	require.NoError(t, err)

	// WHEN: someone tries to occupy with a paid rental
	_, _, err = mgr.Book(ctx, occupancy.BookingRequest{
		CourtID: "court-1", Client: "Garcia", Day: testDay,
		Amount: money("240.00"), Occupy: true, Actor: "luis",
	})

	// THEN: rejected, no movement posted, court untouched
	assert.ErrorIs(t, err, ledger.ErrDayNotOpen)

	court, err := store.Court(ctx, "court-1")
	require.NoError(t, err)
	assert.Equal(t, occupancy.StateFree, court.State)
}

func TestBook_FutureReservationDoesNotTouchLiveState(t *testing.T) {
	mgr, _, store := newTestManager(t)
	ctx := context.Background()
	future := ledger.MustDayKey("2026-03-20")

	court, res, err := mgr.Book(ctx, occupancy.BookingRequest{
		CourtID: "court-1", Client: "Garcia", Day: future,
		Start: "18:00", End: "19:00", Occupy: false, Actor: "luis",
	})
	require.NoError(t, err)
	assert.Nil(t, court)
	require.NotNil(t, res)
	assert.Equal(t, future, res.Day)

	// Live state stays free, no ledger entry
	got, err := store.Court(ctx, "court-1")
	require.NoError(t, err)
	assert.Equal(t, occupancy.StateFree, got.State)

	movements, err := store.MovementsByDay(ctx, testDay)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestBook_ReservationSupersededByKey(t *testing.T) {
	// A second reservation for the same (court, day) replaces the first.
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()
	future := ledger.MustDayKey("2026-03-20")

	_, _, err := mgr.Book(ctx, occupancy.BookingRequest{
		CourtID: "court-1", Client: "Garcia", Day: future, Occupy: false, Actor: "luis",
	})
	require.NoError(t, err)
	_, _, err = mgr.Book(ctx, occupancy.BookingRequest{
		CourtID: "court-1", Client: "Lopez", Day: future, Occupy: false, Actor: "luis",
	})
	require.NoError(t, err)

	reservations, err := mgr.ReservationsByDay(ctx, future)
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, "Lopez", reservations[0].Client)
}

func TestBook_UnknownCourt(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	_, _, err := mgr.Book(context.Background(), occupancy.BookingRequest{
		CourtID: "court-99", Client: "Garcia", Day: testDay, Occupy: true, Actor: "luis",
	})
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// UPDATE AND RELEASE
// =============================================================================

func TestUpdateOccupancy(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	_, _, err := mgr.Book(ctx, occupancy.BookingRequest{
		CourtID: "court-1", Client: "Garcia", Day: testDay, Start: "14:00",
		Occupy: true, Actor: "luis",
	})
	require.NoError(t, err)

	newClient := "Lopez"
	court, err := mgr.UpdateOccupancy(ctx, "court-1", occupancy.OccupancyPatch{Client: &newClient})
	require.NoError(t, err)
	assert.Equal(t, "Lopez", court.Occupancy.Client)
	assert.Equal(t, "14:00", court.Occupancy.Start, "untouched field survives")
}

func TestUpdateOccupancy_FreeCourtRejected(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	client := "Lopez"
	_, err := mgr.UpdateOccupancy(context.Background(), "court-1",
		occupancy.OccupancyPatch{Client: &client})
	assert.ErrorIs(t, err, ledger.ErrNoActiveOccupancy)
}

func TestRelease_IdempotentAndClearsReservation(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	_, _, err := mgr.Book(ctx, occupancy.BookingRequest{
		CourtID: "court-1", Client: "Garcia", Day: testDay, Occupy: true, Actor: "luis",
	})
	require.NoError(t, err)

	court, err := mgr.Release(ctx, "court-1", "luis")
	require.NoError(t, err)
	assert.Equal(t, occupancy.StateFree, court.State)
	assert.Nil(t, court.Occupancy)

	// Releasing again is a quiet no-op
	court, err = mgr.Release(ctx, "court-1", "luis")
	require.NoError(t, err)
	assert.Equal(t, occupancy.StateFree, court.State)

	// The day's reservation for the vacated slot is gone
	reservations, err := mgr.ReservationsByDay(ctx, testDay)
	require.NoError(t, err)
	assert.Empty(t, reservations)

	// The court can be booked again
	_, _, err = mgr.Book(ctx, occupancy.BookingRequest{
		CourtID: "court-1", Client: "Lopez", Day: testDay, Occupy: true, Actor: "luis",
	})
	require.NoError(t, err)
}

func TestOccupiedOn(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	_, _, err := mgr.Book(ctx, occupancy.BookingRequest{
		CourtID: "court-1", Client: "Garcia", Day: testDay, Occupy: true, Actor: "luis",
	})
	require.NoError(t, err)

	occupied, err := mgr.OccupiedOn(ctx, testDay)
	require.NoError(t, err)
	require.Len(t, occupied, 1)
	assert.Equal(t, "court-1", occupied[0].ID)

	occupied, err = mgr.OccupiedOn(ctx, ledger.MustDayKey("2026-03-11"))
	require.NoError(t, err)
	assert.Empty(t, occupied)
}
