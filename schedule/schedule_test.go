package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/club-engine/ledger"
	"github.com/courtside/club-engine/occupancy"
	"github.com/courtside/club-engine/schedule"
	"github.com/courtside/club-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type ownerPolicy struct{}

func (ownerPolicy) HasOwnerPrivilege(string) bool { return true }

var testDay = ledger.MustDayKey("2026-03-10")

func newTestService(t *testing.T) (*schedule.Service, *ledger.Controller, *memory.Store) {
	t.Helper()
	store := memory.New()
	ctrl := ledger.NewController(store, ownerPolicy{}, store, time.UTC)
	at := testDay.Time(time.UTC).Add(14 * time.Hour)
	ctrl.SetClock(func() time.Time { return at })

	require.NoError(t, store.EnsureCourts(context.Background(), []occupancy.Court{
		{ID: "court-1", Name: "Court 1"},
		{ID: "court-2", Name: "Court 2"},
	}))
	require.NoError(t, ctrl.OpenDay(context.Background(), testDay, "ana"))

	courts := occupancy.NewManager(store, ctrl, store)
	fee, _ := decimal.NewFromString("240.00")
	return schedule.NewService(store, ctrl, courts, fee, store), ctrl, store
}

// =============================================================================
// TOURNAMENTS AND REFEREES
// =============================================================================

func TestTournamentLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tournament, err := svc.CreateTournament(ctx, "Spring Cup", testDay, []string{"court-1", "court-2"}, "ana")
	require.NoError(t, err)
	assert.True(t, tournament.Active)

	// Rename via patch
	name := "Spring Cup 2026"
	updated, err := svc.UpdateTournament(ctx, tournament.ID, schedule.TournamentPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Spring Cup 2026", updated.Name)
	assert.Equal(t, testDay, updated.Day, "untouched field survives")

	// Soft delete hides it from the listing
	require.NoError(t, svc.DeleteTournament(ctx, tournament.ID))
	tournaments, err := svc.Tournaments(ctx)
	require.NoError(t, err)
	assert.Empty(t, tournaments)

	// Deleted tournaments cannot be patched
	_, err = svc.UpdateTournament(ctx, tournament.ID, schedule.TournamentPatch{Name: &name})
	assert.True(t, ledger.IsNotFound(err))
}

func TestCreateTournament_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateTournament(ctx, "", testDay, []string{"court-1"}, "ana")
	assert.Error(t, err)

	_, err = svc.CreateTournament(ctx, "Spring Cup", testDay, nil, "ana")
	assert.Error(t, err)
}

func TestRefereeLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	ref, err := svc.CreateReferee(ctx, "Martinez", "555-0101")
	require.NoError(t, err)
	assert.True(t, ref.Active)

	phone := "555-0202"
	updated, err := svc.UpdateReferee(ctx, ref.ID, schedule.RefereePatch{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "555-0202", updated.Phone)
	assert.Equal(t, "Martinez", updated.Name)

	require.NoError(t, svc.DeleteReferee(ctx, ref.ID))
	referees, err := svc.Referees(ctx)
	require.NoError(t, err)
	assert.Empty(t, referees)

	// Matches cannot be scheduled for an inactive referee
	_, err = svc.CreateMatch(ctx, ref.ID, "", testDay)
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// MATCHES AND PAYOUTS
// =============================================================================

func TestPayReferee_PostsPayoutOnce(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	ref, err := svc.CreateReferee(ctx, "Martinez", "")
	require.NoError(t, err)
	match, err := svc.CreateMatch(ctx, ref.ID, "", testDay)
	require.NoError(t, err)
	assert.False(t, match.Paid)

	// WHEN: paying the match
	movement, err := svc.PayReferee(ctx, match.ID, "ana")
	require.NoError(t, err)

	// THEN: a negative payout for the flat fee landed in the ledger
	assert.Equal(t, ledger.KindRefereePayout, movement.Kind)
	fee, _ := decimal.NewFromString("-240.00")
	assert.True(t, movement.Amount.Equal(fee), "got %s", movement.Amount)

	detail, ok := movement.Detail.(ledger.RefereePayoutDetail)
	require.True(t, ok)
	assert.Equal(t, match.ID, detail.MatchID)
	assert.Equal(t, ref.ID, detail.RefereeID)

	// AND: the match is marked paid and linked to the payout
	paid, err := svc.Match(ctx, match.ID)
	require.NoError(t, err)
	assert.True(t, paid.Paid)
	assert.Equal(t, movement.ID, paid.PayoutID)

	// AND: a second payment is rejected without posting anything
	_, err = svc.PayReferee(ctx, match.ID, "ana")
	assert.True(t, schedule.IsAlreadyPaid(err))

	movements, err := store.MovementsByDay(ctx, testDay)
	require.NoError(t, err)
	assert.Len(t, movements, 1)
}

func TestPayReferee_RequiresOpenDay(t *testing.T) {
	svc, ctrl, _ := newTestService(t)
	ctx := context.Background()

	ref, err := svc.CreateReferee(ctx, "Martinez", "")
	require.NoError(t, err)
	match, err := svc.CreateMatch(ctx, ref.ID, "", testDay)
	require.NoError(t, err)

	_, err = ctrl.CloseDay(ctx, testDay, "ana")
	require.NoError(t, err)

	_, err = svc.PayReferee(ctx, match.ID, "ana")
	assert.ErrorIs(t, err, ledger.ErrDayNotOpen)

	// The failed payment did not mark the match paid
	m, err := svc.Match(ctx, match.ID)
	require.NoError(t, err)
	assert.False(t, m.Paid)
}

func TestCreateMatch_UnknownTournament(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	ref, err := svc.CreateReferee(ctx, "Martinez", "")
	require.NoError(t, err)

	_, err = svc.CreateMatch(ctx, ref.ID, "no-such-tournament", testDay)
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// CALENDAR
// =============================================================================

func TestCalendar_AssemblesDayView(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	// A tournament today, one on another day
	_, err := svc.CreateTournament(ctx, "Spring Cup", testDay, []string{"court-1"}, "ana")
	require.NoError(t, err)
	_, err = svc.CreateTournament(ctx, "Summer Cup", ledger.MustDayKey("2026-06-01"), []string{"court-1"}, "ana")
	require.NoError(t, err)

	// A match today
	ref, err := svc.CreateReferee(ctx, "Martinez", "")
	require.NoError(t, err)
	_, err = svc.CreateMatch(ctx, ref.ID, "", testDay)
	require.NoError(t, err)

	// A live occupancy and a reservation today
	mgrCtrl := ledger.NewController(store, ownerPolicy{}, nil, time.UTC)
	mgrCtrl.SetClock(func() time.Time { return testDay.Time(time.UTC).Add(15 * time.Hour) })
	mgr := occupancy.NewManager(store, mgrCtrl, nil)
	_, _, err = mgr.Book(ctx, occupancy.BookingRequest{
		CourtID: "court-2", Client: "Garcia", Day: testDay, Occupy: true, Actor: "luis",
	})
	require.NoError(t, err)
	_, _, err = mgr.Book(ctx, occupancy.BookingRequest{
		CourtID: "court-1", Client: "Lopez", Day: testDay, Start: "18:00", Occupy: false, Actor: "luis",
	})
	require.NoError(t, err)

	view, err := svc.Calendar(ctx, testDay)
	require.NoError(t, err)
	assert.Equal(t, testDay, view.Day)
	require.Len(t, view.Tournaments, 1)
	assert.Equal(t, "Spring Cup", view.Tournaments[0].Name)
	assert.Len(t, view.Matches, 1)
	require.Len(t, view.Occupied, 1)
	assert.Equal(t, "court-2", view.Occupied[0].ID)
	require.Len(t, view.Reservations, 1)
	assert.Equal(t, "Lopez", view.Reservations[0].Client)
}
