/*
lifecycle.go - Day lifecycle state machine

PURPOSE:
  The Controller owns the open-day pointer exclusively. Nothing posts a
  movement, flips a court to occupied, or closes a day without passing
  through it. States are NoDayOpen and DayOpen(day); the closed-day set
  grows monotonically and is orthogonal to the current state.

TRANSITIONS:
  OpenDay:      owner only; rejected forever for closed days; replaces
                any currently open day (the previous one stays un-closed)
  PostMovement: only while a day is open and the wall clock still
                resolves to that day
  CloseDay:     owner only; only the open day can close; computes income
                and expense totals, freezes the day's movements, appends
                the closing and clears the pointer as one guarded step

CONCURRENCY:
  One mutex serializes every transition, so two CloseDay calls for the
  same day cannot both succeed and no PostMovement can slip between
  "day determined closed" and "closing persisted".

SEE ALSO:
  - types.go:  Movement, Closing, DayState
  - report.go: aggregation rules shared with monthly reporting
*/
package ledger

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccessPolicy supplies the caller's role. Consumed, not implemented,
// by this core; the api package provides a config-backed implementation.
type AccessPolicy interface {
	HasOwnerPrivilege(actor string) bool
}

// MovementInput is a request to post one movement against the open day.
type MovementInput struct {
	Concept string
	Kind    MovementKind
	Amount  decimal.Decimal
	Detail  Detail
	Actor   string
}

// Controller is the day lifecycle state machine. All mutating ledger
// operations pass through it; DayState is never shared by reference.
type Controller struct {
	store  Store
	access AccessPolicy
	audit  AuditLog // optional
	loc    *time.Location

	mu  sync.Mutex
	now func() time.Time // injectable for tests
}

// NewController wires the state machine. audit may be nil. A nil loc
// means UTC.
func NewController(store Store, access AccessPolicy, audit AuditLog, loc *time.Location) *Controller {
	if loc == nil {
		loc = time.UTC
	}
	return &Controller{
		store:  store,
		access: access,
		audit:  audit,
		loc:    loc,
		now:    time.Now,
	}
}

// SetClock overrides the wall clock. Test hook.
func (c *Controller) SetClock(now func() time.Time) { c.now = now }

// Location returns the facility timezone used for day keys.
func (c *Controller) Location() *time.Location { return c.loc }

// =============================================================================
// TRANSITIONS
// =============================================================================

// OpenDay makes day the currently open day. Owner privilege required.
// A day that was ever closed is rejected with ErrAlreadyClosed,
// unconditionally. If a different day is open it is replaced and left
// un-closed. Reopening the already-open day is a no-op success.
func (c *Controller) OpenDay(ctx context.Context, day DayKey, actor string) error {
	if !c.access.HasOwnerPrivilege(actor) {
		return ErrUnauthorized
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.store.LoadDayState(ctx)
	if err != nil {
		return err
	}
	if state.IsClosed(day) {
		return ErrAlreadyClosed
	}
	if state.OpenDay == day {
		return nil
	}

	state.OpenDay = day
	if err := c.store.SaveDayState(ctx, state); err != nil {
		return err
	}

	c.record(ctx, actor, AuditDayOpened, "caja", string(day), "")
	return nil
}

// PostMovement appends a movement against the open day. The posting
// time is stamped from the wall clock and must resolve to the open day;
// otherwise the call fails with ErrDayNotOpen.
func (c *Controller) PostMovement(ctx context.Context, in MovementInput) (Movement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.postLocked(ctx, in)
}

func (c *Controller) postLocked(ctx context.Context, in MovementInput) (Movement, error) {
	state, err := c.store.LoadDayState(ctx)
	if err != nil {
		return Movement{}, err
	}

	now := c.now()
	if state.OpenDay == "" || DayKeyOf(now, c.loc) != state.OpenDay {
		return Movement{}, ErrDayNotOpen
	}

	m := Movement{
		ID:       uuid.NewString(),
		Concept:  in.Concept,
		Kind:     in.Kind,
		Amount:   normalizeAmount(in.Kind, in.Amount),
		PostedAt: now,
		PostedBy: in.Actor,
		Detail:   in.Detail,
	}
	if err := c.store.AppendMovement(ctx, m); err != nil {
		return Movement{}, err
	}

	c.record(ctx, in.Actor, AuditMovementPosted, "caja", m.ID, in.Concept)
	return m, nil
}

// CloseDay freezes the open day and returns its closing summary.
// Only the currently open day can be closed; closing an arbitrary
// non-open day is not supported.
//
// From the caller's point of view the steps are atomic: totals are
// computed over exactly the movements visible at this moment, those
// movements are frozen, the closing is appended, the day joins the
// closed set and the open pointer is cleared.
func (c *Controller) CloseDay(ctx context.Context, day DayKey, actor string) (Closing, error) {
	if !c.access.HasOwnerPrivilege(actor) {
		return Closing{}, ErrUnauthorized
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.store.LoadDayState(ctx)
	if err != nil {
		return Closing{}, err
	}
	if state.IsClosed(day) {
		return Closing{}, ErrAlreadyClosed
	}
	if state.OpenDay != day {
		return Closing{}, ErrDayNotOpen
	}

	movements, err := c.store.MovementsByDay(ctx, day)
	if err != nil {
		return Closing{}, err
	}

	income, expense := Classify(movements)
	closing := Closing{
		ID:            uuid.NewString(),
		Day:           day,
		IncomeTotal:   income,
		ExpenseTotal:  expense,
		Net:           income.Sub(expense),
		MovementCount: len(movements),
		ClosedBy:      actor,
		ClosedAt:      c.now(),
	}

	if err := c.store.FreezeDay(ctx, day); err != nil {
		return Closing{}, err
	}
	if err := c.store.AppendClosing(ctx, closing); err != nil {
		return Closing{}, err
	}

	state.ClosedDays = append(state.ClosedDays, day)
	state.OpenDay = ""
	if err := c.store.SaveDayState(ctx, state); err != nil {
		return Closing{}, err
	}

	c.record(ctx, actor, AuditDayClosed, "caja", string(day), "")
	return closing, nil
}

// =============================================================================
// READ HELPERS
// =============================================================================

// RequireOpen fails with ErrDayNotOpen unless day is the open day.
// Occupancy consults this before flipping a court to occupied.
func (c *Controller) RequireOpen(ctx context.Context, day DayKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.store.LoadDayState(ctx)
	if err != nil {
		return err
	}
	if state.OpenDay != day {
		return ErrDayNotOpen
	}
	return nil
}

// OpenDayKey returns the currently open day, or "" when none is open.
func (c *Controller) OpenDayKey(ctx context.Context) (DayKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.store.LoadDayState(ctx)
	if err != nil {
		return "", err
	}
	return state.OpenDay, nil
}

// IsClosed reports whether day already has a closing.
func (c *Controller) IsClosed(ctx context.Context, day DayKey) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.store.LoadDayState(ctx)
	if err != nil {
		return false, err
	}
	return state.IsClosed(day), nil
}

// record appends an audit entry. Best-effort: a failing audit write is
// logged and never fails the operation it describes.
func (c *Controller) record(ctx context.Context, actor string, action AuditAction, entity, entityID, note string) {
	if c.audit == nil {
		return
	}
	entry := AuditEntry{
		ID:       uuid.NewString(),
		At:       c.now(),
		Actor:    actor,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Note:     note,
	}
	if err := c.audit.AppendAudit(ctx, entry); err != nil {
		log.Printf("audit append failed: %v", err)
	}
}
