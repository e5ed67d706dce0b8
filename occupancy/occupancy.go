/*
Package occupancy owns per-court state and the reservation log.

PURPOSE:
  A court is a singly-owned resource: Free or Occupied, never both, and
  exactly one tenant when occupied. Flipping a court to occupied is
  gated by the same day-open state as the cash ledger and posts the
  rental movement through the lifecycle controller.

EXCLUSIVITY CONTRACT:
  Two concurrent bookings for the same court must not both succeed.
  Each court has its own mutex; check-free-then-occupy happens entirely
  inside it, so under a race exactly one caller transitions
  Free -> Occupied and every other caller fails.

RESERVATIONS:
  A reservation is a calendar-only entry for (court, day) that never
  touches live state. Rebooking the same slot supersedes the earlier
  entry rather than editing it.

SEE ALSO:
  - ledger/lifecycle.go: RequireOpen and PostMovement
  - store/sqlite, store/memory: Store implementations
*/
package occupancy

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/courtside/club-engine/ledger"
)

// =============================================================================
// TYPES
// =============================================================================

type CourtState string

const (
	StateFree     CourtState = "Free"
	StateOccupied CourtState = "Occupied"
)

// Court is a facility resource mutated in place by the Manager.
//
// INVARIANT: Occupancy is present iff State == StateOccupied.
type Court struct {
	ID        string
	Name      string
	State     CourtState
	Occupancy *Occupancy
}

// Occupancy is the live booking of a court for the open day.
type Occupancy struct {
	Client string
	Start  string // HH:MM
	Day    ledger.DayKey
}

// Reservation is a calendar entry keyed by (CourtID, Day). A later
// reservation for the same key supersedes the earlier one.
type Reservation struct {
	ID        string
	CourtID   string
	Client    string
	Day       ledger.DayKey
	Start     string
	End       string
	CreatedBy string
	CreatedAt time.Time
}

// =============================================================================
// STORE
// =============================================================================

// Store persists courts and reservations. Implementations return
// wrapped ledger.ErrStorage on I/O failure and ledger.ErrNotFound for
// unknown court ids.
type Store interface {
	Courts(ctx context.Context) ([]Court, error)
	Court(ctx context.Context, id string) (*Court, error)
	SaveCourt(ctx context.Context, c Court) error

	// EnsureCourts seeds missing courts without touching existing ones.
	EnsureCourts(ctx context.Context, courts []Court) error

	// SaveReservation upserts by (CourtID, Day).
	SaveReservation(ctx context.Context, r Reservation) error
	DeleteReservation(ctx context.Context, courtID string, day ledger.DayKey) error
	ReservationsByDay(ctx context.Context, day ledger.DayKey) ([]Reservation, error)
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager serializes all court mutations.
type Manager struct {
	store Store
	days  *ledger.Controller
	audit ledger.AuditLog // optional

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-court
}

// NewManager wires the occupancy manager. audit may be nil.
func NewManager(store Store, days *ledger.Controller, audit ledger.AuditLog) *Manager {
	return &Manager{
		store: store,
		days:  days,
		audit: audit,
		locks: make(map[string]*sync.Mutex),
	}
}

// courtLock returns the mutex owning courtID, creating it on first use.
func (m *Manager) courtLock(courtID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[courtID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[courtID] = l
	}
	return l
}

// BookingRequest describes one booking attempt.
type BookingRequest struct {
	CourtID string
	Client  string
	Day     ledger.DayKey
	Start   string // HH:MM
	End     string
	Amount  decimal.Decimal // rental income; zero posts no movement
	Occupy  bool            // true = live occupancy, false = future reservation
	Actor   string
}

// Book either occupies a court for the open day or records a future
// reservation. Exactly one of the returned values is non-nil.
//
// With Occupy=true the day must be the open day, the court must be
// free, and a rental movement is posted when Amount is positive. With
// Occupy=false only the (court, day) reservation is written; live
// state is never touched.
func (m *Manager) Book(ctx context.Context, req BookingRequest) (*Court, *Reservation, error) {
	if req.CourtID == "" || req.Client == "" || req.Day == "" {
		return nil, nil, fmt.Errorf("court, client and day are required")
	}

	if !req.Occupy {
		res := Reservation{
			ID:        uuid.NewString(),
			CourtID:   req.CourtID,
			Client:    req.Client,
			Day:       req.Day,
			Start:     req.Start,
			End:       req.End,
			CreatedBy: req.Actor,
			CreatedAt: time.Now(),
		}
		if _, err := m.store.Court(ctx, req.CourtID); err != nil {
			return nil, nil, err
		}
		if err := m.store.SaveReservation(ctx, res); err != nil {
			return nil, nil, err
		}
		return nil, &res, nil
	}

	lock := m.courtLock(req.CourtID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.days.RequireOpen(ctx, req.Day); err != nil {
		return nil, nil, err
	}

	court, err := m.store.Court(ctx, req.CourtID)
	if err != nil {
		return nil, nil, err
	}
	if court.State == StateOccupied {
		return nil, nil, &CourtOccupiedError{CourtID: court.ID, Client: court.Occupancy.Client}
	}

	// Post the rental first: if the day closed between RequireOpen and
	// here, the controller rejects it and the court stays free.
	if req.Amount.IsPositive() {
		_, err := m.days.PostMovement(ctx, ledger.MovementInput{
			Concept: "Court rental",
			Kind:    ledger.KindRental,
			Amount:  req.Amount,
			Detail:  ledger.RentalDetail{CourtID: court.ID, Client: req.Client, Start: req.Start},
			Actor:   req.Actor,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	court.State = StateOccupied
	court.Occupancy = &Occupancy{Client: req.Client, Start: req.Start, Day: req.Day}
	if err := m.store.SaveCourt(ctx, *court); err != nil {
		return nil, nil, err
	}

	m.record(ctx, req.Actor, ledger.AuditCourtBooked, court.ID, req.Client)
	return court, nil, nil
}

// OccupancyPatch mutates fields of an existing occupancy. Nil fields
// are left untouched; state never changes.
type OccupancyPatch struct {
	Client *string
	Start  *string
}

// UpdateOccupancy edits the tenant or start time of a live occupancy.
func (m *Manager) UpdateOccupancy(ctx context.Context, courtID string, patch OccupancyPatch) (*Court, error) {
	lock := m.courtLock(courtID)
	lock.Lock()
	defer lock.Unlock()

	court, err := m.store.Court(ctx, courtID)
	if err != nil {
		return nil, err
	}
	if court.State != StateOccupied || court.Occupancy == nil {
		return nil, ledger.ErrNoActiveOccupancy
	}

	if patch.Client != nil {
		court.Occupancy.Client = *patch.Client
	}
	if patch.Start != nil {
		court.Occupancy.Start = *patch.Start
	}
	if err := m.store.SaveCourt(ctx, *court); err != nil {
		return nil, err
	}
	return court, nil
}

// Release frees a court and removes the reservation for the vacated
// (court, day) slot. Idempotent: releasing a free court is a no-op.
func (m *Manager) Release(ctx context.Context, courtID string, actor string) (*Court, error) {
	lock := m.courtLock(courtID)
	lock.Lock()
	defer lock.Unlock()

	court, err := m.store.Court(ctx, courtID)
	if err != nil {
		return nil, err
	}
	if court.State == StateFree {
		return court, nil
	}

	vacatedDay := court.Occupancy.Day
	court.State = StateFree
	court.Occupancy = nil
	if err := m.store.SaveCourt(ctx, *court); err != nil {
		return nil, err
	}
	if err := m.store.DeleteReservation(ctx, courtID, vacatedDay); err != nil {
		return nil, err
	}

	m.record(ctx, actor, ledger.AuditCourtReleased, courtID, "")
	return court, nil
}

// Courts lists every court with its live state.
func (m *Manager) Courts(ctx context.Context) ([]Court, error) {
	return m.store.Courts(ctx)
}

// ReservationsByDay lists the calendar entries for a day.
func (m *Manager) ReservationsByDay(ctx context.Context, day ledger.DayKey) ([]Reservation, error) {
	return m.store.ReservationsByDay(ctx, day)
}

// OccupiedOn returns the courts whose live occupancy is for day.
func (m *Manager) OccupiedOn(ctx context.Context, day ledger.DayKey) ([]Court, error) {
	courts, err := m.store.Courts(ctx)
	if err != nil {
		return nil, err
	}
	var occupied []Court
	for _, c := range courts {
		if c.State == StateOccupied && c.Occupancy != nil && c.Occupancy.Day == day {
			occupied = append(occupied, c)
		}
	}
	return occupied, nil
}

func (m *Manager) record(ctx context.Context, actor string, action ledger.AuditAction, courtID, note string) {
	if m.audit == nil {
		return
	}
	entry := ledger.AuditEntry{
		ID:       uuid.NewString(),
		At:       time.Now(),
		Actor:    actor,
		Action:   action,
		Entity:   "court",
		EntityID: courtID,
		Note:     note,
	}
	if err := m.audit.AppendAudit(ctx, entry); err != nil {
		log.Printf("audit append failed: %v", err)
	}
}
