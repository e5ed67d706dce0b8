/*
store.go - Persistence interfaces for movements, closings and day state

PURPOSE:
  Defines the boundary between the engine and the database. Movements
  are append-only: the ONLY mutation that exists is FreezeDay, which
  flips the frozen flag and stamps the closing day on a day's movements.
  Closings are append-only with no mutation at all.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - store/memory: in-memory store for tests and dev mode

ORDERING:
  Movement queries return newest-first, matching the display order the
  surrounding application expects everywhere.

SEE ALSO:
  - lifecycle.go: the only writer of day state
  - report.go:    read-only consumer
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Movements, closings, day state
// =============================================================================

// Store handles persistence for the ledger. Every method returns a
// wrapped ErrStorage on I/O failure.
type Store interface {
	// AppendMovement persists a new movement with Frozen=false.
	AppendMovement(ctx context.Context, m Movement) error

	// MovementsByDay returns the day's movements, newest first.
	MovementsByDay(ctx context.Context, day DayKey) ([]Movement, error)

	// MovementsInRange returns movements posted in [from, to], newest first.
	MovementsInRange(ctx context.Context, from, to DayKey) ([]Movement, error)

	// FreezeDay marks every movement of the day frozen and records the
	// day as their closing classification. The only mutation on movements.
	FreezeDay(ctx context.Context, day DayKey) error

	// AppendClosing persists a closing record. At most one per day.
	AppendClosing(ctx context.Context, c Closing) error

	// ClosingByDay returns the day's closing, or nil if the day is live.
	ClosingByDay(ctx context.Context, day DayKey) (*Closing, error)

	// ClosingsInRange returns closings for days in [from, to], newest first.
	ClosingsInRange(ctx context.Context, from, to DayKey) ([]Closing, error)

	// LoadDayState returns the lifecycle singleton.
	LoadDayState(ctx context.Context) (DayState, error)

	// SaveDayState replaces the lifecycle singleton.
	SaveDayState(ctx context.Context, s DayState) error
}

// =============================================================================
// AUDIT LOG - Who did what, when
// =============================================================================

// AuditEntry records one operator action. Append-only.
type AuditEntry struct {
	ID       string
	At       time.Time
	Actor    string
	Action   AuditAction
	Entity   string // "caja", "court", "match", "tournament", "referee"
	EntityID string
	Note     string
}

type AuditAction string

const (
	AuditDayOpened      AuditAction = "day_opened"
	AuditDayClosed      AuditAction = "day_closed"
	AuditMovementPosted AuditAction = "movement_posted"
	AuditCourtBooked    AuditAction = "court_booked"
	AuditCourtReleased  AuditAction = "court_released"
	AuditRefereePaid    AuditAction = "referee_paid"
)

// AuditLog stores audit entries. Append failures are logged, never
// allowed to fail the operation they describe.
type AuditLog interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}
