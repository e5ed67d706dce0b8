/*
Package ledger implements the cash ledger and day-lifecycle engine.

PURPOSE:
  Records every monetary movement of the facility (court rentals,
  referee payouts, tournament sales, manual entries), enforces that a
  calendar day must be explicitly opened before anything posts against
  it, and freezes an immutable closing summary when the day is closed.

KEY CONCEPTS IN THIS FILE (types.go):
  - Movement: one monetary event, immutable once its day is closed
  - Detail:   tagged per-kind attributes (court, match, tournament)
  - Closing:  frozen daily summary (income, expense, net)
  - DayState: the single open-day pointer plus the closed-day set

DESIGN PRINCIPLES:
  1. Immutability: frozen movements and closings are never edited
  2. Precision: amounts use decimal.Decimal, never floats
  3. Single source of truth: a movement carries its closing day, so
     reports never re-derive closed-ness by date filtering

SEE ALSO:
  - lifecycle.go: the state machine that guards posting and closing
  - report.go:    daily and monthly aggregation
  - store.go:     persistence interfaces
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MOVEMENT - One recorded monetary event
// =============================================================================

type MovementKind string

const (
	KindRental         MovementKind = "rental"
	KindRefereePayout  MovementKind = "referee_payout"
	KindTournamentSale MovementKind = "tournament_sale"
	KindManual         MovementKind = "manual"
)

// ValidKind reports whether k is one of the four movement kinds.
func ValidKind(k MovementKind) bool {
	switch k {
	case KindRental, KindRefereePayout, KindTournamentSale, KindManual:
		return true
	}
	return false
}

// Movement is an immutable-once-posted monetary event.
//
// INVARIANTS:
//   - PostedAt must resolve to the open day at creation time.
//   - Once Frozen is true the record is never mutated or deleted.
//   - ClosingDay is empty while the movement is live and is set exactly
//     once, to its own day, when that day closes.
type Movement struct {
	ID       string
	Concept  string
	Kind     MovementKind
	Amount   decimal.Decimal // signed; payouts are stored negative
	PostedAt time.Time
	PostedBy string
	Detail   Detail
	Frozen   bool
	// ClosingDay classifies the movement for monthly reporting:
	// "" means raw-only, otherwise the movement is represented solely
	// by that day's Closing aggregate.
	ClosingDay DayKey
}

// Day returns the calendar day the movement posted against.
func (m Movement) Day(loc *time.Location) DayKey {
	return DayKeyOf(m.PostedAt, loc)
}

// =============================================================================
// DETAIL - Tagged per-kind attributes
// =============================================================================

// Detail carries the kind-specific attributes of a movement. It is a
// sealed variant rather than an open map so the reporting engine can
// handle every shape exhaustively. A nil Detail is allowed for manual
// movements.
type Detail interface {
	DetailKind() MovementKind
}

// RentalDetail describes a court rental income movement.
type RentalDetail struct {
	CourtID   string `json:"court_id"`
	Client    string `json:"client,omitempty"`
	Start     string `json:"start,omitempty"` // HH:MM
	Reference string `json:"reference,omitempty"`
}

func (RentalDetail) DetailKind() MovementKind { return KindRental }

// RefereePayoutDetail describes a referee payment for one match.
type RefereePayoutDetail struct {
	MatchID      string `json:"match_id"`
	RefereeID    string `json:"referee_id"`
	TournamentID string `json:"tournament_id,omitempty"`
}

func (RefereePayoutDetail) DetailKind() MovementKind { return KindRefereePayout }

// TournamentSaleDetail describes income tied to a tournament.
type TournamentSaleDetail struct {
	TournamentID string `json:"tournament_id"`
	Reference    string `json:"reference,omitempty"`
}

func (TournamentSaleDetail) DetailKind() MovementKind { return KindTournamentSale }

// ManualDetail annotates a hand-entered movement.
type ManualDetail struct {
	Note      string `json:"note,omitempty"`
	Reference string `json:"reference,omitempty"`
}

func (ManualDetail) DetailKind() MovementKind { return KindManual }

// =============================================================================
// CLOSING - Frozen summary for one day
// =============================================================================

// Closing is created exactly once per day by CloseDay and never mutated.
type Closing struct {
	ID            string
	Day           DayKey
	IncomeTotal   decimal.Decimal
	ExpenseTotal  decimal.Decimal
	Net           decimal.Decimal
	MovementCount int
	ClosedBy      string
	ClosedAt      time.Time
}

// =============================================================================
// DAY STATE - Lifecycle singleton
// =============================================================================

// DayState describes the day lifecycle: at most one day is open at any
// time, and a closed day may never be reopened.
//
// INVARIANT: OpenDay, if set, is never a member of ClosedDays.
type DayState struct {
	OpenDay    DayKey
	ClosedDays []DayKey
}

// IsClosed reports whether day has a closing record.
func (s DayState) IsClosed(day DayKey) bool {
	for _, d := range s.ClosedDays {
		if d == day {
			return true
		}
	}
	return false
}

// =============================================================================
// CLASSIFICATION - Income vs expense
// =============================================================================

// normalizeAmount applies the posting sign rule: rentals and tournament
// sales are stored positive, referee payouts negative, manual entries
// keep the caller's sign.
func normalizeAmount(kind MovementKind, amount decimal.Decimal) decimal.Decimal {
	switch kind {
	case KindRental, KindTournamentSale:
		return amount.Abs()
	case KindRefereePayout:
		return amount.Abs().Neg()
	default:
		return amount
	}
}

// Classify sums movements into income and expense totals.
// Income kinds: rental, tournament_sale, positive manual.
// Expense kinds: referee_payout, negative manual (absolute values).
func Classify(movements []Movement) (income, expense decimal.Decimal) {
	income, expense = decimal.Zero, decimal.Zero
	for _, m := range movements {
		switch m.Kind {
		case KindRental, KindTournamentSale:
			income = income.Add(m.Amount)
		case KindRefereePayout:
			expense = expense.Add(m.Amount.Abs())
		case KindManual:
			if m.Amount.IsNegative() {
				expense = expense.Add(m.Amount.Abs())
			} else {
				income = income.Add(m.Amount)
			}
		}
	}
	return income, expense
}
