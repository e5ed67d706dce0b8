/*
Package schedule manages tournaments, referees and matches.

PURPOSE:
  The roster side of the facility: tournaments played across courts,
  the referee pool, and individual matches. Paying a referee is the one
  operation here with money semantics - it posts a referee_payout
  movement through the day lifecycle controller, so it obeys the same
  open-day and frozen-day rules as every other movement.

DELETION:
  Tournaments and referees are deactivated, never removed; history that
  movements reference must stay resolvable.

SEE ALSO:
  - ledger/lifecycle.go: PostMovement
  - occupancy package:   reservations merged into the calendar view
*/
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/courtside/club-engine/ledger"
	"github.com/courtside/club-engine/occupancy"
)

// =============================================================================
// TYPES
// =============================================================================

// Tournament groups matches on a set of courts for one day.
type Tournament struct {
	ID        string
	Name      string
	Day       ledger.DayKey
	Courts    []string
	CreatedBy string
	Active    bool
}

// Referee is a member of the referee pool.
type Referee struct {
	ID     string
	Name   string
	Phone  string
	Active bool
}

// Match pairs a referee with an optional tournament. Paid flips once,
// when the payout movement posts; PayoutID links back to the ledger.
type Match struct {
	ID           string
	RefereeID    string
	TournamentID string // optional
	Day          ledger.DayKey
	Paid         bool
	PayoutID     string
	CreatedAt    time.Time
}

// =============================================================================
// STORE
// =============================================================================

// Store persists the roster. Unknown ids return wrapped ledger.ErrNotFound.
type Store interface {
	Tournaments(ctx context.Context) ([]Tournament, error) // active only, newest first
	Tournament(ctx context.Context, id string) (*Tournament, error)
	SaveTournament(ctx context.Context, t Tournament) error

	Referees(ctx context.Context) ([]Referee, error) // active only
	Referee(ctx context.Context, id string) (*Referee, error)
	SaveReferee(ctx context.Context, r Referee) error

	Matches(ctx context.Context) ([]Match, error) // newest first
	Match(ctx context.Context, id string) (*Match, error)
	SaveMatch(ctx context.Context, m Match) error
	MatchesByDay(ctx context.Context, day ledger.DayKey) ([]Match, error)
}

// =============================================================================
// SERVICE
// =============================================================================

// Service implements roster operations and the calendar day view.
type Service struct {
	store      Store
	days       *ledger.Controller
	courts     *occupancy.Manager
	refereeFee decimal.Decimal
	audit      ledger.AuditLog // optional
}

// NewService wires the roster service. fee is the flat per-match
// referee payout. audit may be nil.
func NewService(store Store, days *ledger.Controller, courts *occupancy.Manager, fee decimal.Decimal, audit ledger.AuditLog) *Service {
	return &Service{store: store, days: days, courts: courts, refereeFee: fee, audit: audit}
}

// =============================================================================
// TOURNAMENTS
// =============================================================================

// CreateTournament validates and stores a new tournament.
func (s *Service) CreateTournament(ctx context.Context, name string, day ledger.DayKey, courts []string, actor string) (Tournament, error) {
	if name == "" || day == "" || len(courts) == 0 {
		return Tournament{}, fmt.Errorf("name, day and at least one court are required")
	}
	t := Tournament{
		ID:        uuid.NewString(),
		Name:      name,
		Day:       day,
		Courts:    courts,
		CreatedBy: actor,
		Active:    true,
	}
	if err := s.store.SaveTournament(ctx, t); err != nil {
		return Tournament{}, err
	}
	return t, nil
}

// TournamentPatch updates fields of an existing tournament; nil fields
// are left untouched.
type TournamentPatch struct {
	Name   *string
	Day    *ledger.DayKey
	Courts []string
}

// UpdateTournament patches an active tournament.
func (s *Service) UpdateTournament(ctx context.Context, id string, patch TournamentPatch) (Tournament, error) {
	t, err := s.store.Tournament(ctx, id)
	if err != nil {
		return Tournament{}, err
	}
	if !t.Active {
		return Tournament{}, fmt.Errorf("tournament %s: %w", id, ledger.ErrNotFound)
	}
	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.Day != nil {
		t.Day = *patch.Day
	}
	if len(patch.Courts) > 0 {
		t.Courts = patch.Courts
	}
	if err := s.store.SaveTournament(ctx, *t); err != nil {
		return Tournament{}, err
	}
	return *t, nil
}

// DeleteTournament deactivates a tournament.
func (s *Service) DeleteTournament(ctx context.Context, id string) error {
	t, err := s.store.Tournament(ctx, id)
	if err != nil {
		return err
	}
	t.Active = false
	return s.store.SaveTournament(ctx, *t)
}

// Tournaments lists active tournaments, newest first.
func (s *Service) Tournaments(ctx context.Context) ([]Tournament, error) {
	return s.store.Tournaments(ctx)
}

// =============================================================================
// REFEREES
// =============================================================================

// CreateReferee adds a referee to the pool.
func (s *Service) CreateReferee(ctx context.Context, name, phone string) (Referee, error) {
	if name == "" {
		return Referee{}, fmt.Errorf("referee name is required")
	}
	r := Referee{ID: uuid.NewString(), Name: name, Phone: phone, Active: true}
	if err := s.store.SaveReferee(ctx, r); err != nil {
		return Referee{}, err
	}
	return r, nil
}

// RefereePatch updates fields of a referee; nil fields are untouched.
type RefereePatch struct {
	Name   *string
	Phone  *string
	Active *bool
}

// UpdateReferee patches a referee record.
func (s *Service) UpdateReferee(ctx context.Context, id string, patch RefereePatch) (Referee, error) {
	r, err := s.store.Referee(ctx, id)
	if err != nil {
		return Referee{}, err
	}
	if patch.Name != nil {
		r.Name = *patch.Name
	}
	if patch.Phone != nil {
		r.Phone = *patch.Phone
	}
	if patch.Active != nil {
		r.Active = *patch.Active
	}
	if err := s.store.SaveReferee(ctx, *r); err != nil {
		return Referee{}, err
	}
	return *r, nil
}

// DeleteReferee deactivates a referee.
func (s *Service) DeleteReferee(ctx context.Context, id string) error {
	r, err := s.store.Referee(ctx, id)
	if err != nil {
		return err
	}
	r.Active = false
	return s.store.SaveReferee(ctx, *r)
}

// Referees lists active referees.
func (s *Service) Referees(ctx context.Context) ([]Referee, error) {
	return s.store.Referees(ctx)
}

// =============================================================================
// MATCHES & REFEREE PAYOUTS
// =============================================================================

// CreateMatch schedules a match for an active referee, optionally under
// a tournament.
func (s *Service) CreateMatch(ctx context.Context, refereeID, tournamentID string, day ledger.DayKey) (Match, error) {
	ref, err := s.store.Referee(ctx, refereeID)
	if err != nil {
		return Match{}, err
	}
	if !ref.Active {
		return Match{}, fmt.Errorf("referee %s: %w", refereeID, ledger.ErrNotFound)
	}
	if tournamentID != "" {
		t, err := s.store.Tournament(ctx, tournamentID)
		if err != nil {
			return Match{}, err
		}
		if !t.Active {
			return Match{}, fmt.Errorf("tournament %s: %w", tournamentID, ledger.ErrNotFound)
		}
	}
	m := Match{
		ID:           uuid.NewString(),
		RefereeID:    refereeID,
		TournamentID: tournamentID,
		Day:          day,
		CreatedAt:    time.Now(),
	}
	if err := s.store.SaveMatch(ctx, m); err != nil {
		return Match{}, err
	}
	return m, nil
}

// PayReferee posts the referee_payout movement for a match and marks it
// paid. A second payment for the same match is rejected.
func (s *Service) PayReferee(ctx context.Context, matchID, actor string) (ledger.Movement, error) {
	match, err := s.store.Match(ctx, matchID)
	if err != nil {
		return ledger.Movement{}, err
	}
	if match.Paid {
		return ledger.Movement{}, ledger.ErrRefereeAlreadyPaid
	}

	movement, err := s.days.PostMovement(ctx, ledger.MovementInput{
		Concept: "Referee payout",
		Kind:    ledger.KindRefereePayout,
		Amount:  s.refereeFee,
		Detail: ledger.RefereePayoutDetail{
			MatchID:      match.ID,
			RefereeID:    match.RefereeID,
			TournamentID: match.TournamentID,
		},
		Actor: actor,
	})
	if err != nil {
		return ledger.Movement{}, err
	}

	match.Paid = true
	match.PayoutID = movement.ID
	if err := s.store.SaveMatch(ctx, *match); err != nil {
		return ledger.Movement{}, err
	}

	s.record(ctx, actor, match.ID, movement.ID)
	return movement, nil
}

// Match fetches one match by ID.
func (s *Service) Match(ctx context.Context, id string) (*Match, error) {
	return s.store.Match(ctx, id)
}

// IsAlreadyPaid reports whether err is the double-payment rejection.
func IsAlreadyPaid(err error) bool { return errors.Is(err, ledger.ErrRefereeAlreadyPaid) }

// =============================================================================
// CALENDAR
// =============================================================================

// DayView is everything happening on one day: calendar reservations,
// live-occupied courts, matches and tournaments.
type DayView struct {
	Day          ledger.DayKey
	Reservations []occupancy.Reservation
	Occupied     []occupancy.Court
	Matches      []Match
	Tournaments  []Tournament
}

// Calendar assembles the day view.
func (s *Service) Calendar(ctx context.Context, day ledger.DayKey) (DayView, error) {
	reservations, err := s.courts.ReservationsByDay(ctx, day)
	if err != nil {
		return DayView{}, err
	}
	occupied, err := s.courts.OccupiedOn(ctx, day)
	if err != nil {
		return DayView{}, err
	}
	matches, err := s.store.MatchesByDay(ctx, day)
	if err != nil {
		return DayView{}, err
	}
	tournaments, err := s.store.Tournaments(ctx)
	if err != nil {
		return DayView{}, err
	}
	var todays []Tournament
	for _, t := range tournaments {
		if t.Day == day {
			todays = append(todays, t)
		}
	}
	return DayView{
		Day:          day,
		Reservations: reservations,
		Occupied:     occupied,
		Matches:      matches,
		Tournaments:  todays,
	}, nil
}

func (s *Service) record(ctx context.Context, actor, matchID, payoutID string) {
	if s.audit == nil {
		return
	}
	entry := ledger.AuditEntry{
		ID:       uuid.NewString(),
		At:       time.Now(),
		Actor:    actor,
		Action:   ledger.AuditRefereePaid,
		Entity:   "match",
		EntityID: matchID,
		Note:     payoutID,
	}
	if err := s.audit.AppendAudit(ctx, entry); err != nil {
		log.Printf("audit append failed: %v", err)
	}
}
