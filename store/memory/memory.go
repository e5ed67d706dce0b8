// Package memory provides in-memory implementations of every store
// interface (ledger, occupancy, schedule, audit) for tests and dev mode.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/courtside/club-engine/ledger"
	"github.com/courtside/club-engine/occupancy"
	"github.com/courtside/club-engine/schedule"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Store keeps everything in process memory. Arrays are kept in
// reverse-chronological insertion order, matching the display order of
// the persisted-document layout.
type Store struct {
	mu  sync.RWMutex
	loc *time.Location // facility timezone for day bucketing

	movements    []ledger.Movement // newest first
	closings     []ledger.Closing  // newest first
	dayState     ledger.DayState
	courts       []occupancy.Court
	reservations map[resKey]occupancy.Reservation
	tournaments  []schedule.Tournament // newest first
	referees     []schedule.Referee    // newest first
	matches      []schedule.Match      // newest first
	audit        []ledger.AuditEntry   // newest first
}

type resKey struct {
	CourtID string
	Day     ledger.DayKey
}

// New creates a store that buckets days in UTC.
func New() *Store { return NewWithLocation(time.UTC) }

// NewWithLocation buckets movement days in the facility timezone. It
// must match the location the lifecycle controller stamps days with.
func NewWithLocation(loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{loc: loc, reservations: make(map[resKey]occupancy.Reservation)}
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

func (s *Store) AppendMovement(_ context.Context, m ledger.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movements = append([]ledger.Movement{m}, s.movements...)
	return nil
}

func (s *Store) MovementsByDay(_ context.Context, day ledger.DayKey) ([]ledger.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Movement
	for _, m := range s.movements {
		if ledger.DayKeyOf(m.PostedAt, s.loc) == day {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) MovementsInRange(_ context.Context, from, to ledger.DayKey) ([]ledger.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Movement
	for _, m := range s.movements {
		d := ledger.DayKeyOf(m.PostedAt, s.loc)
		if d >= from && d <= to {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) FreezeDay(_ context.Context, day ledger.DayKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.movements {
		if ledger.DayKeyOf(s.movements[i].PostedAt, s.loc) == day && !s.movements[i].Frozen {
			s.movements[i].Frozen = true
			s.movements[i].ClosingDay = day
		}
	}
	return nil
}

func (s *Store) AppendClosing(_ context.Context, c ledger.Closing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.closings {
		if existing.Day == c.Day {
			return fmt.Errorf("closing for %s already exists", c.Day)
		}
	}
	s.closings = append([]ledger.Closing{c}, s.closings...)
	return nil
}

func (s *Store) ClosingByDay(_ context.Context, day ledger.DayKey) (*ledger.Closing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.closings {
		if c.Day == day {
			out := c
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ClosingsInRange(_ context.Context, from, to ledger.DayKey) ([]ledger.Closing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Closing
	for _, c := range s.closings {
		if c.Day >= from && c.Day <= to {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) LoadDayState(_ context.Context) (ledger.DayState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := ledger.DayState{OpenDay: s.dayState.OpenDay}
	state.ClosedDays = append(state.ClosedDays, s.dayState.ClosedDays...)
	return state, nil
}

func (s *Store) SaveDayState(_ context.Context, state ledger.DayState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dayState = ledger.DayState{OpenDay: state.OpenDay}
	s.dayState.ClosedDays = append(s.dayState.ClosedDays, state.ClosedDays...)
	return nil
}

// =============================================================================
// OCCUPANCY STORE (occupancy.Store interface)
// =============================================================================

func copyCourt(c occupancy.Court) occupancy.Court {
	out := c
	if c.Occupancy != nil {
		occ := *c.Occupancy
		out.Occupancy = &occ
	}
	return out
}

func (s *Store) Courts(_ context.Context) ([]occupancy.Court, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]occupancy.Court, len(s.courts))
	for i, c := range s.courts {
		out[i] = copyCourt(c)
	}
	return out, nil
}

func (s *Store) Court(_ context.Context, id string) (*occupancy.Court, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.courts {
		if c.ID == id {
			out := copyCourt(c)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("court %s: %w", id, ledger.ErrNotFound)
}

func (s *Store) SaveCourt(_ context.Context, c occupancy.Court) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.courts {
		if s.courts[i].ID == c.ID {
			s.courts[i] = copyCourt(c)
			return nil
		}
	}
	s.courts = append(s.courts, copyCourt(c))
	return nil
}

func (s *Store) EnsureCourts(_ context.Context, courts []occupancy.Court) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range courts {
		exists := false
		for i := range s.courts {
			if s.courts[i].ID == c.ID {
				exists = true
				break
			}
		}
		if !exists {
			s.courts = append(s.courts, copyCourt(c))
		}
	}
	return nil
}

func (s *Store) SaveReservation(_ context.Context, r occupancy.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[resKey{r.CourtID, r.Day}] = r
	return nil
}

func (s *Store) DeleteReservation(_ context.Context, courtID string, day ledger.DayKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reservations, resKey{courtID, day})
	return nil
}

func (s *Store) ReservationsByDay(_ context.Context, day ledger.DayKey) ([]occupancy.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []occupancy.Reservation
	for k, r := range s.reservations {
		if k.Day == day {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// SCHEDULE STORE (schedule.Store interface)
// =============================================================================

func (s *Store) Tournaments(_ context.Context) ([]schedule.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schedule.Tournament
	for _, t := range s.tournaments {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) Tournament(_ context.Context, id string) (*schedule.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tournaments {
		if t.ID == id {
			out := t
			return &out, nil
		}
	}
	return nil, fmt.Errorf("tournament %s: %w", id, ledger.ErrNotFound)
}

func (s *Store) SaveTournament(_ context.Context, t schedule.Tournament) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tournaments {
		if s.tournaments[i].ID == t.ID {
			s.tournaments[i] = t
			return nil
		}
	}
	s.tournaments = append([]schedule.Tournament{t}, s.tournaments...)
	return nil
}

func (s *Store) Referees(_ context.Context) ([]schedule.Referee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schedule.Referee
	for _, r := range s.referees {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Referee(_ context.Context, id string) (*schedule.Referee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.referees {
		if r.ID == id {
			out := r
			return &out, nil
		}
	}
	return nil, fmt.Errorf("referee %s: %w", id, ledger.ErrNotFound)
}

func (s *Store) SaveReferee(_ context.Context, r schedule.Referee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.referees {
		if s.referees[i].ID == r.ID {
			s.referees[i] = r
			return nil
		}
	}
	s.referees = append([]schedule.Referee{r}, s.referees...)
	return nil
}

func (s *Store) Matches(_ context.Context) ([]schedule.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schedule.Match, len(s.matches))
	copy(out, s.matches)
	return out, nil
}

func (s *Store) Match(_ context.Context, id string) (*schedule.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.matches {
		if m.ID == id {
			out := m
			return &out, nil
		}
	}
	return nil, fmt.Errorf("match %s: %w", id, ledger.ErrNotFound)
}

func (s *Store) SaveMatch(_ context.Context, m schedule.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.matches {
		if s.matches[i].ID == m.ID {
			s.matches[i] = m
			return nil
		}
	}
	s.matches = append([]schedule.Match{m}, s.matches...)
	return nil
}

func (s *Store) MatchesByDay(_ context.Context, day ledger.DayKey) ([]schedule.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schedule.Match
	for _, m := range s.matches {
		if m.Day == day {
			out = append(out, m)
		}
	}
	return out, nil
}

// =============================================================================
// AUDIT LOG (ledger.AuditLog interface)
// =============================================================================

func (s *Store) AppendAudit(_ context.Context, e ledger.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append([]ledger.AuditEntry{e}, s.audit...)
	return nil
}

func (s *Store) RecentAudit(_ context.Context, limit int) ([]ledger.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.audit) {
		limit = len(s.audit)
	}
	out := make([]ledger.AuditEntry, limit)
	copy(out, s.audit[:limit])
	return out, nil
}
