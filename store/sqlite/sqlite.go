/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

INTERFACES IMPLEMENTED:
  ledger.Store:    movements, closings, day state
  ledger.AuditLog: operator action log
  occupancy.Store: courts and reservations
  schedule.Store:  tournaments, referees, matches

APPEND-ONLY ENFORCEMENT:
  The movements table has exactly one UPDATE path: the freeze flip that
  stamps frozen=1 and closing_day when a day closes. Closings are never
  updated or deleted; a UNIQUE index on closings(day) backs the
  one-closing-per-day invariant at the storage level too.

DAY BUCKETING:
  Movements carry a precomputed day column, derived once at append time
  in the facility timezone, so queries never re-derive calendar days
  from timestamps in a different zone.

CONCURRENCY:
  sync.RWMutex around the connection, WAL journal mode. Same pattern
  the rest of the system assumes: multiple readers, single writer.

USAGE:
  store, err := sqlite.New("./data/club.db", loc)
  ...
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/courtside/club-engine/ledger"
	"github.com/courtside/club-engine/occupancy"
	"github.com/courtside/club-engine/schedule"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db  *sql.DB
	loc *time.Location
	mu  sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the
// schema. Use ":memory:" for an in-memory database. A nil loc means UTC.
func New(dbPath string, loc *time.Location) (*Store, error) {
	if loc == nil {
		loc = time.UTC
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, loc: loc}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Movements (append-only; the freeze flip is the only update)
	CREATE TABLE IF NOT EXISTS movements (
		id TEXT PRIMARY KEY,
		concept TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		posted_at TEXT NOT NULL,
		posted_by TEXT,
		day TEXT NOT NULL,
		detail_json TEXT,
		frozen INTEGER NOT NULL DEFAULT 0,
		closing_day TEXT NOT NULL DEFAULT '',
		seq INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_movements_day ON movements(day);
	CREATE INDEX IF NOT EXISTS idx_movements_closing_day ON movements(closing_day);
	CREATE INDEX IF NOT EXISTS idx_movements_kind ON movements(kind);

	-- Closings (append-only, one per day)
	CREATE TABLE IF NOT EXISTS closings (
		id TEXT PRIMARY KEY,
		day TEXT NOT NULL,
		income_total TEXT NOT NULL,
		expense_total TEXT NOT NULL,
		net TEXT NOT NULL,
		movement_count INTEGER NOT NULL,
		closed_by TEXT NOT NULL,
		closed_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_closings_day ON closings(day);

	-- Day state singleton (id is always 1)
	CREATE TABLE IF NOT EXISTS day_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		open_day TEXT NOT NULL DEFAULT '',
		closed_days_json TEXT NOT NULL DEFAULT '[]'
	);

	-- Courts (long-lived, mutated in place)
	CREATE TABLE IF NOT EXISTS courts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'Free',
		occ_client TEXT,
		occ_start TEXT,
		occ_day TEXT
	);

	-- Reservations, superseded by key rather than edited
	CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		court_id TEXT NOT NULL,
		client TEXT NOT NULL,
		day TEXT NOT NULL,
		start TEXT,
		end TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(court_id, day)
	);

	CREATE INDEX IF NOT EXISTS idx_reservations_day ON reservations(day);

	-- Tournaments (soft-deleted via active flag)
	CREATE TABLE IF NOT EXISTS tournaments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		day TEXT NOT NULL,
		courts_json TEXT NOT NULL,
		created_by TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		seq INTEGER
	);

	-- Referees (soft-deleted via active flag)
	CREATE TABLE IF NOT EXISTS referees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		seq INTEGER
	);

	-- Matches
	CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		referee_id TEXT NOT NULL,
		tournament_id TEXT,
		day TEXT NOT NULL,
		paid INTEGER NOT NULL DEFAULT 0,
		payout_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_matches_day ON matches(day);

	-- Audit log (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor TEXT,
		action TEXT NOT NULL,
		entity TEXT,
		entity_id TEXT,
		note TEXT
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO day_state (id, open_day, closed_days_json) VALUES (1, '', '[]')`)
	return err
}

// =============================================================================
// DETAIL CODEC - Tagged JSON for the sealed Detail variant
// =============================================================================

type detailEnvelope struct {
	Kind ledger.MovementKind `json:"kind"`
	Data json.RawMessage     `json:"data,omitempty"`
}

func marshalDetail(d ledger.Detail) (string, error) {
	if d == nil {
		return "", nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	env, err := json.Marshal(detailEnvelope{Kind: d.DetailKind(), Data: data})
	if err != nil {
		return "", err
	}
	return string(env), nil
}

func unmarshalDetail(raw string) (ledger.Detail, error) {
	if raw == "" {
		return nil, nil
	}
	var env detailEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, err
	}
	switch env.Kind {
	case ledger.KindRental:
		var d ledger.RentalDetail
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, err
		}
		return d, nil
	case ledger.KindRefereePayout:
		var d ledger.RefereePayoutDetail
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, err
		}
		return d, nil
	case ledger.KindTournamentSale:
		var d ledger.TournamentSaleDetail
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, err
		}
		return d, nil
	case ledger.KindManual:
		var d ledger.ManualDetail
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown detail kind %q", env.Kind)
	}
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

func (s *Store) AppendMovement(ctx context.Context, m ledger.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	detailJSON, err := marshalDetail(m.Detail)
	if err != nil {
		return ledger.StorageError("append movement", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO movements
		(id, concept, kind, amount, posted_at, posted_by, day, detail_json, frozen, closing_day, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM movements))
	`,
		m.ID, m.Concept, string(m.Kind), m.Amount.String(),
		m.PostedAt.UTC().Format(time.RFC3339Nano), m.PostedBy,
		string(ledger.DayKeyOf(m.PostedAt, s.loc)),
		detailJSON, boolToInt(m.Frozen), string(m.ClosingDay),
	)
	if err != nil {
		return ledger.StorageError("append movement", err)
	}
	return nil
}

const movementColumns = `id, concept, kind, amount, posted_at, posted_by, detail_json, frozen, closing_day`

func (s *Store) MovementsByDay(ctx context.Context, day ledger.DayKey) ([]ledger.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + movementColumns + ` FROM movements WHERE day = ? ORDER BY seq DESC`
	return s.queryMovements(ctx, query, string(day))
}

func (s *Store) MovementsInRange(ctx context.Context, from, to ledger.DayKey) ([]ledger.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + movementColumns + ` FROM movements WHERE day >= ? AND day <= ? ORDER BY seq DESC`
	return s.queryMovements(ctx, query, string(from), string(to))
}

func (s *Store) FreezeDay(ctx context.Context, day ledger.DayKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The only mutation that exists for movements.
	_, err := s.db.ExecContext(ctx,
		`UPDATE movements SET frozen = 1, closing_day = ? WHERE day = ? AND frozen = 0`,
		string(day), string(day),
	)
	if err != nil {
		return ledger.StorageError("freeze day", err)
	}
	return nil
}

func (s *Store) AppendClosing(ctx context.Context, c ledger.Closing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO closings
		(id, day, income_total, expense_total, net, movement_count, closed_by, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, string(c.Day), c.IncomeTotal.String(), c.ExpenseTotal.String(),
		c.Net.String(), c.MovementCount, c.ClosedBy,
		c.ClosedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return ledger.StorageError("append closing", err)
	}
	return nil
}

func (s *Store) ClosingByDay(ctx context.Context, day ledger.DayKey) (*ledger.Closing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	closings, err := s.queryClosings(ctx,
		`SELECT id, day, income_total, expense_total, net, movement_count, closed_by, closed_at
		 FROM closings WHERE day = ?`, string(day))
	if err != nil {
		return nil, err
	}
	if len(closings) == 0 {
		return nil, nil
	}
	return &closings[0], nil
}

func (s *Store) ClosingsInRange(ctx context.Context, from, to ledger.DayKey) ([]ledger.Closing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryClosings(ctx,
		`SELECT id, day, income_total, expense_total, net, movement_count, closed_by, closed_at
		 FROM closings WHERE day >= ? AND day <= ? ORDER BY day DESC`,
		string(from), string(to))
}

func (s *Store) LoadDayState(ctx context.Context) (ledger.DayState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var openDay, closedJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT open_day, closed_days_json FROM day_state WHERE id = 1`,
	).Scan(&openDay, &closedJSON)
	if err != nil {
		return ledger.DayState{}, ledger.StorageError("load day state", err)
	}

	var closed []ledger.DayKey
	if err := json.Unmarshal([]byte(closedJSON), &closed); err != nil {
		return ledger.DayState{}, ledger.StorageError("load day state", err)
	}
	return ledger.DayState{OpenDay: ledger.DayKey(openDay), ClosedDays: closed}, nil
}

func (s *Store) SaveDayState(ctx context.Context, state ledger.DayState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed := state.ClosedDays
	if closed == nil {
		closed = []ledger.DayKey{}
	}
	closedJSON, err := json.Marshal(closed)
	if err != nil {
		return ledger.StorageError("save day state", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE day_state SET open_day = ?, closed_days_json = ? WHERE id = 1`,
		string(state.OpenDay), string(closedJSON),
	)
	if err != nil {
		return ledger.StorageError("save day state", err)
	}
	return nil
}

func (s *Store) queryMovements(ctx context.Context, query string, args ...any) ([]ledger.Movement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.StorageError("query movements", err)
	}
	defer rows.Close()

	var movements []ledger.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func scanMovement(rows *sql.Rows) (ledger.Movement, error) {
	var (
		m          ledger.Movement
		kind       string
		amount     string
		postedAt   string
		postedBy   sql.NullString
		detailJSON sql.NullString
		frozen     int
		closingDay string
	)
	if err := rows.Scan(&m.ID, &m.Concept, &kind, &amount, &postedAt, &postedBy,
		&detailJSON, &frozen, &closingDay); err != nil {
		return m, ledger.StorageError("scan movement", err)
	}

	m.Kind = ledger.MovementKind(kind)
	m.Amount = mustDecimal(amount)
	m.PostedAt, _ = time.Parse(time.RFC3339Nano, postedAt)
	m.PostedBy = postedBy.String
	m.Frozen = frozen != 0
	m.ClosingDay = ledger.DayKey(closingDay)

	if detailJSON.Valid && detailJSON.String != "" {
		detail, err := unmarshalDetail(detailJSON.String)
		if err != nil {
			return m, ledger.StorageError("decode detail", err)
		}
		m.Detail = detail
	}
	return m, nil
}

func (s *Store) queryClosings(ctx context.Context, query string, args ...any) ([]ledger.Closing, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.StorageError("query closings", err)
	}
	defer rows.Close()

	var closings []ledger.Closing
	for rows.Next() {
		var (
			c                    ledger.Closing
			day                  string
			income, expense, net string
			closedAt             string
		)
		if err := rows.Scan(&c.ID, &day, &income, &expense, &net,
			&c.MovementCount, &c.ClosedBy, &closedAt); err != nil {
			return nil, ledger.StorageError("scan closing", err)
		}
		c.Day = ledger.DayKey(day)
		c.IncomeTotal = mustDecimal(income)
		c.ExpenseTotal = mustDecimal(expense)
		c.Net = mustDecimal(net)
		c.ClosedAt, _ = time.Parse(time.RFC3339Nano, closedAt)
		closings = append(closings, c)
	}
	return closings, rows.Err()
}

// =============================================================================
// OCCUPANCY STORE (occupancy.Store interface)
// =============================================================================

func (s *Store) Courts(ctx context.Context) ([]occupancy.Court, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, state, occ_client, occ_start, occ_day FROM courts ORDER BY name`)
	if err != nil {
		return nil, ledger.StorageError("query courts", err)
	}
	defer rows.Close()

	var courts []occupancy.Court
	for rows.Next() {
		c, err := scanCourt(rows)
		if err != nil {
			return nil, err
		}
		courts = append(courts, c)
	}
	return courts, rows.Err()
}

func (s *Store) Court(ctx context.Context, id string) (*occupancy.Court, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, state, occ_client, occ_start, occ_day FROM courts WHERE id = ?`, id)
	if err != nil {
		return nil, ledger.StorageError("query court", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, ledger.StorageError("query court", err)
		}
		return nil, fmt.Errorf("court %s: %w", id, ledger.ErrNotFound)
	}
	c, err := scanCourt(rows)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCourt(rows *sql.Rows) (occupancy.Court, error) {
	var (
		c                 occupancy.Court
		state             string
		client, start, day sql.NullString
	)
	if err := rows.Scan(&c.ID, &c.Name, &state, &client, &start, &day); err != nil {
		return c, ledger.StorageError("scan court", err)
	}
	c.State = occupancy.CourtState(state)
	if c.State == occupancy.StateOccupied {
		c.Occupancy = &occupancy.Occupancy{
			Client: client.String,
			Start:  start.String,
			Day:    ledger.DayKey(day.String),
		}
	}
	return c, nil
}

func (s *Store) SaveCourt(ctx context.Context, c occupancy.Court) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var client, start, day any
	if c.Occupancy != nil {
		client, start, day = c.Occupancy.Client, c.Occupancy.Start, string(c.Occupancy.Day)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO courts (id, name, state, occ_client, occ_start, occ_day)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			state = excluded.state,
			occ_client = excluded.occ_client,
			occ_start = excluded.occ_start,
			occ_day = excluded.occ_day
	`, c.ID, c.Name, string(c.State), client, start, day)
	if err != nil {
		return ledger.StorageError("save court", err)
	}
	return nil
}

func (s *Store) EnsureCourts(ctx context.Context, courts []occupancy.Court) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range courts {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO courts (id, name, state) VALUES (?, ?, ?)`,
			c.ID, c.Name, string(occupancy.StateFree),
		)
		if err != nil {
			return ledger.StorageError("ensure courts", err)
		}
	}
	return nil
}

func (s *Store) SaveReservation(ctx context.Context, r occupancy.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reservations (id, court_id, client, day, start, end, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(court_id, day) DO UPDATE SET
			id = excluded.id,
			client = excluded.client,
			start = excluded.start,
			end = excluded.end,
			created_by = excluded.created_by,
			created_at = excluded.created_at
	`, r.ID, r.CourtID, r.Client, string(r.Day), r.Start, r.End, r.CreatedBy,
		r.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return ledger.StorageError("save reservation", err)
	}
	return nil
}

func (s *Store) DeleteReservation(ctx context.Context, courtID string, day ledger.DayKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM reservations WHERE court_id = ? AND day = ?`, courtID, string(day))
	if err != nil {
		return ledger.StorageError("delete reservation", err)
	}
	return nil
}

func (s *Store) ReservationsByDay(ctx context.Context, day ledger.DayKey) ([]occupancy.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, court_id, client, day, start, end, created_by, created_at
		FROM reservations WHERE day = ? ORDER BY start ASC
	`, string(day))
	if err != nil {
		return nil, ledger.StorageError("query reservations", err)
	}
	defer rows.Close()

	var reservations []occupancy.Reservation
	for rows.Next() {
		var (
			r         occupancy.Reservation
			d         string
			createdBy sql.NullString
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.CourtID, &r.Client, &d, &r.Start, &r.End,
			&createdBy, &createdAt); err != nil {
			return nil, ledger.StorageError("scan reservation", err)
		}
		r.Day = ledger.DayKey(d)
		r.CreatedBy = createdBy.String
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// =============================================================================
// SCHEDULE STORE (schedule.Store interface)
// =============================================================================

func (s *Store) Tournaments(ctx context.Context) ([]schedule.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTournaments(ctx,
		`SELECT id, name, day, courts_json, created_by, active
		 FROM tournaments WHERE active = 1 ORDER BY seq DESC`)
}

func (s *Store) Tournament(ctx context.Context, id string) (*schedule.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tournaments, err := s.queryTournaments(ctx,
		`SELECT id, name, day, courts_json, created_by, active FROM tournaments WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(tournaments) == 0 {
		return nil, fmt.Errorf("tournament %s: %w", id, ledger.ErrNotFound)
	}
	return &tournaments[0], nil
}

func (s *Store) SaveTournament(ctx context.Context, t schedule.Tournament) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	courtsJSON, err := json.Marshal(t.Courts)
	if err != nil {
		return ledger.StorageError("save tournament", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tournaments (id, name, day, courts_json, created_by, active, seq)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM tournaments))
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			day = excluded.day,
			courts_json = excluded.courts_json,
			active = excluded.active
	`, t.ID, t.Name, string(t.Day), string(courtsJSON), t.CreatedBy, boolToInt(t.Active))
	if err != nil {
		return ledger.StorageError("save tournament", err)
	}
	return nil
}

func (s *Store) queryTournaments(ctx context.Context, query string, args ...any) ([]schedule.Tournament, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.StorageError("query tournaments", err)
	}
	defer rows.Close()

	var tournaments []schedule.Tournament
	for rows.Next() {
		var (
			t          schedule.Tournament
			day        string
			courtsJSON string
			createdBy  sql.NullString
			active     int
		)
		if err := rows.Scan(&t.ID, &t.Name, &day, &courtsJSON, &createdBy, &active); err != nil {
			return nil, ledger.StorageError("scan tournament", err)
		}
		t.Day = ledger.DayKey(day)
		t.CreatedBy = createdBy.String
		t.Active = active != 0
		if err := json.Unmarshal([]byte(courtsJSON), &t.Courts); err != nil {
			return nil, ledger.StorageError("decode tournament courts", err)
		}
		tournaments = append(tournaments, t)
	}
	return tournaments, rows.Err()
}

func (s *Store) Referees(ctx context.Context) ([]schedule.Referee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryReferees(ctx,
		`SELECT id, name, phone, active FROM referees WHERE active = 1 ORDER BY seq DESC`)
}

func (s *Store) Referee(ctx context.Context, id string) (*schedule.Referee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	referees, err := s.queryReferees(ctx,
		`SELECT id, name, phone, active FROM referees WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(referees) == 0 {
		return nil, fmt.Errorf("referee %s: %w", id, ledger.ErrNotFound)
	}
	return &referees[0], nil
}

func (s *Store) SaveReferee(ctx context.Context, r schedule.Referee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO referees (id, name, phone, active, seq)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM referees))
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			active = excluded.active
	`, r.ID, r.Name, r.Phone, boolToInt(r.Active))
	if err != nil {
		return ledger.StorageError("save referee", err)
	}
	return nil
}

func (s *Store) queryReferees(ctx context.Context, query string, args ...any) ([]schedule.Referee, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.StorageError("query referees", err)
	}
	defer rows.Close()

	var referees []schedule.Referee
	for rows.Next() {
		var (
			r      schedule.Referee
			phone  sql.NullString
			active int
		)
		if err := rows.Scan(&r.ID, &r.Name, &phone, &active); err != nil {
			return nil, ledger.StorageError("scan referee", err)
		}
		r.Phone = phone.String
		r.Active = active != 0
		referees = append(referees, r)
	}
	return referees, rows.Err()
}

func (s *Store) Matches(ctx context.Context) ([]schedule.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryMatches(ctx,
		`SELECT id, referee_id, tournament_id, day, paid, payout_id, created_at
		 FROM matches ORDER BY created_at DESC`)
}

func (s *Store) Match(ctx context.Context, id string) (*schedule.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := s.queryMatches(ctx,
		`SELECT id, referee_id, tournament_id, day, paid, payout_id, created_at
		 FROM matches WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("match %s: %w", id, ledger.ErrNotFound)
	}
	return &matches[0], nil
}

func (s *Store) SaveMatch(ctx context.Context, m schedule.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (id, referee_id, tournament_id, day, paid, payout_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			paid = excluded.paid,
			payout_id = excluded.payout_id
	`, m.ID, m.RefereeID, m.TournamentID, string(m.Day), boolToInt(m.Paid), m.PayoutID,
		m.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return ledger.StorageError("save match", err)
	}
	return nil
}

func (s *Store) MatchesByDay(ctx context.Context, day ledger.DayKey) ([]schedule.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryMatches(ctx,
		`SELECT id, referee_id, tournament_id, day, paid, payout_id, created_at
		 FROM matches WHERE day = ? ORDER BY created_at DESC`, string(day))
}

func (s *Store) queryMatches(ctx context.Context, query string, args ...any) ([]schedule.Match, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.StorageError("query matches", err)
	}
	defer rows.Close()

	var matches []schedule.Match
	for rows.Next() {
		var (
			m            schedule.Match
			tournamentID sql.NullString
			day          string
			paid         int
			payoutID     sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&m.ID, &m.RefereeID, &tournamentID, &day, &paid,
			&payoutID, &createdAt); err != nil {
			return nil, ledger.StorageError("scan match", err)
		}
		m.TournamentID = tournamentID.String
		m.Day = ledger.DayKey(day)
		m.Paid = paid != 0
		m.PayoutID = payoutID.String
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// =============================================================================
// AUDIT LOG (ledger.AuditLog interface)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e ledger.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, at, actor, action, entity, entity_id, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.At.UTC().Format(time.RFC3339Nano), e.Actor, string(e.Action),
		e.Entity, e.EntityID, e.Note)
	if err != nil {
		return ledger.StorageError("append audit", err)
	}
	return nil
}

func (s *Store) RecentAudit(ctx context.Context, limit int) ([]ledger.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, at, actor, action, entity, entity_id, note
		FROM audit_log ORDER BY at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, ledger.StorageError("query audit", err)
	}
	defer rows.Close()

	var entries []ledger.AuditEntry
	for rows.Next() {
		var (
			e      ledger.AuditEntry
			at     string
			action string
		)
		if err := rows.Scan(&e.ID, &at, &e.Actor, &action, &e.Entity, &e.EntityID, &e.Note); err != nil {
			return nil, ledger.StorageError("scan audit", err)
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		e.Action = ledger.AuditAction(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (dev/demo only).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"movements", "closings", "courts", "reservations",
		"tournaments", "referees", "matches", "audit_log"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return ledger.StorageError("reset", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE day_state SET open_day = '', closed_days_json = '[]' WHERE id = 1`)
	if err != nil {
		return ledger.StorageError("reset", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
