/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts cross the wire as strings with two decimal places ("240.00").
  Clients never see floats.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/courtside/club-engine/ledger"
	"github.com/courtside/club-engine/occupancy"
	"github.com/courtside/club-engine/schedule"
)

// =============================================================================
// AUTH
// =============================================================================

// LoginRequest carries credentials for /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse returns the signed token and the user's role.
type LoginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// =============================================================================
// DAY LIFECYCLE AND MOVEMENTS
// =============================================================================

// OpenDayRequest opens (or replaces) the business day.
type OpenDayRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
}

// CloseDayRequest closes the named business day.
type CloseDayRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
}

// PostMovementRequest posts a cash movement into the open day.
type PostMovementRequest struct {
	Concept string          `json:"concept"`
	Kind    string          `json:"kind"`
	Amount  string          `json:"amount"`
	Detail  *MovementDetail `json:"detail,omitempty"`
}

// MovementDetail is the union of the per-kind detail fields. Only the
// fields matching the movement kind are read.
type MovementDetail struct {
	CourtID      string `json:"court_id,omitempty"`
	Client       string `json:"client,omitempty"`
	Start        string `json:"start,omitempty"`
	RefereeID    string `json:"referee_id,omitempty"`
	MatchID      string `json:"match_id,omitempty"`
	TournamentID string `json:"tournament_id,omitempty"`
	Note         string `json:"note,omitempty"`
	Reference    string `json:"reference,omitempty"`
}

// MovementDTO represents a cash movement in API responses.
type MovementDTO struct {
	ID         string          `json:"id"`
	Concept    string          `json:"concept"`
	Kind       string          `json:"kind"`
	Amount     string          `json:"amount"`
	PostedAt   string          `json:"posted_at"`
	PostedBy   string          `json:"posted_by,omitempty"`
	Frozen     bool            `json:"frozen"`
	ClosingDay string          `json:"closing_day,omitempty"`
	Detail     *MovementDetail `json:"detail,omitempty"`
}

// ClosingDTO represents a day closing record.
type ClosingDTO struct {
	ID            string `json:"id"`
	Date          string `json:"date"`
	IncomeTotal   string `json:"income_total"`
	ExpenseTotal  string `json:"expense_total"`
	Net           string `json:"net"`
	MovementCount int    `json:"movement_count"`
	ClosedBy      string `json:"closed_by"`
	ClosedAt      string `json:"closed_at"`
}

// DayStateDTO reports which day is open and which days are closed.
type DayStateDTO struct {
	OpenDay    string   `json:"open_day,omitempty"`
	ClosedDays []string `json:"closed_days"`
}

// DailyReportDTO is the daily cash view.
type DailyReportDTO struct {
	Date      string        `json:"date"`
	Closed    bool          `json:"closed"`
	Closing   *ClosingDTO   `json:"closing,omitempty"`
	Movements []MovementDTO `json:"movements"`
}

// LineItemDTO is one monthly report line.
type LineItemDTO struct {
	Date    string `json:"date"`
	At      string `json:"at"`
	Concept string `json:"concept"`
	Kind    string `json:"kind,omitempty"`
	Amount  string `json:"amount"`
	Closing bool   `json:"closing"`
}

// MonthlyReportDTO is the month rollup.
type MonthlyReportDTO struct {
	Year      int           `json:"year"`
	Month     int           `json:"month"`
	Income    string        `json:"income"`
	Expense   string        `json:"expense"`
	Net       string        `json:"net"`
	LineItems []LineItemDTO `json:"line_items"`
}

// =============================================================================
// COURTS AND RESERVATIONS
// =============================================================================

// CourtDTO represents a court and its live occupancy.
type CourtDTO struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	State     string        `json:"state"`
	Occupancy *OccupancyDTO `json:"occupancy,omitempty"`
}

type OccupancyDTO struct {
	Client string `json:"client"`
	Start  string `json:"start,omitempty"`
	Date   string `json:"date"`
}

// BookCourtRequest books a court, optionally occupying it now and
// charging the rental.
type BookCourtRequest struct {
	Client string `json:"client"`
	Date   string `json:"date"` // YYYY-MM-DD
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
	Amount string `json:"amount,omitempty"`
	Occupy bool   `json:"occupy"`
}

// UpdateOccupancyRequest patches the live occupancy on a court.
type UpdateOccupancyRequest struct {
	Client *string `json:"client,omitempty"`
	Start  *string `json:"start,omitempty"`
}

// ReservationDTO represents a booking for a future (or current) day.
type ReservationDTO struct {
	ID        string `json:"id"`
	CourtID   string `json:"court_id"`
	Client    string `json:"client"`
	Date      string `json:"date"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at"`
}

// BookCourtResponse returns the court after booking plus the
// reservation record when one was written.
type BookCourtResponse struct {
	Court       CourtDTO        `json:"court"`
	Reservation *ReservationDTO `json:"reservation,omitempty"`
}

// =============================================================================
// TOURNAMENTS, REFEREES, MATCHES
// =============================================================================

type TournamentDTO struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Date      string   `json:"date"`
	Courts    []string `json:"courts"`
	CreatedBy string   `json:"created_by,omitempty"`
	Active    bool     `json:"active"`
}

type CreateTournamentRequest struct {
	Name   string   `json:"name"`
	Date   string   `json:"date"`
	Courts []string `json:"courts"`
}

type UpdateTournamentRequest struct {
	Name   *string   `json:"name,omitempty"`
	Date   *string   `json:"date,omitempty"`
	Courts *[]string `json:"courts,omitempty"`
}

type RefereeDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
	Active bool   `json:"active"`
}

type CreateRefereeRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type UpdateRefereeRequest struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

type MatchDTO struct {
	ID           string `json:"id"`
	RefereeID    string `json:"referee_id"`
	TournamentID string `json:"tournament_id,omitempty"`
	Date         string `json:"date"`
	Paid         bool   `json:"paid"`
	PayoutID     string `json:"payout_id,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type CreateMatchRequest struct {
	RefereeID    string `json:"referee_id"`
	TournamentID string `json:"tournament_id,omitempty"`
	Date         string `json:"date"`
}

// PayRefereeResponse returns the payout movement the payment posted.
type PayRefereeResponse struct {
	Match    MatchDTO    `json:"match"`
	Movement MovementDTO `json:"movement"`
}

// CalendarDTO is the per-day schedule view.
type CalendarDTO struct {
	Date         string           `json:"date"`
	Reservations []ReservationDTO `json:"reservations"`
	Occupied     []CourtDTO       `json:"occupied"`
	Matches      []MatchDTO       `json:"matches"`
	Tournaments  []TournamentDTO  `json:"tournaments"`
}

// =============================================================================
// AUDIT
// =============================================================================

type AuditEntryDTO struct {
	ID       string `json:"id"`
	At       string `json:"at"`
	Actor    string `json:"actor,omitempty"`
	Action   string `json:"action"`
	Entity   string `json:"entity,omitempty"`
	EntityID string `json:"entity_id,omitempty"`
	Note     string `json:"note,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func amountString(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func timeString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toMovementDTO(m ledger.Movement) MovementDTO {
	dto := MovementDTO{
		ID:         m.ID,
		Concept:    m.Concept,
		Kind:       string(m.Kind),
		Amount:     amountString(m.Amount),
		PostedAt:   timeString(m.PostedAt),
		PostedBy:   m.PostedBy,
		Frozen:     m.Frozen,
		ClosingDay: string(m.ClosingDay),
	}
	switch d := m.Detail.(type) {
	case ledger.RentalDetail:
		dto.Detail = &MovementDetail{
			CourtID:   d.CourtID,
			Client:    d.Client,
			Start:     d.Start,
			Reference: d.Reference,
		}
	case ledger.RefereePayoutDetail:
		dto.Detail = &MovementDetail{
			MatchID:      d.MatchID,
			RefereeID:    d.RefereeID,
			TournamentID: d.TournamentID,
		}
	case ledger.TournamentSaleDetail:
		dto.Detail = &MovementDetail{TournamentID: d.TournamentID, Reference: d.Reference}
	case ledger.ManualDetail:
		dto.Detail = &MovementDetail{Note: d.Note, Reference: d.Reference}
	}
	return dto
}

func toClosingDTO(c ledger.Closing) ClosingDTO {
	return ClosingDTO{
		ID:            c.ID,
		Date:          string(c.Day),
		IncomeTotal:   amountString(c.IncomeTotal),
		ExpenseTotal:  amountString(c.ExpenseTotal),
		Net:           amountString(c.Net),
		MovementCount: c.MovementCount,
		ClosedBy:      c.ClosedBy,
		ClosedAt:      timeString(c.ClosedAt),
	}
}

func toCourtDTO(c occupancy.Court) CourtDTO {
	dto := CourtDTO{ID: c.ID, Name: c.Name, State: string(c.State)}
	if c.Occupancy != nil {
		dto.Occupancy = &OccupancyDTO{
			Client: c.Occupancy.Client,
			Start:  c.Occupancy.Start,
			Date:   string(c.Occupancy.Day),
		}
	}
	return dto
}

func toReservationDTO(r occupancy.Reservation) ReservationDTO {
	return ReservationDTO{
		ID:        r.ID,
		CourtID:   r.CourtID,
		Client:    r.Client,
		Date:      string(r.Day),
		Start:     r.Start,
		End:       r.End,
		CreatedBy: r.CreatedBy,
		CreatedAt: timeString(r.CreatedAt),
	}
}

func toTournamentDTO(t schedule.Tournament) TournamentDTO {
	courts := t.Courts
	if courts == nil {
		courts = []string{}
	}
	return TournamentDTO{
		ID:        t.ID,
		Name:      t.Name,
		Date:      string(t.Day),
		Courts:    courts,
		CreatedBy: t.CreatedBy,
		Active:    t.Active,
	}
}

func toRefereeDTO(r schedule.Referee) RefereeDTO {
	return RefereeDTO{ID: r.ID, Name: r.Name, Phone: r.Phone, Active: r.Active}
}

func toMatchDTO(m schedule.Match) MatchDTO {
	return MatchDTO{
		ID:           m.ID,
		RefereeID:    m.RefereeID,
		TournamentID: m.TournamentID,
		Date:         string(m.Day),
		Paid:         m.Paid,
		PayoutID:     m.PayoutID,
		CreatedAt:    timeString(m.CreatedAt),
	}
}

func toAuditDTO(e ledger.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:       e.ID,
		At:       timeString(e.At),
		Actor:    e.Actor,
		Action:   string(e.Action),
		Entity:   e.Entity,
		EntityID: e.EntityID,
		Note:     e.Note,
	}
}
