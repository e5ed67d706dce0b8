/*
handlers.go - HTTP API handlers for the club cash and court engine

PURPOSE:
  Exposes the day lifecycle, cash ledger, court occupancy, and schedule
  via REST. Handles HTTP request/response, JSON serialization, and
  delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/login                 Issue a JWT

  Day / cash:
    GET    /api/caja                  Day state + open day's movements
    POST   /api/caja/open             Open a business day (owner)
    POST   /api/caja/close            Close a business day (owner)
    POST   /api/caja/movements        Post a cash movement
    GET    /api/reports/monthly       Month rollup

  Courts:
    GET    /api/courts                Courts and live occupancy
    POST   /api/courts/{id}/book      Book (occupy or reserve)
    PATCH  /api/courts/{id}/occupancy Edit live occupancy
    POST   /api/courts/{id}/release   Vacate a court

  Schedule:
    GET    /api/calendar              Day view
    CRUD   /api/tournaments, /api/referees
    POST   /api/matches, /api/matches/{id}/pay

  Audit:
    GET    /api/audit                 Recent operator actions

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing/invalid token
  - 403: Role does not allow the operation
  - 404: Resource not found
  - 409: Conflict (day closed, court occupied, already paid)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Login and token middleware
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/courtside/club-engine/ledger"
	"github.com/courtside/club-engine/occupancy"
	"github.com/courtside/club-engine/schedule"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Days     *ledger.Controller
	Reports  *ledger.Reports
	Courts   *occupancy.Manager
	Schedule *schedule.Service
	Audit    ledger.AuditLog
	Auth     *Authenticator
}

// NewHandler creates a handler wired to the domain services.
func NewHandler(days *ledger.Controller, reports *ledger.Reports, courts *occupancy.Manager,
	sched *schedule.Service, audit ledger.AuditLog, auth *Authenticator) *Handler {
	return &Handler{
		Days:     days,
		Reports:  reports,
		Courts:   courts,
		Schedule: sched,
		Audit:    audit,
		Auth:     auth,
	}
}

// =============================================================================
// AUTH
// =============================================================================

// Login handles POST /api/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	token, role, ok := h.Auth.Login(req.Username, req.Password)
	if !ok {
		metricLogins.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	metricLogins.WithLabelValues("accepted").Inc()
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, Role: role})
}

// =============================================================================
// DAY LIFECYCLE AND CASH
// =============================================================================

// GetCaja handles GET /api/caja. With ?date= it reports that day,
// otherwise the currently open day (or just the state when none is).
func (h *Handler) GetCaja(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r, "date")
	if !ok {
		return
	}
	if day == "" {
		open, err := h.Days.OpenDayKey(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load day state", err)
			return
		}
		if open == "" {
			writeJSON(w, http.StatusOK, DailyReportDTO{Movements: []MovementDTO{}})
			return
		}
		day = open
	}

	report, err := h.Reports.DailyCaja(r.Context(), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build daily report", err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyReportDTO(report))
}

// GetDayState handles GET /api/caja/state.
func (h *Handler) GetDayState(w http.ResponseWriter, r *http.Request) {
	state, err := h.Reports.Store.LoadDayState(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load day state", err)
		return
	}
	closed := make([]string, 0, len(state.ClosedDays))
	for _, d := range state.ClosedDays {
		closed = append(closed, string(d))
	}
	writeJSON(w, http.StatusOK, DayStateDTO{OpenDay: string(state.OpenDay), ClosedDays: closed})
}

// OpenDay handles POST /api/caja/open.
func (h *Handler) OpenDay(w http.ResponseWriter, r *http.Request) {
	var req OpenDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	day, err := ledger.ParseDayKey(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	if err := h.Days.OpenDay(r.Context(), day, actorFrom(r)); err != nil {
		h.writeDomainError(w, "Failed to open day", err)
		return
	}
	writeJSON(w, http.StatusOK, DayStateDTO{OpenDay: string(day), ClosedDays: []string{}})
}

// CloseDay handles POST /api/caja/close.
func (h *Handler) CloseDay(w http.ResponseWriter, r *http.Request) {
	var req CloseDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	day, err := ledger.ParseDayKey(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	closing, err := h.Days.CloseDay(r.Context(), day, actorFrom(r))
	if err != nil {
		h.writeDomainError(w, "Failed to close day", err)
		return
	}
	metricDaysClosed.Inc()
	writeJSON(w, http.StatusOK, toClosingDTO(closing))
}

// PostMovement handles POST /api/caja/movements.
func (h *Handler) PostMovement(w http.ResponseWriter, r *http.Request) {
	var req PostMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	kind := ledger.MovementKind(req.Kind)
	if !ledger.ValidKind(kind) {
		writeError(w, http.StatusBadRequest, "Unknown movement kind", nil)
		return
	}
	if req.Concept == "" {
		writeError(w, http.StatusBadRequest, "Concept is required", nil)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	movement, err := h.Days.PostMovement(r.Context(), ledger.MovementInput{
		Concept: req.Concept,
		Kind:    kind,
		Amount:  amount,
		Detail:  toDomainDetail(kind, req.Detail),
		Actor:   actorFrom(r),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to post movement", err)
		return
	}
	metricMovementsPosted.WithLabelValues(string(kind)).Inc()
	writeJSON(w, http.StatusCreated, toMovementDTO(movement))
}

// MonthlyReport handles GET /api/reports/monthly?year=&month=.
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 2000 || year > 2200 {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	monthNum, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || monthNum < 1 || monthNum > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	report, err := h.Reports.Monthly(r.Context(), year, time.Month(monthNum))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build monthly report", err)
		return
	}

	items := make([]LineItemDTO, 0, len(report.LineItems))
	for _, it := range report.LineItems {
		items = append(items, LineItemDTO{
			Date:    string(it.Day),
			At:      timeString(it.At),
			Concept: it.Concept,
			Kind:    string(it.Kind),
			Amount:  amountString(it.Amount),
			Closing: it.Closing,
		})
	}
	writeJSON(w, http.StatusOK, MonthlyReportDTO{
		Year:      report.Year,
		Month:     int(report.Month),
		Income:    amountString(report.Income),
		Expense:   amountString(report.Expense),
		Net:       amountString(report.Net),
		LineItems: items,
	})
}

// =============================================================================
// COURTS
// =============================================================================

// ListCourts handles GET /api/courts.
func (h *Handler) ListCourts(w http.ResponseWriter, r *http.Request) {
	courts, err := h.Courts.Courts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list courts", err)
		return
	}
	dtos := make([]CourtDTO, 0, len(courts))
	for _, c := range courts {
		dtos = append(dtos, toCourtDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// BookCourt handles POST /api/courts/{id}/book.
func (h *Handler) BookCourt(w http.ResponseWriter, r *http.Request) {
	courtID := chi.URLParam(r, "id")

	var req BookCourtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Client == "" {
		writeError(w, http.StatusBadRequest, "Client is required", nil)
		return
	}
	day, err := ledger.ParseDayKey(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	amount := decimal.Zero
	if req.Amount != "" {
		amount, err = decimal.NewFromString(req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
	}

	court, reservation, err := h.Courts.Book(r.Context(), occupancy.BookingRequest{
		CourtID: courtID,
		Client:  req.Client,
		Day:     day,
		Start:   req.Start,
		End:     req.End,
		Amount:  amount,
		Occupy:  req.Occupy,
		Actor:   actorFrom(r),
	})
	if err != nil {
		metricBookings.WithLabelValues("rejected").Inc()
		h.writeDomainError(w, "Failed to book court", err)
		return
	}
	metricBookings.WithLabelValues("accepted").Inc()
	if amount.IsPositive() && req.Occupy {
		metricMovementsPosted.WithLabelValues(string(ledger.KindRental)).Inc()
	}

	resp := BookCourtResponse{}
	if court != nil {
		resp.Court = toCourtDTO(*court)
	}
	if reservation != nil {
		dto := toReservationDTO(*reservation)
		resp.Reservation = &dto
	}
	writeJSON(w, http.StatusCreated, resp)
}

// UpdateOccupancy handles PATCH /api/courts/{id}/occupancy.
func (h *Handler) UpdateOccupancy(w http.ResponseWriter, r *http.Request) {
	courtID := chi.URLParam(r, "id")

	var req UpdateOccupancyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	court, err := h.Courts.UpdateOccupancy(r.Context(), courtID, occupancy.OccupancyPatch{
		Client: req.Client,
		Start:  req.Start,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to update occupancy", err)
		return
	}
	writeJSON(w, http.StatusOK, toCourtDTO(*court))
}

// ReleaseCourt handles POST /api/courts/{id}/release.
func (h *Handler) ReleaseCourt(w http.ResponseWriter, r *http.Request) {
	courtID := chi.URLParam(r, "id")

	court, err := h.Courts.Release(r.Context(), courtID, actorFrom(r))
	if err != nil {
		h.writeDomainError(w, "Failed to release court", err)
		return
	}
	writeJSON(w, http.StatusOK, toCourtDTO(*court))
}

// =============================================================================
// SCHEDULE
// =============================================================================

// Calendar handles GET /api/calendar?date=.
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r, "date")
	if !ok {
		return
	}
	if day == "" {
		day = ledger.DayKeyOf(time.Now(), h.Days.Location())
	}

	view, err := h.Schedule.Calendar(r.Context(), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build calendar", err)
		return
	}

	dto := CalendarDTO{
		Date:         string(view.Day),
		Reservations: []ReservationDTO{},
		Occupied:     []CourtDTO{},
		Matches:      []MatchDTO{},
		Tournaments:  []TournamentDTO{},
	}
	for _, res := range view.Reservations {
		dto.Reservations = append(dto.Reservations, toReservationDTO(res))
	}
	for _, c := range view.Occupied {
		dto.Occupied = append(dto.Occupied, toCourtDTO(c))
	}
	for _, m := range view.Matches {
		dto.Matches = append(dto.Matches, toMatchDTO(m))
	}
	for _, t := range view.Tournaments {
		dto.Tournaments = append(dto.Tournaments, toTournamentDTO(t))
	}
	writeJSON(w, http.StatusOK, dto)
}

// ListTournaments handles GET /api/tournaments.
func (h *Handler) ListTournaments(w http.ResponseWriter, r *http.Request) {
	tournaments, err := h.Schedule.Tournaments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tournaments", err)
		return
	}
	dtos := make([]TournamentDTO, 0, len(tournaments))
	for _, t := range tournaments {
		dtos = append(dtos, toTournamentDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTournament handles POST /api/tournaments.
func (h *Handler) CreateTournament(w http.ResponseWriter, r *http.Request) {
	var req CreateTournamentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}
	day, err := ledger.ParseDayKey(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	t, err := h.Schedule.CreateTournament(r.Context(), req.Name, day, req.Courts, actorFrom(r))
	if err != nil {
		h.writeDomainError(w, "Failed to create tournament", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTournamentDTO(t))
}

// UpdateTournament handles PUT /api/tournaments/{id}.
func (h *Handler) UpdateTournament(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateTournamentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	patch := schedule.TournamentPatch{Name: req.Name}
	if req.Date != nil {
		day, err := ledger.ParseDayKey(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
		patch.Day = &day
	}
	if req.Courts != nil {
		patch.Courts = *req.Courts
	}

	t, err := h.Schedule.UpdateTournament(r.Context(), id, patch)
	if err != nil {
		h.writeDomainError(w, "Failed to update tournament", err)
		return
	}
	writeJSON(w, http.StatusOK, toTournamentDTO(t))
}

// DeleteTournament handles DELETE /api/tournaments/{id}.
func (h *Handler) DeleteTournament(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Schedule.DeleteTournament(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to delete tournament", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListReferees handles GET /api/referees.
func (h *Handler) ListReferees(w http.ResponseWriter, r *http.Request) {
	referees, err := h.Schedule.Referees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list referees", err)
		return
	}
	dtos := make([]RefereeDTO, 0, len(referees))
	for _, ref := range referees {
		dtos = append(dtos, toRefereeDTO(ref))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateReferee handles POST /api/referees.
func (h *Handler) CreateReferee(w http.ResponseWriter, r *http.Request) {
	var req CreateRefereeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}

	ref, err := h.Schedule.CreateReferee(r.Context(), req.Name, req.Phone)
	if err != nil {
		h.writeDomainError(w, "Failed to create referee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRefereeDTO(ref))
}

// UpdateReferee handles PUT /api/referees/{id}.
func (h *Handler) UpdateReferee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateRefereeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ref, err := h.Schedule.UpdateReferee(r.Context(), id, schedule.RefereePatch{
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to update referee", err)
		return
	}
	writeJSON(w, http.StatusOK, toRefereeDTO(ref))
}

// DeleteReferee handles DELETE /api/referees/{id}.
func (h *Handler) DeleteReferee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Schedule.DeleteReferee(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to delete referee", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateMatch handles POST /api/matches.
func (h *Handler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.RefereeID == "" {
		writeError(w, http.StatusBadRequest, "Referee ID is required", nil)
		return
	}
	day, err := ledger.ParseDayKey(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	match, err := h.Schedule.CreateMatch(r.Context(), req.RefereeID, req.TournamentID, day)
	if err != nil {
		h.writeDomainError(w, "Failed to create match", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMatchDTO(match))
}

// PayReferee handles POST /api/matches/{id}/pay.
func (h *Handler) PayReferee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	movement, err := h.Schedule.PayReferee(r.Context(), id, actorFrom(r))
	if err != nil {
		h.writeDomainError(w, "Failed to pay referee", err)
		return
	}
	metricMovementsPosted.WithLabelValues(string(ledger.KindRefereePayout)).Inc()

	match, err := h.Schedule.Match(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load match", err)
		return
	}
	writeJSON(w, http.StatusOK, PayRefereeResponse{
		Match:    toMatchDTO(*match),
		Movement: toMovementDTO(movement),
	})
}

// =============================================================================
// AUDIT
// =============================================================================

// RecentAudit handles GET /api/audit?limit=.
func (h *Handler) RecentAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	entries, err := h.Audit.RecentAudit(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audit entries", err)
		return
	}
	dtos := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toAuditDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// dayParam parses an optional YYYY-MM-DD query parameter. The bool is
// false when the handler already wrote a 400.
func (h *Handler) dayParam(w http.ResponseWriter, r *http.Request, name string) (ledger.DayKey, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return "", true
	}
	day, err := ledger.ParseDayKey(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name+" (use YYYY-MM-DD)", err)
		return "", false
	}
	return day, true
}

// writeDomainError maps domain sentinels onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		writeError(w, http.StatusForbidden, message, err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func toDailyReportDTO(report ledger.DailyReport) DailyReportDTO {
	dto := DailyReportDTO{
		Date:      string(report.Day),
		Closed:    report.Closed,
		Movements: []MovementDTO{},
	}
	if report.Closing != nil {
		c := toClosingDTO(*report.Closing)
		dto.Closing = &c
	}
	for _, m := range report.Movements {
		dto.Movements = append(dto.Movements, toMovementDTO(m))
	}
	return dto
}

// toDomainDetail maps the wire detail union onto the per-kind variant.
func toDomainDetail(kind ledger.MovementKind, d *MovementDetail) ledger.Detail {
	if d == nil {
		return nil
	}
	switch kind {
	case ledger.KindRental:
		return ledger.RentalDetail{
			CourtID:   d.CourtID,
			Client:    d.Client,
			Start:     d.Start,
			Reference: d.Reference,
		}
	case ledger.KindRefereePayout:
		return ledger.RefereePayoutDetail{
			MatchID:      d.MatchID,
			RefereeID:    d.RefereeID,
			TournamentID: d.TournamentID,
		}
	case ledger.KindTournamentSale:
		return ledger.TournamentSaleDetail{TournamentID: d.TournamentID, Reference: d.Reference}
	case ledger.KindManual:
		return ledger.ManualDetail{Note: d.Note, Reference: d.Reference}
	default:
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
