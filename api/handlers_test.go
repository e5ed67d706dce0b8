package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/club-engine/api"
	"github.com/courtside/club-engine/config"
	"github.com/courtside/club-engine/ledger"
	"github.com/courtside/club-engine/occupancy"
	"github.com/courtside/club-engine/schedule"
	"github.com/courtside/club-engine/store/memory"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testDate = "2026-03-10"

type testServer struct {
	srv  *httptest.Server
	days *ledger.Controller
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()

	auth := api.NewAuthenticator(config.AuthConfig{
		JWTSecret:   "test-secret",
		TokenExpiry: "1h",
		Users: []config.UserConfig{
			{Username: "ana", Password: "owner-pass", Role: config.RoleOwner},
			{Username: "luis", Password: "staff-pass", Role: config.RoleStaff},
		},
	})

	days := ledger.NewController(store, auth, store, time.UTC)
	at, err := time.Parse(time.RFC3339, testDate+"T14:00:00Z")
	require.NoError(t, err)
	days.SetClock(func() time.Time { return at })

	require.NoError(t, store.EnsureCourts(context.Background(), []occupancy.Court{
		{ID: "court-1", Name: "Court 1"},
		{ID: "court-2", Name: "Court 2"},
	}))

	reports := ledger.NewReports(store, time.UTC)
	courts := occupancy.NewManager(store, days, store)
	fee, _ := decimal.NewFromString("240.00")
	sched := schedule.NewService(store, days, courts, fee, store)

	handler := api.NewHandler(days, reports, courts, sched, store, auth)
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, days: days}
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := ts.do(t, "", http.MethodPost, "/api/login", api.LoginRequest{
		Username: username, Password: password,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out api.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Token
}

func (ts *testServer) do(t *testing.T, token, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	// Bad credentials
	resp := ts.do(t, "", http.MethodPost, "/api/login", api.LoginRequest{
		Username: "ana", Password: "wrong",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Good credentials
	token := ts.login(t, "ana", "owner-pass")
	assert.NotEmpty(t, token)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "", http.MethodGet, "/api/courts", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, "not-a-token", http.MethodGet, "/api/courts", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.srv.Client().Get(ts.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ts.srv.Client().Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// DAY FLOW
// =============================================================================

func TestDayFlow_OpenPostClose(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.login(t, "ana", "owner-pass")
	staff := ts.login(t, "luis", "staff-pass")

	// Staff cannot open the day
	resp := ts.do(t, staff, http.MethodPost, "/api/caja/open", api.OpenDayRequest{Date: testDate})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Owner opens it
	resp = ts.do(t, owner, http.MethodPost, "/api/caja/open", api.OpenDayRequest{Date: testDate})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Staff posts a rental
	resp = ts.do(t, staff, http.MethodPost, "/api/caja/movements", api.PostMovementRequest{
		Concept: "Court rental",
		Kind:    "rental",
		Amount:  "240.00",
		Detail:  &api.MovementDetail{CourtID: "court-1", Client: "Garcia"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	movement := decode[api.MovementDTO](t, resp)
	assert.Equal(t, "240.00", movement.Amount)
	assert.Equal(t, "luis", movement.PostedBy)

	// Daily view shows the live movement
	resp = ts.do(t, staff, http.MethodGet, "/api/caja?date="+testDate, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	daily := decode[api.DailyReportDTO](t, resp)
	assert.False(t, daily.Closed)
	require.Len(t, daily.Movements, 1)

	// Staff cannot close
	resp = ts.do(t, staff, http.MethodPost, "/api/caja/close", api.CloseDayRequest{Date: testDate})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Owner closes and gets the totals
	resp = ts.do(t, owner, http.MethodPost, "/api/caja/close", api.CloseDayRequest{Date: testDate})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	closing := decode[api.ClosingDTO](t, resp)
	assert.Equal(t, "240.00", closing.IncomeTotal)
	assert.Equal(t, "0.00", closing.ExpenseTotal)
	assert.Equal(t, "240.00", closing.Net)
	assert.Equal(t, 1, closing.MovementCount)

	// Posting after close: no day is open any more, 409
	resp = ts.do(t, staff, http.MethodPost, "/api/caja/movements", api.PostMovementRequest{
		Concept: "Late rental", Kind: "rental", Amount: "100.00",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Reopening the closed day is rejected forever
	resp = ts.do(t, owner, http.MethodPost, "/api/caja/open", api.OpenDayRequest{Date: testDate})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPostMovement_Validation(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.login(t, "ana", "owner-pass")

	resp := ts.do(t, owner, http.MethodPost, "/api/caja/movements", api.PostMovementRequest{
		Concept: "Mystery", Kind: "bribe", Amount: "100.00",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, owner, http.MethodPost, "/api/caja/movements", api.PostMovementRequest{
		Concept: "Court rental", Kind: "rental", Amount: "lots",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// COURTS
// =============================================================================

func TestBookCourt_ConflictSurfacesAs409(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.login(t, "ana", "owner-pass")

	resp := ts.do(t, owner, http.MethodPost, "/api/caja/open", api.OpenDayRequest{Date: testDate})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	book := api.BookCourtRequest{Client: "Garcia", Date: testDate, Amount: "240.00", Occupy: true}
	resp = ts.do(t, owner, http.MethodPost, "/api/courts/court-1/book", book)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	booked := decode[api.BookCourtResponse](t, resp)
	assert.Equal(t, "Occupied", booked.Court.State)

	// Same court again: conflict
	book.Client = "Lopez"
	resp = ts.do(t, owner, http.MethodPost, "/api/courts/court-1/book", book)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Unknown court: not found
	resp = ts.do(t, owner, http.MethodPost, "/api/courts/court-99/book", book)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Release frees it
	resp = ts.do(t, owner, http.MethodPost, "/api/courts/court-1/release", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	released := decode[api.CourtDTO](t, resp)
	assert.Equal(t, "Free", released.State)
}

func TestRefereePayFlow(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.login(t, "ana", "owner-pass")

	resp := ts.do(t, owner, http.MethodPost, "/api/caja/open", api.OpenDayRequest{Date: testDate})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, owner, http.MethodPost, "/api/referees", api.CreateRefereeRequest{Name: "Martinez"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ref := decode[api.RefereeDTO](t, resp)

	resp = ts.do(t, owner, http.MethodPost, "/api/matches", api.CreateMatchRequest{
		RefereeID: ref.ID, Date: testDate,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	match := decode[api.MatchDTO](t, resp)

	resp = ts.do(t, owner, http.MethodPost, "/api/matches/"+match.ID+"/pay", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	paid := decode[api.PayRefereeResponse](t, resp)
	assert.True(t, paid.Match.Paid)
	assert.Equal(t, "-240.00", paid.Movement.Amount)

	// Double pay: conflict
	resp = ts.do(t, owner, http.MethodPost, "/api/matches/"+match.ID+"/pay", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
