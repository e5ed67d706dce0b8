/*
report.go - Daily and monthly aggregation

PURPOSE:
  Read-only reporting over the ledger. The daily view returns either a
  frozen closing or the live movement list; the monthly view merges raw
  movements with closed-day aggregates without double counting.

DUAL COUNTING:
  A movement is counted exactly once per month: while its day is live it
  appears raw; once the day closes, FreezeDay stamps ClosingDay on it
  and the month sums use the Closing aggregate instead. The classifier
  is the stored ClosingDay field, never a date-range re-derivation.

SEE ALSO:
  - types.go:     Classify, the shared income/expense rule
  - lifecycle.go: CloseDay, which produces the closings read here
*/
package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORTING ENGINE
// =============================================================================

// Reports aggregates ledger data. Read-only; safe for concurrent use.
type Reports struct {
	Store Store
	Loc   *time.Location
}

// NewReports builds the reporting engine. A nil loc means UTC.
func NewReports(store Store, loc *time.Location) *Reports {
	if loc == nil {
		loc = time.UTC
	}
	return &Reports{Store: store, Loc: loc}
}

// DailyReport is the caja view for one day.
type DailyReport struct {
	Day       DayKey
	Movements []Movement // newest first
	Closed    bool
	Closing   *Closing // nil while the day is live
}

// DailyCaja returns the day's movements plus its closing when frozen.
func (r *Reports) DailyCaja(ctx context.Context, day DayKey) (DailyReport, error) {
	movements, err := r.Store.MovementsByDay(ctx, day)
	if err != nil {
		return DailyReport{}, err
	}
	closing, err := r.Store.ClosingByDay(ctx, day)
	if err != nil {
		return DailyReport{}, err
	}
	return DailyReport{
		Day:       day,
		Movements: movements,
		Closed:    closing != nil,
		Closing:   closing,
	}, nil
}

// LineItem is one row of a monthly report: either a raw movement or the
// synthetic "day closed" entry standing in for a whole frozen day.
type LineItem struct {
	Day     DayKey
	At      time.Time
	Concept string
	Kind    MovementKind // empty for closing entries
	Amount  decimal.Decimal
	Closing bool
}

// MonthlyReport is the aggregate for one calendar month.
type MonthlyReport struct {
	Year      int
	Month     time.Month
	Income    decimal.Decimal
	Expense   decimal.Decimal
	Net       decimal.Decimal
	LineItems []LineItem // newest first
}

// Monthly sums (a) live movements of the month not yet absorbed by a
// closing and (b) every closing whose day falls in the month. Line
// items are the union of both, newest first.
func (r *Reports) Monthly(ctx context.Context, year int, month time.Month) (MonthlyReport, error) {
	from, to := MonthRange(year, month)

	movements, err := r.Store.MovementsInRange(ctx, from, to)
	if err != nil {
		return MonthlyReport{}, err
	}
	closings, err := r.Store.ClosingsInRange(ctx, from, to)
	if err != nil {
		return MonthlyReport{}, err
	}

	var live []Movement
	for _, m := range movements {
		if m.ClosingDay == "" {
			live = append(live, m)
		}
	}

	income, expense := Classify(live)
	items := make([]LineItem, 0, len(live)+len(closings))
	for _, m := range live {
		items = append(items, LineItem{
			Day:     m.Day(r.Loc),
			At:      m.PostedAt,
			Concept: m.Concept,
			Kind:    m.Kind,
			Amount:  m.Amount,
			Closing: false,
		})
	}
	for _, c := range closings {
		income = income.Add(c.IncomeTotal)
		expense = expense.Add(c.ExpenseTotal)
		items = append(items, LineItem{
			Day:     c.Day,
			At:      c.ClosedAt,
			Concept: "Day closed",
			Amount:  c.Net,
			Closing: true,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Day != items[j].Day {
			return items[i].Day > items[j].Day
		}
		return items[i].At.After(items[j].At)
	})

	return MonthlyReport{
		Year:      year,
		Month:     month,
		Income:    income,
		Expense:   expense,
		Net:       income.Sub(expense),
		LineItems: items,
	}, nil
}
