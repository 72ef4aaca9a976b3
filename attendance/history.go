package attendance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/workday/generic"
)

// ListForDate returns the employee's sessions whose work date is date.
func (s *Service) ListForDate(ctx context.Context, actor generic.Actor, employeeID generic.EmployeeID, date generic.Date) ([]Session, error) {
	return s.ListRange(ctx, actor, employeeID, date, date)
}

// ListRange returns the employee's sessions with work dates in [from, to].
func (s *Service) ListRange(ctx context.Context, actor generic.Actor, employeeID generic.EmployeeID, from, to generic.Date) ([]Session, error) {
	if err := authorizeFor(actor, employeeID); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, &generic.InvalidRangeError{Start: from, End: to}
	}
	out, err := s.Store.ListSessions(ctx, SessionFilter{EmployeeID: employeeID, From: from, To: to})
	if err != nil {
		return nil, generic.WrapStorage("list sessions", err)
	}
	return out, nil
}

// =============================================================================
// MONTHLY SUMMARY
// =============================================================================

type DaySummary struct {
	Date          generic.Date
	Sessions      int
	WorkedSeconds int64
	// Qualifies is true when the day counts towards the stipend.
	Qualifies bool
}

type MonthlySummary struct {
	EmployeeID         generic.EmployeeID
	Year               int
	Month              time.Month
	Days               []DaySummary
	TotalWorkedSeconds int64
	DaysWorked         int
	DailyStipend       decimal.Decimal
	Stipend            decimal.Decimal
}

// MonthlySummary totals closed sessions per work date. Open sessions are
// left out until they are finished or reconciled.
func (s *Service) MonthlySummary(ctx context.Context, actor generic.Actor, employeeID generic.EmployeeID, year int, month time.Month) (*MonthlySummary, error) {
	if err := authorizeFor(actor, employeeID); err != nil {
		return nil, err
	}
	if month < time.January || month > time.December {
		return nil, &generic.ValidationError{Field: "month", Message: "must be between 1 and 12"}
	}

	sessions, err := s.Store.ListSessions(ctx, SessionFilter{
		EmployeeID: employeeID,
		From:       generic.StartOfMonth(year, month),
		To:         generic.EndOfMonth(year, month),
		ClosedOnly: true,
	})
	if err != nil {
		return nil, generic.WrapStorage("list sessions", err)
	}

	summary := &MonthlySummary{
		EmployeeID:   employeeID,
		Year:         year,
		Month:        month,
		DailyStipend: s.DailyStipend,
		Stipend:      decimal.Zero,
	}
	index := make(map[generic.Date]int)
	for i := range sessions {
		sess := &sessions[i]
		pos, ok := index[sess.WorkDate]
		if !ok {
			pos = len(summary.Days)
			index[sess.WorkDate] = pos
			summary.Days = append(summary.Days, DaySummary{Date: sess.WorkDate})
		}
		worked := int64(sess.Elapsed(*sess.EndTime) / time.Second)
		summary.Days[pos].Sessions++
		summary.Days[pos].WorkedSeconds += worked
		summary.TotalWorkedSeconds += worked
	}

	threshold := int64(s.MinWorkedMinutes) * 60
	for i := range summary.Days {
		day := &summary.Days[i]
		if day.WorkedSeconds > 0 && day.WorkedSeconds >= threshold {
			day.Qualifies = true
			summary.DaysWorked++
		}
	}
	summary.Stipend = s.DailyStipend.Mul(decimal.NewFromInt(int64(summary.DaysWorked)))
	return summary, nil
}
