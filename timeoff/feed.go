package timeoff

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/workday/calendar"
	"github.com/warp/workday/generic"
)

// CalendarFeed renders the employee's approved leave as an iCalendar
// document. Requests awaiting cancellation are still on the calendar.
func (s *Service) CalendarFeed(ctx context.Context, actor generic.Actor, employeeID generic.EmployeeID) (string, error) {
	requests, err := s.List(ctx, actor, Filter{
		EmployeeID: employeeID,
		States:     []State{StateApproved, StateCancellationRequested},
	})
	if err != nil {
		return "", err
	}

	feed := calendar.NewFeed("Leave "+string(employeeID), s.now())
	for _, r := range requests {
		summary := kindLabel(r.Kind)
		if r.IsPartialDay {
			summary = fmt.Sprintf("%s %s-%s", summary, r.PartialStart, r.PartialEnd)
		}
		if r.State == StateCancellationRequested {
			summary += " (cancellation requested)"
		}
		feed.AddAllDay(fmt.Sprintf("leave-%s@workday", r.ID), summary, r.Note, r.StartDate, r.EndDate)
	}
	return feed.Serialize(), nil
}

func kindLabel(k Kind) string {
	words := strings.Split(string(k), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
