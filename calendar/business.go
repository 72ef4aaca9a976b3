package calendar

import "github.com/warp/workday/generic"

// CountBusinessDays counts days in [start, end] that are neither weekend
// days nor holidays. Each day is checked against its own year's holidays,
// so ranges spanning New Year are handled.
//
// Zero is a legitimate answer; callers decide whether an empty range is
// an error for them.
func (c *Calendar) CountBusinessDays(start, end generic.Date) (int, error) {
	if end.Before(start) {
		return 0, &generic.InvalidRangeError{Start: start, End: end}
	}
	if err := ValidateYear(start.Year); err != nil {
		return 0, err
	}
	if err := ValidateYear(end.Year); err != nil {
		return 0, err
	}

	count := 0
	for d := start; !d.After(end); d = d.AddDays(1) {
		if d.IsBusinessDay(c) {
			count++
		}
	}
	return count, nil
}

// BusinessDays lists the business days in [start, end].
func (c *Calendar) BusinessDays(start, end generic.Date) ([]generic.Date, error) {
	if end.Before(start) {
		return nil, &generic.InvalidRangeError{Start: start, End: end}
	}
	var days []generic.Date
	for d := start; !d.After(end); d = d.AddDays(1) {
		if d.IsBusinessDay(c) {
			days = append(days, d)
		}
	}
	return days, nil
}
