/*
Package calendar computes Portuguese public holidays and business days.

PURPOSE:
  Leave requests are sized in business days: every calendar day that is
  neither Saturday, Sunday nor a public holiday. Holidays are derived per
  year, never stored. Four of them move with Easter, which is computed
  with the Gregorian computus (century, epact and lunar corrections), so
  no lookup table needs maintaining.

HOLIDAYS:
  Fixed:   Jan 1, Apr 25, May 1, Jun 10, Aug 15, Sep 7 (municipal),
           Oct 5, Nov 1, Dec 1, Dec 8, Dec 25
  Movable: Carnival (Easter-47), Good Friday (Easter-2), Easter Sunday,
           Corpus Christi (Easter+60)

MEMOIZATION:
  Calendar caches each year's list the first time it is asked for.
  Holidays(year) is the uncached pure function underneath.

SEE ALSO:
  - business.go: CountBusinessDays
  - ics.go: iCalendar feed of the holidays
*/
package calendar

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/warp/workday/generic"
)

// Supported year range. The computus below is valid for the Gregorian
// calendar, which starts in 1583 for our purposes.
const (
	MinYear = 1583
	MaxYear = 4099
)

// Holiday is one public holiday in a given year.
type Holiday struct {
	Day   int        `json:"day"`
	Month time.Month `json:"month"`
	Name  string     `json:"name"`
	Year  int        `json:"year"`
}

func (h Holiday) Date() generic.Date {
	return generic.Date{Year: h.Year, Month: h.Month, Day: h.Day}
}

type fixedHoliday struct {
	month time.Month
	day   int
	name  string
}

var fixedHolidays = []fixedHoliday{
	{time.January, 1, "New Year's Day"},
	{time.April, 25, "Freedom Day"},
	{time.May, 1, "Labour Day"},
	{time.June, 10, "National Day"},
	{time.August, 15, "Assumption"},
	{time.September, 7, "Municipal Holiday"},
	{time.October, 5, "Republic Day"},
	{time.November, 1, "All Saints' Day"},
	{time.December, 1, "Restoration of Independence"},
	{time.December, 8, "Immaculate Conception"},
	{time.December, 25, "Christmas Day"},
}

type movableHoliday struct {
	offset int // days from Easter Sunday
	name   string
}

var movableHolidays = []movableHoliday{
	{-47, "Carnival"},
	{-2, "Good Friday"},
	{0, "Easter Sunday"},
	{60, "Corpus Christi"},
}

// ValidateYear rejects years outside the supported Gregorian range.
func ValidateYear(year int) error {
	if year < MinYear || year > MaxYear {
		return &generic.ValidationError{
			Field:   "year",
			Message: "must be between " + strconv.Itoa(MinYear) + " and " + strconv.Itoa(MaxYear),
		}
	}
	return nil
}

// ParseYear parses and validates a year given as text.
func ParseYear(s string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &generic.ValidationError{Field: "year", Message: "not an integer: " + s}
	}
	if err := ValidateYear(year); err != nil {
		return 0, err
	}
	return year, nil
}

// Easter returns the date of Easter Sunday (anonymous Gregorian algorithm).
func Easter(year int) (generic.Date, error) {
	if err := ValidateYear(year); err != nil {
		return generic.Date{}, err
	}

	// a is the position in the Metonic cycle, b the century, d the skipped
	// leap years, f the lunar correction and h the epact.
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1

	return generic.Date{Year: year, Month: time.Month(month), Day: day}, nil
}

// Holidays returns the year's holidays in chronological order. It is a pure
// function; use Calendar for a memoized view.
func Holidays(year int) ([]Holiday, error) {
	easter, err := Easter(year)
	if err != nil {
		return nil, err
	}

	out := make([]Holiday, 0, len(fixedHolidays)+len(movableHolidays))
	for _, fh := range fixedHolidays {
		out = append(out, Holiday{Day: fh.day, Month: fh.month, Name: fh.name, Year: year})
	}
	for _, mh := range movableHolidays {
		d := easter.AddDays(mh.offset)
		out = append(out, Holiday{Day: d.Day, Month: d.Month, Name: mh.name, Year: year})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date().Before(out[j].Date())
	})
	return out, nil
}

// =============================================================================
// CALENDAR - Memoized holiday lookups
// =============================================================================

type yearEntry struct {
	holidays []Holiday
	byDate   map[generic.Date]string
}

// Calendar memoizes holidays per year. Safe for concurrent use.
type Calendar struct {
	mu    sync.RWMutex
	years map[int]*yearEntry
}

var _ generic.HolidayCalendar = (*Calendar)(nil)
var _ generic.BusinessDayCounter = (*Calendar)(nil)

func New() *Calendar {
	return &Calendar{years: make(map[int]*yearEntry)}
}

func (c *Calendar) entry(year int) (*yearEntry, error) {
	c.mu.RLock()
	e, ok := c.years[year]
	c.mu.RUnlock()
	if ok {
		return e, nil
	}

	holidays, err := Holidays(year)
	if err != nil {
		return nil, err
	}
	e = &yearEntry{holidays: holidays, byDate: make(map[generic.Date]string, len(holidays))}
	for _, h := range holidays {
		e.byDate[h.Date()] = h.Name
	}

	c.mu.Lock()
	if existing, ok := c.years[year]; ok {
		e = existing
	} else {
		c.years[year] = e
	}
	c.mu.Unlock()
	return e, nil
}

// Holidays returns a copy of the memoized list for the year.
func (c *Calendar) Holidays(year int) ([]Holiday, error) {
	e, err := c.entry(year)
	if err != nil {
		return nil, err
	}
	out := make([]Holiday, len(e.holidays))
	copy(out, e.holidays)
	return out, nil
}

// HolidayName returns the holiday falling on d, if any.
func (c *Calendar) HolidayName(d generic.Date) (string, bool) {
	e, err := c.entry(d.Year)
	if err != nil {
		return "", false
	}
	name, ok := e.byDate[d]
	return name, ok
}

// IsHoliday reports whether d is a public holiday. Dates outside the
// supported year range are never holidays.
func (c *Calendar) IsHoliday(d generic.Date) bool {
	_, ok := c.HolidayName(d)
	return ok
}
