package calendar

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/warp/workday/generic"
)

const productID = "-//warp//workday//EN"

// Feed builds an iCalendar document of all-day events.
type Feed struct {
	cal   *ics.Calendar
	stamp time.Time
}

// NewFeed starts a published calendar named name. stamp is used as DTSTAMP
// on every event.
func NewFeed(name string, stamp time.Time) *Feed {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(name)
	return &Feed{cal: cal, stamp: stamp.UTC()}
}

// AddAllDay adds an event covering [first, last] inclusive.
func (f *Feed) AddAllDay(uid, summary, description string, first, last generic.Date) {
	ev := f.cal.AddEvent(uid)
	ev.SetDtStampTime(f.stamp)
	ev.SetSummary(summary)
	if description != "" {
		ev.SetDescription(description)
	}
	ev.SetAllDayStartAt(first.In(time.UTC))
	// DTEND of an all-day event is exclusive.
	ev.SetAllDayEndAt(last.AddDays(1).In(time.UTC))
}

func (f *Feed) Serialize() string { return f.cal.Serialize() }

// ICS renders the holidays of a year as an iCalendar feed.
func (c *Calendar) ICS(year int, stamp time.Time) (string, error) {
	holidays, err := c.Holidays(year)
	if err != nil {
		return "", err
	}
	feed := NewFeed(fmt.Sprintf("Public holidays %d", year), stamp)
	for _, h := range holidays {
		d := h.Date()
		feed.AddAllDay(fmt.Sprintf("holiday-%s@workday", d), h.Name, "", d, d)
	}
	return feed.Serialize(), nil
}
