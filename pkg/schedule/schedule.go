// Package schedule generates the date and time-slot choices offered when
// booking a pickup or drop-off.
package schedule

import (
	"slices"
	"time"
)

// DaysAhead is how many calendar days, starting tomorrow, can be booked.
const DaysAhead = 7

// DateLayout is the wire format of a booking date.
const DateLayout = "2006-01-02"

// Date is a selectable booking day.
type Date struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// DefaultTimeSlots are offered when a business has not published its own.
var DefaultTimeSlots = []string{
	"9:00 AM - 10:00 AM",
	"10:00 AM - 11:00 AM",
	"11:00 AM - 12:00 PM",
	"1:00 PM - 2:00 PM",
	"2:00 PM - 3:00 PM",
	"3:00 PM - 4:00 PM",
	"4:00 PM - 5:00 PM",
}

// AvailableDates returns the next DaysAhead calendar days after now in loc.
func AvailableDates(now time.Time, loc *time.Location) []Date {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	// Step by calendar day so DST transitions never skip or repeat a date.
	y, m, d := local.Date()

	dates := make([]Date, 0, DaysAhead)
	for i := 1; i <= DaysAhead; i++ {
		day := time.Date(y, m, d+i, 12, 0, 0, 0, loc)
		dates = append(dates, Date{
			Value: day.Format(DateLayout),
			Label: day.Format("Mon, Jan 2"),
		})
	}
	return dates
}

// IsAvailableDate reports whether value is one of AvailableDates(now, loc).
func IsAvailableDate(value string, now time.Time, loc *time.Location) bool {
	return slices.ContainsFunc(AvailableDates(now, loc), func(d Date) bool {
		return d.Value == value
	})
}

// SlotsOrDefault returns slots, or DefaultTimeSlots when slots is empty.
func SlotsOrDefault(slots []string) []string {
	if len(slots) == 0 {
		return slices.Clone(DefaultTimeSlots)
	}
	return slots
}
