package availability

import (
	"time"

	"github.com/trimclip/booking-service/internal/model"
)

const (
	// SlotFormat is the wall-clock rendering of slot start times.
	SlotFormat = "15:04"
	// DateFormat is the calendar-day rendering used on the wire and in cache keys.
	DateFormat = "2006-01-02"
)

// Day is one calendar day's free slots. Days with no free slot are never
// emitted at all, rather than as an empty list.
type Day struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

// ComputeDays derives the free slots per day for a booking of the given
// duration over [startDate, endDate] inclusive. existing is the barber's
// appointment set for the whole range; status filtering happens here, so
// callers may pass cancelled/completed rows. Slots that start at or before
// now are dropped, as are slots whose end would cross the daily close.
//
// Deterministic: identical inputs yield identical output.
func ComputeDays(startDate, endDate time.Time, h Hours, duration time.Duration, existing []model.Appointment, now time.Time) []Day {
	if duration <= 0 || endDate.Before(startDate) {
		return nil
	}

	var days []Day
	for day := DateOnly(startDate); !day.After(DateOnly(endDate)); day = day.AddDate(0, 0, 1) {
		_, close := h.WindowOn(day)

		var free []string
		for _, slot := range GenerateSlots(day, h) {
			end := slot.Add(duration)
			if end.After(close) {
				continue
			}
			if !slot.After(now) {
				continue
			}
			if HasConflict(slot, end, existing, "") {
				continue
			}
			free = append(free, slot.Format(SlotFormat))
		}
		if len(free) > 0 {
			days = append(days, Day{Date: day.Format(DateFormat), Slots: free})
		}
	}
	return days
}

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
