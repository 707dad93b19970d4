package availability

import "time"

// Hours is the fixed daily business-hours window, expressed as offsets from
// midnight. All times in this package are UTC.
type Hours struct {
	Open  time.Duration
	Close time.Duration
	Step  time.Duration
}

// DefaultHours is the platform-wide 08:00-20:00 window with 30-minute slots.
func DefaultHours() Hours {
	return Hours{
		Open:  8 * time.Hour,
		Close: 20 * time.Hour,
		Step:  30 * time.Minute,
	}
}

// WindowOn anchors the business-hours window on the given calendar day.
func (h Hours) WindowOn(day time.Time) (time.Time, time.Time) {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.Add(h.Open), midnight.Add(h.Close)
}

// GenerateSlots returns the ordered candidate start times for the given day:
// one slot every Step from Open up to (but excluding) Close. Pure; whether a
// slot actually fits a booking of some duration is the caller's concern.
func GenerateSlots(day time.Time, h Hours) []time.Time {
	open, close := h.WindowOn(day)
	if h.Step <= 0 || !close.After(open) {
		return nil
	}
	slots := make([]time.Time, 0, int(close.Sub(open)/h.Step))
	for t := open; t.Before(close); t = t.Add(h.Step) {
		slots = append(slots, t)
	}
	return slots
}
