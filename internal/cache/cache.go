// Package cache holds previously computed availability results. The cache is
// purely a read-side accelerator: booking correctness never depends on it, and
// a stale entry is at worst over-permissive until the next invalidation.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/trimclip/booking-service/internal/availability"
)

// AvailabilityCache keys entries by the exact requested
// (barber, startDate, endDate, duration) tuple. Overlapping ranges are
// deliberately not merged; Invalidate drops every entry for the barber whose
// date range intersects the supplied window.
type AvailabilityCache interface {
	Get(ctx context.Context, barberID string, start, end time.Time, duration time.Duration) ([]availability.Day, bool, error)
	Set(ctx context.Context, barberID string, start, end time.Time, duration time.Duration, days []availability.Day) error
	Invalidate(ctx context.Context, barberID string, from, to time.Time) error
}

func entryKey(barberID string, start, end time.Time, duration time.Duration) string {
	return "avail:" + barberID + ":" + member(start, end, duration)
}

func barberSetKey(barberID string) string {
	return "avail:keys:" + barberID
}

func member(start, end time.Time, duration time.Duration) string {
	return fmt.Sprintf("%s|%s|%d",
		start.UTC().Format(availability.DateFormat),
		end.UTC().Format(availability.DateFormat),
		int(duration/time.Minute))
}

// memberOverlaps parses a set member back into its date range and tests it
// against the invalidation window (both ranges are inclusive day ranges).
func memberOverlaps(m string, from, to time.Time) bool {
	parts := strings.SplitN(m, "|", 3)
	if len(parts) != 3 {
		return true // unknown shape, drop it
	}
	start, err1 := time.ParseInLocation(availability.DateFormat, parts[0], time.UTC)
	end, err2 := time.ParseInLocation(availability.DateFormat, parts[1], time.UTC)
	if err1 != nil || err2 != nil {
		return true
	}
	return !start.After(to) && !end.Before(from)
}
