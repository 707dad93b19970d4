package availability

import (
	"time"

	"github.com/trimclip/booking-service/internal/model"
)

// Overlaps tests two half-open intervals [aStart,aEnd) and [bStart,bEnd).
// Back-to-back intervals (one ending exactly when the other starts) do not
// overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// HasConflict reports whether the candidate interval collides with any active
// (pending or confirmed) appointment. excludeID skips the appointment's own
// prior record on the edit path; pass "" otherwise.
func HasConflict(start, end time.Time, existing []model.Appointment, excludeID string) bool {
	for i := range existing {
		ap := &existing[i]
		if excludeID != "" && ap.ID == excludeID {
			continue
		}
		if !ap.IsActive() {
			continue
		}
		if Overlaps(start, end, ap.StartTime, ap.EndTime) {
			return true
		}
	}
	return false
}
