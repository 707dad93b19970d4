package booking

import (
	"context"
	"time"

	"github.com/trimclip/booking-service/internal/apperr"
	"github.com/trimclip/booking-service/internal/availability"
)

// maxAvailabilityRangeDays bounds a single query; wider ranges are a client
// error, not something to page through.
const maxAvailabilityRangeDays = 90

// GetAvailability returns the barber's free slots per day over
// [startDate, endDate] for a booking of the given services' total duration.
// Cache-first; a miss recomputes from the authoritative store and fills the
// cache. Cache failures are logged and treated as misses, never surfaced.
func (c *Coordinator) GetAvailability(ctx context.Context, barberID string, startDate, endDate time.Time, serviceIDs []string) ([]availability.Day, error) {
	startDate = availability.DateOnly(startDate)
	endDate = availability.DateOnly(endDate)
	if endDate.Before(startDate) {
		return nil, apperr.Validationf("end date is before start date")
	}
	if int(endDate.Sub(startDate).Hours()/24) > maxAvailabilityRangeDays {
		return nil, apperr.Validationf("date range exceeds %d days", maxAvailabilityRangeDays)
	}

	barber, err := c.dir.GetBarber(ctx, barberID)
	if err != nil {
		return nil, err
	}
	if !barber.IsActive {
		return nil, apperr.NotFoundf("barber %s is not active", barberID)
	}

	totalDuration := c.hours.Step
	if len(serviceIDs) > 0 {
		if _, _, totalDuration, err = c.resolveBooking(ctx, barber.TenantID, barberID, serviceIDs); err != nil {
			return nil, err
		}
	}

	if days, ok, err := c.cache.Get(ctx, barberID, startDate, endDate, totalDuration); err != nil {
		c.logger.Warn("availability cache read failed", "barber_id", barberID, "err", err)
	} else if ok {
		c.metrics.CacheHit()
		return days, nil
	}
	c.metrics.CacheMiss()

	// One store query spans the whole range; ComputeDays slices it per day.
	existing, err := c.store.ListActiveForBarber(ctx, barberID, startDate, endDate.AddDate(0, 0, 1), "")
	if err != nil {
		return nil, err
	}

	days := availability.ComputeDays(startDate, endDate, c.hours, totalDuration, existing, c.now())

	if err := c.cache.Set(ctx, barberID, startDate, endDate, totalDuration, days); err != nil {
		c.logger.Warn("availability cache write failed", "barber_id", barberID, "err", err)
	}
	return days, nil
}
