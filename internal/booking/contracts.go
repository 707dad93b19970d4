package booking

import (
	"context"
	"time"

	"github.com/trimclip/booking-service/internal/model"
	"github.com/trimclip/booking-service/internal/outbox"
)

// AppointmentStore is the authoritative persistence for booked intervals.
// Create and Reschedule must perform the overlap check and the write
// atomically and return a conflict-kind error when the interval is taken;
// the coordinator relies on that, never on the cache, for correctness.
type AppointmentStore interface {
	GetByID(ctx context.Context, id string) (*model.Appointment, error)
	ListActiveForBarber(ctx context.Context, barberID string, from, to time.Time, excludeID string) ([]model.Appointment, error)
	ListForBarber(ctx context.Context, tenantID, barberID string, limit int) ([]model.Appointment, error)
	Create(ctx context.Context, ap *model.Appointment, evts ...outbox.Event) error
	Reschedule(ctx context.Context, ap *model.Appointment, evts ...outbox.Event) error
	UpdateStatus(ctx context.Context, ap *model.Appointment, evts ...outbox.Event) error
}

// Directory resolves the entities appointments reference. Owned elsewhere;
// read-only here.
type Directory interface {
	GetBarber(ctx context.Context, id string) (*model.Barber, error)
	GetServices(ctx context.Context, ids []string) ([]model.Service, error)
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
}

// Metrics is a fire-and-forget counter sink; never on the correctness path.
type Metrics interface {
	BookingCreated()
	BookingRescheduled()
	BookingCancelled()
	BookingConflict()
	CacheHit()
	CacheMiss()
}

type NopMetrics struct{}

func (NopMetrics) BookingCreated()     {}
func (NopMetrics) BookingRescheduled() {}
func (NopMetrics) BookingCancelled()   {}
func (NopMetrics) BookingConflict()    {}
func (NopMetrics) CacheHit()           {}
func (NopMetrics) CacheMiss()          {}
