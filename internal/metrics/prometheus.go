package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus implements booking.Metrics with process-local counters exposed
// on /metrics.
type Prometheus struct {
	created     prometheus.Counter
	rescheduled prometheus.Counter
	cancelled   prometheus.Counter
	conflicts   prometheus.Counter
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		created: factory.NewCounter(prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Appointments successfully created.",
		}),
		rescheduled: factory.NewCounter(prometheus.CounterOpts{
			Name: "bookings_rescheduled_total",
			Help: "Appointments successfully rescheduled.",
		}),
		cancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "bookings_cancelled_total",
			Help: "Appointments cancelled.",
		}),
		conflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "booking_conflicts_total",
			Help: "Booking attempts rejected because the slot was taken.",
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "availability_cache_hits_total",
			Help: "Availability queries answered from cache.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "availability_cache_misses_total",
			Help: "Availability queries recomputed from the store.",
		}),
	}
}

func (p *Prometheus) BookingCreated()     { p.created.Inc() }
func (p *Prometheus) BookingRescheduled() { p.rescheduled.Inc() }
func (p *Prometheus) BookingCancelled()   { p.cancelled.Inc() }
func (p *Prometheus) BookingConflict()    { p.conflicts.Inc() }
func (p *Prometheus) CacheHit()           { p.cacheHits.Inc() }
func (p *Prometheus) CacheMiss()          { p.cacheMisses.Inc() }
