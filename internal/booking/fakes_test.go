package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trimclip/booking-service/internal/apperr"
	"github.com/trimclip/booking-service/internal/availability"
	"github.com/trimclip/booking-service/internal/model"
	"github.com/trimclip/booking-service/internal/outbox"
)

// fakeStore mirrors the Postgres repository's contract: the overlap check and
// the write are atomic (one mutex here, one serializable tx there).
type fakeStore struct {
	mu     sync.Mutex
	appts  map[string]model.Appointment
	events []outbox.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{appts: map[string]model.Appointment{}}
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ap, ok := s.appts[id]
	if !ok {
		return nil, apperr.NotFoundf("appointment %s not found", id)
	}
	cp := ap
	return &cp, nil
}

func (s *fakeStore) ListActiveForBarber(_ context.Context, barberID string, from, to time.Time, excludeID string) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeOverlapping(barberID, from, to, excludeID), nil
}

func (s *fakeStore) ListForBarber(_ context.Context, tenantID, barberID string, limit int) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, ap := range s.appts {
		if ap.TenantID == tenantID && ap.BarberID == barberID {
			out = append(out, ap)
		}
	}
	return out, nil
}

func (s *fakeStore) Create(_ context.Context, ap *model.Appointment, evts ...outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.activeOverlapping(ap.BarberID, ap.StartTime, ap.EndTime, "")) > 0 {
		return apperr.Conflictf("slot unavailable")
	}
	if ap.ID == "" {
		ap.ID = uuid.NewString()
	}
	s.appts[ap.ID] = *ap
	s.events = append(s.events, evts...)
	return nil
}

func (s *fakeStore) Reschedule(_ context.Context, ap *model.Appointment, evts ...outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appts[ap.ID]; !ok {
		return apperr.NotFoundf("appointment %s not found", ap.ID)
	}
	if len(s.activeOverlapping(ap.BarberID, ap.StartTime, ap.EndTime, ap.ID)) > 0 {
		return apperr.Conflictf("slot unavailable")
	}
	s.appts[ap.ID] = *ap
	s.events = append(s.events, evts...)
	return nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, ap *model.Appointment, evts ...outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appts[ap.ID]; !ok {
		return apperr.NotFoundf("appointment %s not found", ap.ID)
	}
	s.appts[ap.ID] = *ap
	s.events = append(s.events, evts...)
	return nil
}

func (s *fakeStore) activeOverlapping(barberID string, from, to time.Time, excludeID string) []model.Appointment {
	var out []model.Appointment
	for _, ap := range s.appts {
		if ap.BarberID != barberID || !ap.IsActive() {
			continue
		}
		if excludeID != "" && ap.ID == excludeID {
			continue
		}
		if availability.Overlaps(from, to, ap.StartTime, ap.EndTime) {
			out = append(out, ap)
		}
	}
	return out
}

type fakeDirectory struct {
	barbers   map[string]model.Barber
	services  map[string]model.Service
	customers map[string]model.Customer
}

func (d *fakeDirectory) GetBarber(_ context.Context, id string) (*model.Barber, error) {
	b, ok := d.barbers[id]
	if !ok {
		return nil, apperr.NotFoundf("barber %s not found", id)
	}
	return &b, nil
}

func (d *fakeDirectory) GetServices(_ context.Context, ids []string) ([]model.Service, error) {
	var out []model.Service
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := d.services[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (d *fakeDirectory) GetCustomer(_ context.Context, id string) (*model.Customer, error) {
	c, ok := d.customers[id]
	if !ok {
		return nil, apperr.NotFoundf("customer %s not found", id)
	}
	return &c, nil
}

type countingMetrics struct {
	mu          sync.Mutex
	created     int
	rescheduled int
	cancelled   int
	conflicts   int
	cacheHits   int
	cacheMisses int
}

func (m *countingMetrics) BookingCreated()     { m.mu.Lock(); m.created++; m.mu.Unlock() }
func (m *countingMetrics) BookingRescheduled() { m.mu.Lock(); m.rescheduled++; m.mu.Unlock() }
func (m *countingMetrics) BookingCancelled()   { m.mu.Lock(); m.cancelled++; m.mu.Unlock() }
func (m *countingMetrics) BookingConflict()    { m.mu.Lock(); m.conflicts++; m.mu.Unlock() }
func (m *countingMetrics) CacheHit()           { m.mu.Lock(); m.cacheHits++; m.mu.Unlock() }
func (m *countingMetrics) CacheMiss()          { m.mu.Lock(); m.cacheMisses++; m.mu.Unlock() }
