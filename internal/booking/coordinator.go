// Package booking orchestrates appointment lifecycle and availability
// queries. The persistent store is the single source of truth; the
// availability cache is read-side only and invalidated after every mutation
// that changes a booked interval.
package booking

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trimclip/booking-service/internal/apperr"
	"github.com/trimclip/booking-service/internal/availability"
	"github.com/trimclip/booking-service/internal/cache"
	"github.com/trimclip/booking-service/internal/model"
	"github.com/trimclip/booking-service/internal/outbox"
)

// DefaultInvalidateDays is the forward-looking window invalidated for a
// barber after every booking mutation. A single mutation's effect on open
// slots cannot be localized to one cached range, so the whole window goes.
const DefaultInvalidateDays = 30

type Coordinator struct {
	store   AppointmentStore
	dir     Directory
	cache   cache.AvailabilityCache
	metrics Metrics
	logger  *slog.Logger

	hours          availability.Hours
	invalidateDays int
	now            func() time.Time
}

type Config struct {
	Hours          availability.Hours
	InvalidateDays int
}

func NewCoordinator(store AppointmentStore, dir Directory, avCache cache.AvailabilityCache, metrics Metrics, logger *slog.Logger, cfg Config) *Coordinator {
	if cfg.Hours.Step <= 0 {
		cfg.Hours = availability.DefaultHours()
	}
	if cfg.InvalidateDays <= 0 {
		cfg.InvalidateDays = DefaultInvalidateDays
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Coordinator{
		store:          store,
		dir:            dir,
		cache:          avCache,
		metrics:        metrics,
		logger:         logger,
		hours:          cfg.Hours,
		invalidateDays: cfg.InvalidateDays,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

type CreateInput struct {
	BarberID   string
	ServiceIDs []string
	StartTime  time.Time
}

// EditInput carries the fields to change; nil/empty means keep the existing
// value.
type EditInput struct {
	BarberID   string
	ServiceIDs []string
	StartTime  *time.Time
}

// Result is a persisted appointment with its referenced rows resolved.
type Result struct {
	Appointment *model.Appointment
	Barber      *model.Barber
	Services    []model.Service
}

// Create books a new appointment in Pending status. The conflict check runs
// against the authoritative store inside the same transaction as the insert,
// regardless of what cached availability the caller saw.
func (c *Coordinator) Create(ctx context.Context, tenantID, customerID string, in CreateInput) (*Result, error) {
	customer, err := c.dir.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer.TenantID != tenantID {
		return nil, apperr.Forbiddenf("customer does not belong to this barbershop")
	}

	barber, services, totalDuration, err := c.resolveBooking(ctx, tenantID, in.BarberID, in.ServiceIDs)
	if err != nil {
		return nil, err
	}

	now := c.now()
	start := in.StartTime.UTC()
	end := start.Add(totalDuration)
	if err := c.validateWindow(start, end, now); err != nil {
		return nil, err
	}

	ap := &model.Appointment{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		CustomerID:      customerID,
		BarberID:        barber.ID,
		ServiceIDs:      in.ServiceIDs,
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: int(totalDuration / time.Minute),
		Status:          model.StatusPending,
		CreatedAt:       now,
	}

	if err := c.store.Create(ctx, ap, c.appointmentEvent(ctx, outbox.AppointmentCreated, ap)); err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			c.metrics.BookingConflict()
		}
		return nil, err
	}

	c.invalidateBarber(ctx, ap.BarberID)
	c.metrics.BookingCreated()
	c.logger.Info("appointment created",
		"appointment_id", ap.ID, "barber_id", ap.BarberID, "start", ap.StartTime)

	return &Result{Appointment: ap, Barber: barber, Services: services}, nil
}

// Edit reschedules an appointment, merging unchanged fields from the stored
// record. The appointment's own interval never blocks its new slot.
func (c *Coordinator) Edit(ctx context.Context, tenantID, customerID, appointmentID string, in EditInput) (*Result, error) {
	ap, err := c.store.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if ap.TenantID != tenantID || ap.CustomerID != customerID {
		return nil, apperr.Forbiddenf("appointment does not belong to this customer")
	}
	if !ap.CanReschedule() {
		return nil, apperr.Conflictf("appointment cannot be modified from status %q", ap.Status)
	}

	barberID := ap.BarberID
	if in.BarberID != "" {
		barberID = in.BarberID
	}
	serviceIDs := ap.ServiceIDs
	if len(in.ServiceIDs) > 0 {
		serviceIDs = in.ServiceIDs
	}
	start := ap.StartTime
	if in.StartTime != nil {
		start = in.StartTime.UTC()
	}

	barber, services, totalDuration, err := c.resolveBooking(ctx, tenantID, barberID, serviceIDs)
	if err != nil {
		return nil, err
	}

	now := c.now()
	end := start.Add(totalDuration)
	if err := c.validateWindow(start, end, now); err != nil {
		return nil, err
	}

	previousBarber := ap.BarberID
	ap.BarberID = barber.ID
	ap.ServiceIDs = serviceIDs
	ap.StartTime = start
	ap.EndTime = end
	ap.DurationMinutes = int(totalDuration / time.Minute)

	if err := c.store.Reschedule(ctx, ap, c.appointmentEvent(ctx, outbox.AppointmentRescheduled, ap)); err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			c.metrics.BookingConflict()
		}
		return nil, err
	}

	c.invalidateBarber(ctx, ap.BarberID)
	if previousBarber != ap.BarberID {
		c.invalidateBarber(ctx, previousBarber)
	}
	c.metrics.BookingRescheduled()
	c.logger.Info("appointment rescheduled",
		"appointment_id", ap.ID, "barber_id", ap.BarberID, "start", ap.StartTime)

	return &Result{Appointment: ap, Barber: barber, Services: services}, nil
}

// Cancel releases an active appointment's slot.
func (c *Coordinator) Cancel(ctx context.Context, tenantID, appointmentID string) error {
	ap, err := c.store.GetByID(ctx, appointmentID)
	if err != nil {
		return err
	}
	if ap.TenantID != tenantID {
		return apperr.Forbiddenf("appointment does not belong to this barbershop")
	}
	if err := ap.Cancel(c.now()); err != nil {
		return err
	}
	if err := c.store.UpdateStatus(ctx, ap, c.appointmentEvent(ctx, outbox.AppointmentCancelled, ap)); err != nil {
		return err
	}

	c.invalidateBarber(ctx, ap.BarberID)
	c.metrics.BookingCancelled()
	c.logger.Info("appointment cancelled", "appointment_id", ap.ID, "barber_id", ap.BarberID)
	return nil
}

// Confirm marks a pending appointment as confirmed. The booked interval does
// not change, so the cache stays as-is.
func (c *Coordinator) Confirm(ctx context.Context, tenantID, appointmentID string) (*model.Appointment, error) {
	return c.transition(ctx, tenantID, appointmentID, outbox.AppointmentConfirmed,
		(*model.Appointment).Confirm)
}

// Complete marks a confirmed appointment as completed.
func (c *Coordinator) Complete(ctx context.Context, tenantID, appointmentID string) (*model.Appointment, error) {
	return c.transition(ctx, tenantID, appointmentID, outbox.AppointmentCompleted,
		(*model.Appointment).Complete)
}

// List returns the barber's appointments for back-office views.
func (c *Coordinator) List(ctx context.Context, tenantID, barberID string, limit int) ([]model.Appointment, error) {
	return c.store.ListForBarber(ctx, tenantID, barberID, limit)
}

func (c *Coordinator) transition(ctx context.Context, tenantID, appointmentID, eventType string, apply func(*model.Appointment, time.Time) error) (*model.Appointment, error) {
	ap, err := c.store.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if ap.TenantID != tenantID {
		return nil, apperr.Forbiddenf("appointment does not belong to this barbershop")
	}
	if err := apply(ap, c.now()); err != nil {
		return nil, err
	}
	if err := c.store.UpdateStatus(ctx, ap, c.appointmentEvent(ctx, eventType, ap)); err != nil {
		return nil, err
	}
	c.logger.Info("appointment status changed",
		"appointment_id", ap.ID, "status", ap.Status)
	return ap, nil
}

// resolveBooking validates the barber and services against the tenant and
// returns the summed service duration.
func (c *Coordinator) resolveBooking(ctx context.Context, tenantID, barberID string, serviceIDs []string) (*model.Barber, []model.Service, time.Duration, error) {
	if len(serviceIDs) == 0 {
		return nil, nil, 0, apperr.Validationf("at least one service is required")
	}

	barber, err := c.dir.GetBarber(ctx, barberID)
	if err != nil {
		return nil, nil, 0, err
	}
	if barber.TenantID != tenantID {
		return nil, nil, 0, apperr.Forbiddenf("barber does not belong to this barbershop")
	}
	if !barber.IsActive {
		return nil, nil, 0, apperr.NotFoundf("barber %s is not active", barberID)
	}

	services, err := c.dir.GetServices(ctx, serviceIDs)
	if err != nil {
		return nil, nil, 0, err
	}
	if len(services) != len(uniqueIDs(serviceIDs)) {
		return nil, nil, 0, apperr.NotFoundf("one or more services not found")
	}
	var total time.Duration
	for _, s := range services {
		if s.TenantID != tenantID {
			return nil, nil, 0, apperr.Forbiddenf("service %s does not belong to this barbershop", s.ID)
		}
		total += time.Duration(s.DurationMinutes) * time.Minute
	}
	if total <= 0 {
		return nil, nil, 0, apperr.Validationf("services have no duration")
	}
	return barber, services, total, nil
}

// validateWindow enforces the future-start and daily-closing invariants.
// An appointment ending exactly at close is allowed.
func (c *Coordinator) validateWindow(start, end, now time.Time) error {
	if !start.After(now) {
		return apperr.Validationf("start time must be in the future")
	}
	open, close := c.hours.WindowOn(start)
	if start.Before(open) {
		return apperr.Validationf("start time is before opening at %s", open.Format(availability.SlotFormat))
	}
	if end.After(close) {
		return apperr.Validationf("appointment would end after closing at %s", close.Format(availability.SlotFormat))
	}
	return nil
}

// invalidateBarber drops the barber's cached availability for the forward
// window. Best-effort: a failed invalidation only extends staleness until
// the entries' TTL.
func (c *Coordinator) invalidateBarber(ctx context.Context, barberID string) {
	from := availability.DateOnly(c.now())
	to := from.AddDate(0, 0, c.invalidateDays)
	if err := c.cache.Invalidate(ctx, barberID, from, to); err != nil {
		c.logger.Warn("availability cache invalidation failed", "barber_id", barberID, "err", err)
	}
}

func (c *Coordinator) appointmentEvent(ctx context.Context, eventType string, ap *model.Appointment) outbox.Event {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": ap.ID,
		"tenant_id":      ap.TenantID,
		"customer_id":    ap.CustomerID,
		"barber_id":      ap.BarberID,
		"service_ids":    ap.ServiceIDs,
		"start_time":     ap.StartTime.UTC().Format(time.RFC3339),
		"end_time":       ap.EndTime.UTC().Format(time.RFC3339),
		"status":         ap.Status,
	})
	if err != nil {
		c.logger.Error("failed to build event payload", "err", err)
		payload = []byte("{}")
	}
	return outbox.Event{
		AggregateType: "appointment",
		AggregateID:   ap.ID,
		EventType:     eventType,
		Payload:       payload,
	}
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
