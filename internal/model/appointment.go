package model

import (
	"time"

	"github.com/trimclip/booking-service/internal/apperr"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Appointment is a booked time interval for one barber. Status transitions go
// through Confirm/Complete/Cancel below, never by direct assignment.
type Appointment struct {
	ID              string
	TenantID        string
	CustomerID      string
	BarberID        string
	ServiceIDs      []string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	Status          Status

	CreatedAt   time.Time
	ConfirmedAt *time.Time
	CancelledAt *time.Time
	CompletedAt *time.Time
}

// IsActive reports whether the appointment blocks the barber's agenda.
func (a *Appointment) IsActive() bool {
	return a.Status == StatusPending || a.Status == StatusConfirmed
}

// CanReschedule reports whether the booked interval may still change.
func (a *Appointment) CanReschedule() bool {
	return a.Status == StatusPending || a.Status == StatusConfirmed
}

func (a *Appointment) Confirm(now time.Time) error {
	if a.Status != StatusPending {
		return apperr.Conflictf("appointment cannot be confirmed from status %q", a.Status)
	}
	a.Status = StatusConfirmed
	a.ConfirmedAt = &now
	return nil
}

func (a *Appointment) Complete(now time.Time) error {
	if a.Status != StatusConfirmed {
		return apperr.Conflictf("appointment cannot be completed from status %q", a.Status)
	}
	a.Status = StatusCompleted
	a.CompletedAt = &now
	return nil
}

func (a *Appointment) Cancel(now time.Time) error {
	if !a.IsActive() {
		return apperr.Conflictf("appointment cannot be cancelled from status %q", a.Status)
	}
	a.Status = StatusCancelled
	a.CancelledAt = &now
	return nil
}
