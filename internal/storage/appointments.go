package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/trimclip/booking-service/internal/apperr"
	"github.com/trimclip/booking-service/internal/model"
	"github.com/trimclip/booking-service/internal/outbox"
	"github.com/trimclip/booking-service/libs/db"
)

// AppointmentRepository is the authoritative store for booked intervals.
//
// Create and Reschedule run the overlap check and the write in one
// serializable transaction, retried once on a serialization failure, so two
// concurrent bookings for the same barber cannot both pass the check. The
// schema additionally carries an exclusion constraint on
// (barber_id, tstzrange) over active rows as a second line of defense; its
// violation surfaces as the same conflict error.
type AppointmentRepository struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outboxRepo: outboxRepo}
}

var errSlotUnavailable = &apperr.Error{Kind: apperr.KindConflict, Msg: "slot unavailable"}

const appointmentColumns = `
	id, tenant_id, customer_id, barber_id, service_ids,
	start_time, end_time, duration_minutes, status,
	created_at, confirmed_at, cancelled_at, completed_at`

func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (*model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	ap, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFoundf("appointment %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return ap, nil
}

// ListActiveForBarber returns the barber's pending/confirmed appointments
// whose interval intersects [from, to), ordered by start time. excludeID
// skips one appointment (the edit path's own record); pass "" otherwise.
func (r *AppointmentRepository) ListActiveForBarber(ctx context.Context, barberID string, from, to time.Time, excludeID string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE barber_id = $1
			AND status IN ('pending', 'confirmed')
			AND start_time < $3
			AND end_time > $2
			AND ($4 = '' OR id::text <> $4)
		ORDER BY start_time ASC
	`, barberID, from, to, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		ap, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, *ap)
	}
	return appts, rows.Err()
}

func (r *AppointmentRepository) ListForBarber(ctx context.Context, tenantID, barberID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1 AND barber_id = $2
		ORDER BY start_time DESC
		LIMIT $3
	`, tenantID, barberID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		ap, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, *ap)
	}
	return appts, rows.Err()
}

// Create persists a new appointment if its interval is free, writing any
// outbox events in the same transaction.
func (r *AppointmentRepository) Create(ctx context.Context, ap *model.Appointment, evts ...outbox.Event) error {
	if ap.ID == "" {
		ap.ID = uuid.NewString()
	}
	err := r.withSerializableRetry(ctx, func(tx pgx.Tx) error {
		if err := r.assertFree(ctx, tx, ap.BarberID, ap.StartTime, ap.EndTime, ""); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO appointments
				(id, tenant_id, customer_id, barber_id, service_ids,
				 start_time, end_time, duration_minutes, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, ap.ID, ap.TenantID, ap.CustomerID, ap.BarberID, ap.ServiceIDs,
			ap.StartTime, ap.EndTime, ap.DurationMinutes, ap.Status, ap.CreatedAt)
		if err != nil {
			return err
		}
		return r.insertEvents(ctx, tx, evts)
	})
	if db.IsExclusionViolation(err) {
		return errSlotUnavailable
	}
	return err
}

// Reschedule rewrites an appointment's interval, barber and services if the
// new interval is free. The appointment's own row is excluded from the check.
func (r *AppointmentRepository) Reschedule(ctx context.Context, ap *model.Appointment, evts ...outbox.Event) error {
	err := r.withSerializableRetry(ctx, func(tx pgx.Tx) error {
		if err := r.assertFree(ctx, tx, ap.BarberID, ap.StartTime, ap.EndTime, ap.ID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE appointments
			SET barber_id = $2,
				service_ids = $3,
				start_time = $4,
				end_time = $5,
				duration_minutes = $6
			WHERE id = $1
		`, ap.ID, ap.BarberID, ap.ServiceIDs, ap.StartTime, ap.EndTime, ap.DurationMinutes)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFoundf("appointment %s not found", ap.ID)
		}
		return r.insertEvents(ctx, tx, evts)
	})
	if db.IsExclusionViolation(err) {
		return errSlotUnavailable
	}
	return err
}

// UpdateStatus persists a status transition already applied to the model.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, ap *model.Appointment, evts ...outbox.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
			confirmed_at = $3,
			cancelled_at = $4,
			completed_at = $5
		WHERE id = $1
	`, ap.ID, ap.Status, ap.ConfirmedAt, ap.CancelledAt, ap.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("appointment %s not found", ap.ID)
	}
	if err := r.insertEvents(ctx, tx, evts); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *AppointmentRepository) assertFree(ctx context.Context, tx pgx.Tx, barberID string, start, end time.Time, excludeID string) error {
	var conflicts int
	err := tx.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE barber_id = $1
			AND status IN ('pending', 'confirmed')
			AND start_time < $3
			AND end_time > $2
			AND ($4 = '' OR id::text <> $4)
	`, barberID, start, end, excludeID).Scan(&conflicts)
	if err != nil {
		return err
	}
	if conflicts > 0 {
		return errSlotUnavailable
	}
	return nil
}

func (r *AppointmentRepository) insertEvents(ctx context.Context, tx pgx.Tx, evts []outbox.Event) error {
	for _, evt := range evts {
		if err := r.outboxRepo.Insert(ctx, tx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (r *AppointmentRepository) withSerializableRetry(ctx context.Context, fn func(pgx.Tx) error) error {
	err := r.runSerializable(ctx, fn)
	if db.IsSerializationFailure(err) {
		err = r.runSerializable(ctx, fn)
	}
	return err
}

func (r *AppointmentRepository) runSerializable(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*model.Appointment, error) {
	var ap model.Appointment
	err := row.Scan(
		&ap.ID,
		&ap.TenantID,
		&ap.CustomerID,
		&ap.BarberID,
		&ap.ServiceIDs,
		&ap.StartTime,
		&ap.EndTime,
		&ap.DurationMinutes,
		&ap.Status,
		&ap.CreatedAt,
		&ap.ConfirmedAt,
		&ap.CancelledAt,
		&ap.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ap, nil
}
