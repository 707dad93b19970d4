package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/trimclip/booking-service/internal/apperr"
	"github.com/trimclip/booking-service/internal/model"
	"github.com/trimclip/booking-service/libs/db"
)

// Directory reads the barber/service/customer rows owned by the
// tenant-management side of the platform. Read-only here.
type Directory struct {
	pool *db.Pool
}

func NewDirectory(pool *db.Pool) *Directory {
	return &Directory{pool: pool}
}

func (d *Directory) GetBarber(ctx context.Context, id string) (*model.Barber, error) {
	var b model.Barber
	err := d.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, is_active
		FROM barbers
		WHERE id = $1
	`, id).Scan(&b.ID, &b.TenantID, &b.Name, &b.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFoundf("barber %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetServices returns the rows found for ids; callers compare counts to
// detect missing services.
func (d *Directory) GetServices(ctx context.Context, ids []string) ([]model.Service, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, tenant_id, name, duration_minutes
		FROM services
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Name, &s.DurationMinutes); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func (d *Directory) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	var c model.Customer
	err := d.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.TenantID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFoundf("customer %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
