package model

// Barber and Service rows are owned by the tenant-management side of the
// platform; the booking engine only reads them.

type Barber struct {
	ID       string
	TenantID string
	Name     string
	IsActive bool
}

type Service struct {
	ID              string
	TenantID        string
	Name            string
	DurationMinutes int
}

type Customer struct {
	ID       string
	TenantID string
	Name     string
}
