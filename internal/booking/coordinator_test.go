package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/trimclip/booking-service/internal/apperr"
	"github.com/trimclip/booking-service/internal/cache"
	"github.com/trimclip/booking-service/internal/model"
)

const (
	testTenant   = "tenant-1"
	testCustomer = "cust-1"
	testBarber   = "barber-1"
	testService  = "svc-cut" // 30 minutes
)

// testNow is midday the day before testDay.
var (
	testDay = time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC)
	testNow = testDay.Add(-12 * time.Hour)
)

type fixture struct {
	store   *fakeStore
	dir     *fakeDirectory
	cache   *cache.MemoryCache
	metrics *countingMetrics
	coord   *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: newFakeStore(),
		dir: &fakeDirectory{
			barbers: map[string]model.Barber{
				testBarber: {ID: testBarber, TenantID: testTenant, Name: "Marco", IsActive: true},
				"barber-2": {ID: "barber-2", TenantID: testTenant, Name: "Leo", IsActive: true},
				"barber-inactive": {ID: "barber-inactive", TenantID: testTenant, IsActive: false},
				"barber-other":    {ID: "barber-other", TenantID: "tenant-2", IsActive: true},
			},
			services: map[string]model.Service{
				testService: {ID: testService, TenantID: testTenant, Name: "Haircut", DurationMinutes: 30},
				"svc-beard": {ID: "svc-beard", TenantID: testTenant, Name: "Beard trim", DurationMinutes: 30},
				"svc-other": {ID: "svc-other", TenantID: "tenant-2", DurationMinutes: 30},
			},
			customers: map[string]model.Customer{
				testCustomer: {ID: testCustomer, TenantID: testTenant, Name: "Ana"},
				"cust-other": {ID: "cust-other", TenantID: "tenant-2"},
			},
		},
		cache:   cache.NewMemoryCache(time.Minute),
		metrics: &countingMetrics{},
	}
	f.coord = NewCoordinator(f.store, f.dir, f.cache, f.metrics, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{})
	f.coord.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) create(t *testing.T, start time.Time, serviceIDs ...string) *Result {
	t.Helper()
	if len(serviceIDs) == 0 {
		serviceIDs = []string{testService}
	}
	res, err := f.coord.Create(context.Background(), testTenant, testCustomer, CreateInput{
		BarberID:   testBarber,
		ServiceIDs: serviceIDs,
		StartTime:  start,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return res
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	got, ok := apperr.KindOf(err)
	if !ok || got != kind {
		t.Fatalf("expected %v error, got %v (%v)", kind, got, err)
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	start := testDay.Add(10 * time.Hour)

	res := f.create(t, start, testService, "svc-beard")

	ap := res.Appointment
	if ap.Status != model.StatusPending {
		t.Fatalf("expected pending, got %s", ap.Status)
	}
	if ap.DurationMinutes != 60 {
		t.Fatalf("expected summed duration 60, got %d", ap.DurationMinutes)
	}
	if !ap.EndTime.Equal(start.Add(60 * time.Minute)) {
		t.Fatalf("end time must be start+duration, got %s", ap.EndTime)
	}
	if res.Barber == nil || res.Barber.ID != testBarber || len(res.Services) != 2 {
		t.Fatalf("expected resolved barber and services, got %+v", res)
	}
	if f.metrics.created != 1 {
		t.Fatalf("expected 1 created metric, got %d", f.metrics.created)
	}
	if len(f.store.events) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(f.store.events))
	}
}

func TestCreate_ReferenceValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := testDay.Add(10 * time.Hour)

	_, err := f.coord.Create(ctx, testTenant, "cust-missing", CreateInput{BarberID: testBarber, ServiceIDs: []string{testService}, StartTime: start})
	wantKind(t, err, apperr.KindNotFound)

	_, err = f.coord.Create(ctx, testTenant, "cust-other", CreateInput{BarberID: testBarber, ServiceIDs: []string{testService}, StartTime: start})
	wantKind(t, err, apperr.KindForbidden)

	_, err = f.coord.Create(ctx, testTenant, testCustomer, CreateInput{BarberID: "barber-missing", ServiceIDs: []string{testService}, StartTime: start})
	wantKind(t, err, apperr.KindNotFound)

	_, err = f.coord.Create(ctx, testTenant, testCustomer, CreateInput{BarberID: "barber-inactive", ServiceIDs: []string{testService}, StartTime: start})
	wantKind(t, err, apperr.KindNotFound)

	_, err = f.coord.Create(ctx, testTenant, testCustomer, CreateInput{BarberID: "barber-other", ServiceIDs: []string{testService}, StartTime: start})
	wantKind(t, err, apperr.KindForbidden)

	_, err = f.coord.Create(ctx, testTenant, testCustomer, CreateInput{BarberID: testBarber, ServiceIDs: []string{"svc-missing"}, StartTime: start})
	wantKind(t, err, apperr.KindNotFound)

	_, err = f.coord.Create(ctx, testTenant, testCustomer, CreateInput{BarberID: testBarber, ServiceIDs: []string{"svc-other"}, StartTime: start})
	wantKind(t, err, apperr.KindForbidden)

	_, err = f.coord.Create(ctx, testTenant, testCustomer, CreateInput{BarberID: testBarber, ServiceIDs: nil, StartTime: start})
	wantKind(t, err, apperr.KindValidation)
}

func TestCreate_TimeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Start in the past.
	_, err := f.coord.Create(ctx, testTenant, testCustomer, CreateInput{
		BarberID: testBarber, ServiceIDs: []string{testService}, StartTime: testNow.Add(-time.Hour),
	})
	wantKind(t, err, apperr.KindValidation)

	// Start exactly now is not strictly in the future.
	_, err = f.coord.Create(ctx, testTenant, testCustomer, CreateInput{
		BarberID: testBarber, ServiceIDs: []string{testService}, StartTime: testNow,
	})
	wantKind(t, err, apperr.KindValidation)

	// 19:45 + 30min crosses the 20:00 close.
	_, err = f.coord.Create(ctx, testTenant, testCustomer, CreateInput{
		BarberID: testBarber, ServiceIDs: []string{testService}, StartTime: testDay.Add(19*time.Hour + 45*time.Minute),
	})
	wantKind(t, err, apperr.KindValidation)

	// 19:30 + 30min ends exactly at close: allowed.
	f.create(t, testDay.Add(19*time.Hour+30*time.Minute))

	// Before opening.
	_, err = f.coord.Create(ctx, testTenant, testCustomer, CreateInput{
		BarberID: testBarber, ServiceIDs: []string{testService}, StartTime: testDay.Add(7 * time.Hour),
	})
	wantKind(t, err, apperr.KindValidation)
}

func TestCreate_Conflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, testDay.Add(10*time.Hour))

	// Overlapping slot is rejected.
	_, err := f.coord.Create(ctx, testTenant, testCustomer, CreateInput{
		BarberID: testBarber, ServiceIDs: []string{testService}, StartTime: testDay.Add(10*time.Hour + 15*time.Minute),
	})
	wantKind(t, err, apperr.KindConflict)
	if f.metrics.conflicts != 1 {
		t.Fatalf("expected 1 conflict metric, got %d", f.metrics.conflicts)
	}

	// Back-to-back is fine.
	f.create(t, testDay.Add(10*time.Hour+30*time.Minute))
}

func TestCreate_ConcurrentSameSlot(t *testing.T) {
	f := newFixture(t)
	start := testDay.Add(10 * time.Hour)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.coord.Create(context.Background(), testTenant, testCustomer, CreateInput{
				BarberID: testBarber, ServiceIDs: []string{testService}, StartTime: start,
			})
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.IsKind(err, apperr.KindConflict):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflict != 1 {
		t.Fatalf("expected exactly one success and one conflict, got ok=%d conflict=%d", ok, conflict)
	}
}

func TestEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.create(t, testDay.Add(10*time.Hour))
	id := res.Appointment.ID

	// Shift by 15 minutes: overlaps only its own prior interval, so allowed.
	newStart := testDay.Add(10*time.Hour + 15*time.Minute)
	edited, err := f.coord.Edit(ctx, testTenant, testCustomer, id, EditInput{StartTime: &newStart})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !edited.Appointment.StartTime.Equal(newStart) {
		t.Fatalf("expected start %s, got %s", newStart, edited.Appointment.StartTime)
	}
	if edited.Appointment.DurationMinutes != 30 {
		t.Fatalf("unchanged services must keep duration 30, got %d", edited.Appointment.DurationMinutes)
	}

	// Wrong customer.
	_, err = f.coord.Edit(ctx, testTenant, "cust-other", id, EditInput{StartTime: &newStart})
	wantKind(t, err, apperr.KindForbidden)

	// Unknown appointment.
	_, err = f.coord.Edit(ctx, testTenant, testCustomer, "nope", EditInput{StartTime: &newStart})
	wantKind(t, err, apperr.KindNotFound)
}

func TestEdit_BarberChangeInvalidatesBothCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.create(t, testDay.Add(10*time.Hour))

	seed := func(barberID string) {
		_ = f.cache.Set(ctx, barberID, testDay, testDay, 30*time.Minute, nil)
	}
	cached := func(barberID string) bool {
		_, ok, _ := f.cache.Get(ctx, barberID, testDay, testDay, 30*time.Minute)
		return ok
	}
	seed(testBarber)
	seed("barber-2")

	_, err := f.coord.Edit(ctx, testTenant, testCustomer, res.Appointment.ID, EditInput{BarberID: "barber-2"})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if cached(testBarber) || cached("barber-2") {
		t.Fatal("both old and new barber caches must be invalidated")
	}
}

func TestEdit_ConflictWithOtherAppointment(t *testing.T) {
	f := newFixture(t)
	f.create(t, testDay.Add(10*time.Hour))
	res := f.create(t, testDay.Add(11*time.Hour))

	clash := testDay.Add(10*time.Hour + 15*time.Minute)
	_, err := f.coord.Edit(context.Background(), testTenant, testCustomer, res.Appointment.ID, EditInput{StartTime: &clash})
	wantKind(t, err, apperr.KindConflict)
}

func TestLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.create(t, testDay.Add(10*time.Hour))
	id := res.Appointment.ID

	// Complete before confirm is illegal.
	_, err := f.coord.Complete(ctx, testTenant, id)
	wantKind(t, err, apperr.KindConflict)

	ap, err := f.coord.Confirm(ctx, testTenant, id)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if ap.Status != model.StatusConfirmed || ap.ConfirmedAt == nil {
		t.Fatalf("expected confirmed with timestamp, got %+v", ap)
	}

	// Double confirm is illegal.
	_, err = f.coord.Confirm(ctx, testTenant, id)
	wantKind(t, err, apperr.KindConflict)

	ap, err = f.coord.Complete(ctx, testTenant, id)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if ap.Status != model.StatusCompleted || ap.CompletedAt == nil {
		t.Fatalf("expected completed with timestamp, got %+v", ap)
	}

	// Completed is terminal: cancelling must fail and leave it untouched.
	err = f.coord.Cancel(ctx, testTenant, id)
	wantKind(t, err, apperr.KindConflict)
	stored, _ := f.store.GetByID(ctx, id)
	if stored.Status != model.StatusCompleted {
		t.Fatalf("status must be unchanged after failed cancel, got %s", stored.Status)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.create(t, testDay.Add(10*time.Hour))
	id := res.Appointment.ID

	_ = f.cache.Set(ctx, testBarber, testDay, testDay, 30*time.Minute, nil)

	if err := f.coord.Cancel(ctx, testTenant, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	stored, _ := f.store.GetByID(ctx, id)
	if stored.Status != model.StatusCancelled || stored.CancelledAt == nil {
		t.Fatalf("expected cancelled with timestamp, got %+v", stored)
	}
	if _, ok, _ := f.cache.Get(ctx, testBarber, testDay, testDay, 30*time.Minute); ok {
		t.Fatal("cancel must invalidate the barber's cached availability")
	}
	if f.metrics.cancelled != 1 {
		t.Fatalf("expected 1 cancelled metric, got %d", f.metrics.cancelled)
	}

	// Cancelled slot no longer blocks.
	f.create(t, testDay.Add(10*time.Hour))

	// Cross-tenant cancel is forbidden.
	res2, _ := f.coord.Create(ctx, testTenant, testCustomer, CreateInput{
		BarberID: testBarber, ServiceIDs: []string{testService}, StartTime: testDay.Add(15 * time.Hour),
	})
	err := f.coord.Cancel(ctx, "tenant-2", res2.Appointment.ID)
	wantKind(t, err, apperr.KindForbidden)
}

func TestNoOverlapInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A burst of overlapping create/edit/cancel operations must never leave
	// two active appointments intersecting.
	starts := []time.Duration{
		10 * time.Hour,
		10*time.Hour + 15*time.Minute,
		10*time.Hour + 30*time.Minute,
		10*time.Hour + 45*time.Minute,
		11 * time.Hour,
	}
	var wg sync.WaitGroup
	for _, d := range starts {
		wg.Add(1)
		go func(start time.Time) {
			defer wg.Done()
			res, err := f.coord.Create(ctx, testTenant, testCustomer, CreateInput{
				BarberID: testBarber, ServiceIDs: []string{testService}, StartTime: start,
			})
			if err == nil && start.Minute() == 45 {
				_ = f.coord.Cancel(ctx, testTenant, res.Appointment.ID)
			}
		}(testDay.Add(d))
	}
	wg.Wait()

	appts, _ := f.store.ListActiveForBarber(ctx, testBarber, testDay, testDay.AddDate(0, 0, 1), "")
	for i := range appts {
		for j := i + 1; j < len(appts); j++ {
			a, b := appts[i], appts[j]
			if a.StartTime.Before(b.EndTime) && a.EndTime.After(b.StartTime) {
				t.Fatalf("active appointments overlap: %s-%s and %s-%s",
					a.StartTime, a.EndTime, b.StartTime, b.EndTime)
			}
		}
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	f := newFixture(t)
	err := f.coord.Cancel(context.Background(), testTenant, "missing")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if errors.Is(err, context.Canceled) {
		t.Fatal("unexpected sentinel")
	}
}
