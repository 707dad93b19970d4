package availability

import (
	"testing"
	"time"

	"github.com/trimclip/booking-service/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func appt(id string, status model.Status, start time.Time, minutes int) model.Appointment {
	return model.Appointment{
		ID:        id,
		BarberID:  "barber-1",
		StartTime: start,
		EndTime:   start.Add(time.Duration(minutes) * time.Minute),
		Status:    status,
	}
}

func TestComputeDays_ExcludesBookedSlot(t *testing.T) {
	d := day(2026, 3, 10)
	now := d.Add(-24 * time.Hour) // query made the day before
	existing := []model.Appointment{
		appt("a1", model.StatusConfirmed, d.Add(10*time.Hour), 30),
	}

	days := ComputeDays(d, d, DefaultHours(), 30*time.Minute, existing, now)
	if len(days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(days))
	}
	if days[0].Date != "2026-03-10" {
		t.Fatalf("unexpected date %q", days[0].Date)
	}
	if len(days[0].Slots) != 23 {
		t.Fatalf("expected 23 free slots, got %d: %v", len(days[0].Slots), days[0].Slots)
	}
	for _, s := range days[0].Slots {
		if s == "10:00" {
			t.Fatal("booked slot 10:00 must be excluded")
		}
	}
	for _, want := range []string{"08:00", "08:30", "09:00", "09:30", "10:30", "19:30"} {
		if !contains(days[0].Slots, want) {
			t.Fatalf("expected slot %s to be free", want)
		}
	}
}

func TestComputeDays_CancelledDoesNotBlock(t *testing.T) {
	d := day(2026, 3, 10)
	existing := []model.Appointment{
		appt("a1", model.StatusCancelled, d.Add(10*time.Hour), 30),
		appt("a2", model.StatusCompleted, d.Add(11*time.Hour), 30),
	}
	days := ComputeDays(d, d, DefaultHours(), 30*time.Minute, existing, d.Add(-time.Hour))
	if len(days) != 1 || len(days[0].Slots) != 24 {
		t.Fatalf("inactive appointments must not block slots: %+v", days)
	}
}

func TestComputeDays_ClosingBoundary(t *testing.T) {
	d := day(2026, 3, 10)
	// 60-minute booking: 19:00 ends exactly at close and is accepted,
	// 19:30 would end 20:30 and is dropped.
	days := ComputeDays(d, d, DefaultHours(), 60*time.Minute, nil, d.Add(-time.Hour))
	if len(days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(days))
	}
	slots := days[0].Slots
	if !contains(slots, "19:00") {
		t.Fatal("slot ending exactly at close must be accepted")
	}
	if contains(slots, "19:30") {
		t.Fatal("slot ending past close must be rejected")
	}
	if len(slots) != 23 {
		t.Fatalf("expected 23 slots, got %d", len(slots))
	}
}

func TestComputeDays_PastSlotsDroppedToday(t *testing.T) {
	d := day(2026, 3, 10)
	now := d.Add(12 * time.Hour) // midday
	days := ComputeDays(d, d, DefaultHours(), 30*time.Minute, nil, now)
	if len(days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(days))
	}
	for _, s := range days[0].Slots {
		if s <= "12:00" {
			t.Fatalf("slot %s is not strictly after now", s)
		}
	}
	if !contains(days[0].Slots, "12:30") {
		t.Fatal("expected 12:30 to remain free")
	}
	// A slot starting exactly at the current instant is not bookable.
	now = d.Add(12*time.Hour + 30*time.Minute)
	days = ComputeDays(d, d, DefaultHours(), 30*time.Minute, nil, now)
	if contains(days[0].Slots, "12:30") {
		t.Fatal("slot starting exactly now must be dropped")
	}
}

func TestComputeDays_FullyBookedDayOmitted(t *testing.T) {
	d1 := day(2026, 3, 10)
	d2 := day(2026, 3, 11)
	// One appointment covering the entire business day blocks every slot.
	existing := []model.Appointment{
		appt("a1", model.StatusConfirmed, d1.Add(8*time.Hour), 12*60),
	}
	days := ComputeDays(d1, d2, DefaultHours(), 30*time.Minute, existing, d1.Add(-time.Hour))
	if len(days) != 1 {
		t.Fatalf("fully booked day must be omitted entirely, got %d days", len(days))
	}
	if days[0].Date != "2026-03-11" {
		t.Fatalf("expected only 2026-03-11, got %q", days[0].Date)
	}
}

func TestComputeDays_Deterministic(t *testing.T) {
	d := day(2026, 3, 10)
	existing := []model.Appointment{
		appt("a1", model.StatusPending, d.Add(9*time.Hour), 45),
		appt("a2", model.StatusConfirmed, d.Add(14*time.Hour), 90),
	}
	now := d.Add(-time.Hour)
	a := ComputeDays(d, d.AddDate(0, 0, 6), DefaultHours(), 30*time.Minute, existing, now)
	b := ComputeDays(d, d.AddDate(0, 0, 6), DefaultHours(), 30*time.Minute, existing, now)
	if len(a) != len(b) {
		t.Fatalf("day counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Date != b[i].Date || len(a[i].Slots) != len(b[i].Slots) {
			t.Fatalf("day %d differs: %+v vs %+v", i, a[i], b[i])
		}
		for j := range a[i].Slots {
			if a[i].Slots[j] != b[i].Slots[j] {
				t.Fatalf("slot %d/%d differs: %s vs %s", i, j, a[i].Slots[j], b[i].Slots[j])
			}
		}
	}
}

func contains(slots []string, want string) bool {
	for _, s := range slots {
		if s == want {
			return true
		}
	}
	return false
}
