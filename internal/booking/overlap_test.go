package booking

import (
	"testing"
	"time"

	"github.com/toolshare/rental-backend/internal/model"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h := func(n int) time.Time { return base.Add(time.Duration(n) * time.Hour) }
	cases := []struct {
		name       string
		a0, a1     time.Time
		b0, b1     time.Time
		wantResult bool
	}{
		{"identical", h(0), h(2), h(0), h(2), true},
		{"contained", h(0), h(4), h(1), h(2), true},
		{"partial left", h(0), h(2), h(1), h(3), true},
		{"partial right", h(1), h(3), h(0), h(2), true},
		{"back to back", h(0), h(2), h(2), h(4), false},
		{"back to back reversed", h(2), h(4), h(0), h(2), false},
		{"disjoint", h(0), h(1), h(3), h(4), false},
	}
	for _, tc := range cases {
		if got := Overlaps(tc.a0, tc.a1, tc.b0, tc.b1); got != tc.wantResult {
			t.Errorf("%s: Overlaps = %v, want %v", tc.name, got, tc.wantResult)
		}
	}
}

func TestBlockingStatuses(t *testing.T) {
	for _, s := range []model.RentStatus{model.StatusRequested, model.StatusApproved, model.StatusConfirmed, model.StatusPickedUp} {
		if !IsBlocking(s) {
			t.Errorf("%s should block", s)
		}
	}
	for _, s := range []model.RentStatus{model.StatusCancelled, model.StatusCompleted, model.StatusDisputed} {
		if IsBlocking(s) {
			t.Errorf("%s must not block", s)
		}
	}
	// callers may not mutate the shared set
	set := BlockingStatuses()
	set[0] = model.StatusCancelled
	if IsBlocking(model.StatusCancelled) {
		t.Fatalf("mutating the returned slice leaked into IsBlocking")
	}
}

func TestFirstConflict(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	existing := []model.Reservation{
		{ID: 1, Status: model.StatusCancelled, PickupTime: base, DropOffTime: base.Add(4 * time.Hour)},
		{ID: 2, Status: model.StatusDisputed, PickupTime: base, DropOffTime: base.Add(4 * time.Hour)},
		{ID: 3, Status: model.StatusApproved, PickupTime: base.Add(2 * time.Hour), DropOffTime: base.Add(3 * time.Hour)},
	}
	if _, ok := FirstConflict(existing, base, base.Add(2*time.Hour), 0); ok {
		t.Errorf("window ending at an approved start must not conflict")
	}
	if _, ok := FirstConflict(existing[:2], base, base.Add(time.Hour), 0); ok {
		t.Errorf("terminal reservations must not conflict")
	}
	got, ok := FirstConflict(existing, base.Add(time.Hour), base.Add(5*time.Hour), 0)
	if !ok || got.ID != 3 {
		t.Fatalf("expected conflict with reservation 3, got %v %v", got.ID, ok)
	}
	if _, ok := FirstConflict(existing, base.Add(time.Hour), base.Add(5*time.Hour), 3); ok {
		t.Errorf("excluded reservation should be skipped")
	}
}
