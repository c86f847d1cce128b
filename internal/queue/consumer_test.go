package queue

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/toolshare/rental-backend/internal/model"
)

func sampleReservation() model.Reservation {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return model.Reservation{
		ID: 7, ListingID: 3, BorrowerID: 11, LenderID: 22,
		PickupTime: start, DropOffTime: start.Add(2 * time.Hour),
		DurationUnit: model.UnitHour, DurationValue: 2,
		PriceCents: 2000, Status: model.StatusRequested,
	}
}

func TestRenderMailAddressesCounterparty(t *testing.T) {
	r := sampleReservation()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	created := RenderMail(NewRentRequestEvent(EventCreated, r, now))
	if !strings.Contains(created, "To: user:22") {
		t.Fatalf("created mail should go to lender, got:\n%s", created)
	}

	r.Status = model.StatusApproved
	approved := RenderMail(NewRentRequestEvent(EventApproved, r, now))
	if !strings.Contains(approved, "To: user:11") || !strings.Contains(approved, "approved") {
		t.Fatalf("approved mail should go to borrower, got:\n%s", approved)
	}
}

func TestRenderMailIncludesReason(t *testing.T) {
	r := sampleReservation()
	reason := "expired"
	r.Status = model.StatusCancelled
	r.CancellationReason = &reason
	out := RenderMail(NewRentRequestEvent(EventCancelled, r, time.Now()))
	if !strings.Contains(out, "Reason: expired") {
		t.Fatalf("missing reason:\n%s", out)
	}
}

func TestEventForStatus(t *testing.T) {
	cases := map[model.RentStatus]EventType{
		model.StatusApproved:  EventApproved,
		model.StatusCancelled: EventCancelled,
		model.StatusCompleted: EventCompleted,
	}
	for s, want := range cases {
		got, ok := EventForStatus(s)
		if !ok || got != want {
			t.Errorf("EventForStatus(%s) = %q, %v; want %q", s, got, ok, want)
		}
	}
	if _, ok := EventForStatus(model.StatusDisputed); ok {
		t.Error("disputed should not notify")
	}
}

func TestConsumerHandleAppendsToMailLog(t *testing.T) {
	dir := t.TempDir()
	c := &Consumer{Queue: MailQueue, Dir: dir, Logger: log.New("test")}

	body := []byte(`{"type":"rent_request.created","rent_request_id":1,"lender_id":2,"borrower_id":3,"rent_status":"Requested"}`)
	for i := 0; i < 2; i++ {
		if err := c.handle(body); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, "mail.log"))
	if err != nil {
		t.Fatalf("read mail.log: %v", err)
	}
	if n := strings.Count(string(data), "Subject: New rent request (#1)"); n != 2 {
		t.Fatalf("want 2 mails, got %d:\n%s", n, data)
	}
}

func TestConsumerHandleRejectsGarbage(t *testing.T) {
	c := &Consumer{Dir: t.TempDir(), Logger: log.New("test")}
	if err := c.handle([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
