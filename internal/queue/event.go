// Package queue carries notification events over RabbitMQ.  Requests
// publish to the durable mail.outbox queue and a background consumer
// turns each event into a plain-text email appended to logs/mail.log.
package queue

import (
	"time"

	"github.com/toolshare/rental-backend/internal/model"
)

// MailQueue is the durable queue notifications are published to.
const MailQueue = "mail.outbox"

// EventType names a rent request lifecycle event.
type EventType string

const (
	EventCreated   EventType = "rent_request.created"
	EventApproved  EventType = "rent_request.approved"
	EventCancelled EventType = "rent_request.cancelled"
	EventCompleted EventType = "rent_request.completed"
)

// RentRequestEvent is published when a rent request is created or
// changes status.  It holds enough to render a notification without
// reading the database.
type RentRequestEvent struct {
	Type          EventType `json:"type"`
	RentRequestID uint64    `json:"rent_request_id"`
	ListingID     uint64    `json:"listing_id"`
	BorrowerID    uint64    `json:"borrower_id"`
	LenderID      uint64    `json:"lender_id"`
	PickupTime    string    `json:"pickup_time"`
	DropOffTime   string    `json:"drop_off_time"`
	PriceCents    int64     `json:"price_cents"`
	Status        string    `json:"rent_status"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    string    `json:"occurred_at"`
}

// NewRentRequestEvent snapshots r into an event of type t.
func NewRentRequestEvent(t EventType, r model.Reservation, at time.Time) RentRequestEvent {
	ev := RentRequestEvent{
		Type:          t,
		RentRequestID: r.ID,
		ListingID:     r.ListingID,
		BorrowerID:    r.BorrowerID,
		LenderID:      r.LenderID,
		PickupTime:    r.PickupTime.UTC().Format(time.RFC3339),
		DropOffTime:   r.DropOffTime.UTC().Format(time.RFC3339),
		PriceCents:    r.PriceCents,
		Status:        string(r.Status),
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
	if r.CancellationReason != nil {
		ev.Reason = *r.CancellationReason
	}
	return ev
}

// EventForStatus maps a status a reservation just moved into onto the
// event announcing it.  Statuses nobody is notified about return false.
func EventForStatus(s model.RentStatus) (EventType, bool) {
	switch s {
	case model.StatusApproved:
		return EventApproved, true
	case model.StatusCancelled:
		return EventCancelled, true
	case model.StatusCompleted:
		return EventCompleted, true
	}
	return "", false
}
