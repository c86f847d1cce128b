package model

import "time"

// RentStatus is the lifecycle state of a reservation.
type RentStatus string

const (
	StatusRequested RentStatus = "Requested"
	StatusApproved  RentStatus = "Approved"
	StatusCancelled RentStatus = "Cancelled"
	StatusCompleted RentStatus = "Completed"
	StatusDisputed  RentStatus = "Disputed"

	// Confirmed and PickedUp are holding states found in data migrated
	// from the previous system.  The lifecycle never produces them but
	// they still occupy the listing calendar.
	StatusConfirmed RentStatus = "Confirmed"
	StatusPickedUp  RentStatus = "PickedUp"
)

// Valid reports whether s is a known status.
func (s RentStatus) Valid() bool {
	switch s {
	case StatusRequested, StatusApproved, StatusCancelled, StatusCompleted,
		StatusDisputed, StatusConfirmed, StatusPickedUp:
		return true
	}
	return false
}

// DurationUnit is the unit a reservation length is expressed in.
type DurationUnit string

const (
	UnitHour DurationUnit = "Hour"
	UnitDay  DurationUnit = "Day"
	UnitWeek DurationUnit = "Week"
)

// Reservation (rent request) is a borrower's time-bounded claim on a
// listing.  The booked window is the half-open interval
// [PickupTime, DropOffTime).  LenderID is copied from the listing owner
// when the request is created.
//
// Fields:
//
//	ID                 – primary key identifier.
//	ListingID          – listing being rented.
//	BorrowerID         – user who requested the rental.
//	LenderID           – owner of the listing at request time.
//	PickupTime         – start of the booked window (UTC).
//	DropOffTime        – end of the booked window, derived from the duration.
//	DurationUnit       – Hour, Day or Week.
//	DurationValue      – number of units.
//	PriceCents         – rental price computed from the listing rates.
//	Status             – lifecycle state.
//	ActualPickupTime   – recorded by the lender when the item is handed over.
//	ActualDropOffTime  – recorded by the borrower when the item is returned.
//	CancellationReason – free text supplied on cancellation.
type Reservation struct {
	ID                 uint64       `json:"id"`
	ListingID          uint64       `json:"listing_id"`
	BorrowerID         uint64       `json:"borrower_id"`
	LenderID           uint64       `json:"lender_id"`
	PickupTime         time.Time    `json:"pickup_time"`
	DropOffTime        time.Time    `json:"drop_off_time"`
	DurationUnit       DurationUnit `json:"duration_unit"`
	DurationValue      int          `json:"duration_value"`
	PriceCents         int64        `json:"price_cents"`
	Status             RentStatus   `json:"rent_status"`
	ActualPickupTime   *time.Time   `json:"actual_pickup_time,omitempty"`
	ActualDropOffTime  *time.Time   `json:"actual_drop_off_time,omitempty"`
	CancellationReason *string      `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}
