package model

import "time"

// Listing is a tool or skill offered for rent by its owner.  Only
// listings that are both available and approved by a moderator can be
// booked.  Deleting a listing deactivates it (IsAvailable=false) so
// that reservation and transaction history stays intact.
//
// Prices are stored in cents.  DailyPriceCents may be zero, in which
// case day and week bookings are priced from the hourly rate.
type Listing struct {
	ID                   uint64    `json:"id"`                     // listings.id
	OwnerID              uint64    `json:"owner_id"`               // listings.owner_id
	Title                string    `json:"title"`                  // listings.title
	Description          string    `json:"description"`            // listings.description
	HourlyPriceCents     int64     `json:"hourly_price_cents"`     // listings.hourly_price_cents
	DailyPriceCents      int64     `json:"daily_price_cents"`      // listings.daily_price_cents
	SecurityDepositCents int64     `json:"security_deposit_cents"` // listings.security_deposit_cents
	Latitude             *float64  `json:"latitude,omitempty"`     // listings.latitude (nullable)
	Longitude            *float64  `json:"longitude,omitempty"`    // listings.longitude (nullable)
	Images               []string  `json:"images"`                 // listing_images.url
	IsAvailable          bool      `json:"is_available"`           // listings.is_available
	IsApproved           bool      `json:"is_approved"`            // listings.is_approved
	DistanceKm           *float64  `json:"distance_km,omitempty"`  // computed in nearby searches
	CreatedAt            time.Time `json:"created_at"`             // listings.created_at
	UpdatedAt            time.Time `json:"updated_at"`             // listings.updated_at
}

// Bookable reports whether new reservations may be placed on the listing.
func (l Listing) Bookable() bool {
	return l.IsAvailable && l.IsApproved
}
