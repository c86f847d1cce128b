package model

import "time"

// TransactionStatus tracks the money side of an approved reservation.
type TransactionStatus string

const (
	TxPending  TransactionStatus = "Pending"
	TxCompleted TransactionStatus = "Completed"
	TxDisputed TransactionStatus = "Disputed"
	TxCancelled TransactionStatus = "Cancelled"
)

// Transaction is the financial record created once a reservation is
// approved.  There is at most one transaction per reservation; the
// reservation_id column carries a unique index.
type Transaction struct {
	ID                      uint64            `json:"id"`
	ReservationID           uint64            `json:"rent_request_id"`
	ListingID               uint64            `json:"listing_id"`
	BorrowerID              uint64            `json:"borrower_id"`
	LenderID                uint64            `json:"lender_id"`
	StartTime               time.Time         `json:"start_time"`
	EndTime                 time.Time         `json:"end_time"`
	TotalFeeCents           int64             `json:"total_fee_cents"`
	PlatformCommissionCents int64             `json:"platform_commission_cents"`
	DepositCents            int64             `json:"deposit_cents"`
	ChargeID                *string           `json:"charge_id,omitempty"`
	Status                  TransactionStatus `json:"status"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
}
