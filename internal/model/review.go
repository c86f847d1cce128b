package model

import "time"

// Review is feedback one party of a completed transaction leaves about
// the other.  Reviews are hidden from public listings until a moderator
// approves them.
type Review struct {
	ID            uint64    `json:"id"`             // reviews.id
	TransactionID uint64    `json:"transaction_id"` // reviews.transaction_id
	ReviewerID    uint64    `json:"reviewer_id"`    // reviews.reviewer_id
	RevieweeID    uint64    `json:"reviewee_id"`    // reviews.reviewee_id
	Rating        int       `json:"rating"`         // reviews.rating (1..5)
	Comment       *string   `json:"comment,omitempty"`
	Approved      bool      `json:"approved"`   // reviews.approved
	CreatedAt     time.Time `json:"created_at"` // reviews.created_at
}
