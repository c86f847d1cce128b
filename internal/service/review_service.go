package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/toolshare/rental-backend/internal/model"
)

var (
	ErrInvalidRating  = fmt.Errorf("%w: rating must be between 1 and 5", model.ErrValidation)
	ErrNotTxParty     = fmt.Errorf("%w: only the borrower or lender may review a transaction", model.ErrForbidden)
	ErrRentalNotEnded = fmt.Errorf("%w: reviews open once the rental is completed", model.ErrConflict)
)

// ReviewStore is the persistence ReviewService needs.
type ReviewStore interface {
	Create(ctx context.Context, rv *model.Review) error
	ListApprovedFor(ctx context.Context, userID uint64) ([]model.Review, float64, error)
	SetApproved(ctx context.Context, id uint64, approved bool) error
}

// TransactionReader loads a single transaction.
type TransactionReader interface {
	GetByID(ctx context.Context, id uint64) (model.Transaction, error)
}

type ReviewService struct {
	reviews      ReviewStore
	transactions TransactionReader
	logger       echo.Logger
}

func NewReviewService(reviews ReviewStore, transactions TransactionReader, logger echo.Logger) *ReviewService {
	return &ReviewService{reviews: reviews, transactions: transactions, logger: logger}
}

// ReviewInput is a review submitted by ReviewerID.
type ReviewInput struct {
	TransactionID uint64
	ReviewerID    uint64
	Rating        int
	Comment       *string
}

// Submit stores a review of the other party of a completed
// transaction.  Reviews wait for moderation before they are listed.
func (s *ReviewService) Submit(ctx context.Context, in ReviewInput) (model.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return model.Review{}, ErrInvalidRating
	}
	t, err := s.transactions.GetByID(ctx, in.TransactionID)
	if err != nil {
		return model.Review{}, err
	}
	var reviewee uint64
	switch in.ReviewerID {
	case t.BorrowerID:
		reviewee = t.LenderID
	case t.LenderID:
		reviewee = t.BorrowerID
	default:
		return model.Review{}, ErrNotTxParty
	}
	if t.Status != model.TxCompleted {
		return model.Review{}, ErrRentalNotEnded
	}
	rv := model.Review{
		TransactionID: t.ID,
		ReviewerID:    in.ReviewerID,
		RevieweeID:    reviewee,
		Rating:        in.Rating,
	}
	if in.Comment != nil {
		if c := strings.TrimSpace(*in.Comment); c != "" {
			rv.Comment = &c
		}
	}
	if err := s.reviews.Create(ctx, &rv); err != nil {
		return model.Review{}, err
	}
	s.logger.Infof("review %d submitted for transaction %d by user %d", rv.ID, t.ID, in.ReviewerID)
	return rv, nil
}

// ReviewSummary is the public reputation of a user.
type ReviewSummary struct {
	UserID  uint64         `json:"user_id"`
	Average float64        `json:"average_rating"`
	Count   int            `json:"count"`
	Reviews []model.Review `json:"items"`
}

// ForUser returns the approved reviews about userID.
func (s *ReviewService) ForUser(ctx context.Context, userID uint64) (ReviewSummary, error) {
	items, avg, err := s.reviews.ListApprovedFor(ctx, userID)
	if err != nil {
		return ReviewSummary{}, err
	}
	return ReviewSummary{UserID: userID, Average: avg, Count: len(items), Reviews: items}, nil
}

// Moderate records an admin's approval decision.
func (s *ReviewService) Moderate(ctx context.Context, id uint64, approved bool) error {
	return s.reviews.SetApproved(ctx, id, approved)
}
