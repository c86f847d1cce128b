package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/toolshare/rental-backend/internal/model"
	"github.com/toolshare/rental-backend/internal/service"
)

// Reviews is implemented by *service.ReviewService.
type Reviews interface {
	Submit(ctx context.Context, in service.ReviewInput) (model.Review, error)
	ForUser(ctx context.Context, userID uint64) (service.ReviewSummary, error)
	Moderate(ctx context.Context, id uint64, approved bool) error
}

type ReviewHandler struct {
	Reviews Reviews
}

func NewReviewHandler(r Reviews) *ReviewHandler {
	return &ReviewHandler{Reviews: r}
}

type reviewReq struct {
	TransactionID uint64  `json:"transaction_id"`
	Rating        int     `json:"rating"`
	Comment       *string `json:"comment"`
}

// Create reviews the other party of a completed transaction.
func (h *ReviewHandler) Create(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.TransactionID == 0 {
		return badRequest(c, "transaction_id is required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	rv, err := h.Reviews.Submit(ctx, service.ReviewInput{
		TransactionID: req.TransactionID,
		ReviewerID:    uid,
		Rating:        req.Rating,
		Comment:       req.Comment,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": rv})
}

// ForUser lists approved reviews about a user with their average rating.
func (h *ReviewHandler) ForUser(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	sum, err := h.Reviews.ForUser(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if sum.Reviews == nil {
		sum.Reviews = []model.Review{}
	}
	return c.JSON(http.StatusOK, sum)
}

// Approve records a moderation decision.  Admin only.
func (h *ReviewHandler) Approve(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid review id")
	}
	var req moderateReq
	if err := c.Bind(&req); err != nil || req.Approved == nil {
		return badRequest(c, "approved is required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Reviews.Moderate(ctx, id, *req.Approved); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "approved": *req.Approved})
}
