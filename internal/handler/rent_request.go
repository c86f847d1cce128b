package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/toolshare/rental-backend/internal/booking"
	"github.com/toolshare/rental-backend/internal/middleware"
	"github.com/toolshare/rental-backend/internal/model"
	"github.com/toolshare/rental-backend/internal/service"
)

// RentRequests is implemented by *service.RentRequestService.
type RentRequests interface {
	Create(ctx context.Context, in service.CreateInput) (model.Reservation, error)
	Update(ctx context.Context, in service.UpdateInput) (service.UpdateResult, error)
	Delete(ctx context.Context, id, actorID uint64, actorIsAdmin bool) (model.Reservation, error)
	Get(ctx context.Context, id, actorID uint64, actorIsAdmin bool) (model.Reservation, error)
	List(ctx context.Context, userID uint64, asLender bool) ([]model.Reservation, error)
	Transactions(ctx context.Context, userID uint64) ([]model.Transaction, error)
}

// RentRequestHandler serves /v1/rent-requests and /v1/transactions.
type RentRequestHandler struct {
	Rents RentRequests
}

func NewRentRequestHandler(rents RentRequests) *RentRequestHandler {
	return &RentRequestHandler{Rents: rents}
}

// idField is the body key addressing a rent request on PUT and DELETE.
const idField = "rentRequest_id"

type createRentReq struct {
	ListingID     uint64 `json:"listing_id"`
	DurationUnit  string `json:"duration_unit"`
	DurationValue int    `json:"duration_value"`
	PickupTime    string `json:"pickup_time"`
}

// Create books a listing for the caller.
func (h *RentRequestHandler) Create(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req createRentReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.ListingID == 0 {
		return badRequest(c, "listing_id is required")
	}
	unit, err := booking.ParseDurationUnit(req.DurationUnit)
	if err != nil {
		return respondError(c, err)
	}
	pickup, err := booking.ParseTimestamp(req.PickupTime)
	if err != nil {
		return respondError(c, err)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	r, err := h.Rents.Create(ctx, service.CreateInput{
		ListingID:     req.ListingID,
		BorrowerID:    uid,
		PickupTime:    pickup,
		DurationUnit:  unit,
		DurationValue: req.DurationValue,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": r})
}

// Update applies the fields of the body the caller's role may change.
func (h *RentRequestHandler) Update(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	fields, err := decodeFields(c)
	if err != nil {
		return badRequest(c, "invalid body")
	}
	id, err := takeID(fields)
	if err != nil {
		return respondError(c, err)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Rents.Update(ctx, service.UpdateInput{
		RentRequestID: id,
		ActorID:       uid,
		ActorIsAdmin:  middleware.IsAdmin(c),
		Fields:        fields,
	})
	if err != nil {
		return respondError(c, err)
	}
	out := echo.Map{"item": res.Reservation}
	if res.Transaction != nil {
		out["transaction"] = res.Transaction
	}
	return c.JSON(http.StatusOK, out)
}

// Delete removes a rent request named in the body and responds 200 with
// the deleted item.  Besides the usual 400, 401, 403 and 404 it answers
// 409 Conflict when the rent request was already approved into a
// transaction; cancel it through Update instead.
func (h *RentRequestHandler) Delete(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	fields, err := decodeFields(c)
	if err != nil {
		return badRequest(c, "invalid body")
	}
	id, err := takeID(fields)
	if err != nil {
		return respondError(c, err)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	r, err := h.Rents.Delete(ctx, id, uid, middleware.IsAdmin(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": r})
}

// Get returns one rent request to a party or an admin.
func (h *RentRequestHandler) Get(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid rent request id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	r, err := h.Rents.Get(ctx, id, uid, middleware.IsAdmin(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": r})
}

// List returns the caller's rent requests, ?as=lender for the ones on
// their listings.
func (h *RentRequestHandler) List(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var asLender bool
	switch strings.ToLower(c.QueryParam("as")) {
	case "", "borrower":
	case "lender":
		asLender = true
	default:
		return badRequest(c, "as must be borrower or lender")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	items, err := h.Rents.List(ctx, uid, asLender)
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Transactions returns the caller's transactions.
func (h *RentRequestHandler) Transactions(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	items, err := h.Rents.Transactions(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []model.Transaction{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// decodeFields reads the body as raw JSON fields; the policy decides
// which of them apply.
func decodeFields(c echo.Context) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// takeID removes the rent request id from fields.  Numbers and numeric
// strings are accepted.
func takeID(fields map[string]json.RawMessage) (uint64, error) {
	raw, ok := fields[idField]
	if !ok {
		return 0, errMissingID
	}
	delete(fields, idField)

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, errMissingID
		}
		n = json.Number(strings.TrimSpace(s))
	}
	id, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil || id == 0 {
		return 0, errMissingID
	}
	return id, nil
}

var errMissingID = fmt.Errorf("%w: %s must be a positive integer", model.ErrValidation, idField)
