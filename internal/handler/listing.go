package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/toolshare/rental-backend/internal/middleware"
	"github.com/toolshare/rental-backend/internal/model"
	"github.com/toolshare/rental-backend/internal/repository"
	"github.com/toolshare/rental-backend/internal/service"
)

// maxImageBytes caps a single uploaded listing image.
const maxImageBytes = 5 << 20

// Listings is implemented by *service.ListingService.
type Listings interface {
	Create(ctx context.Context, ownerID uint64, in service.ListingInput) (model.Listing, error)
	Get(ctx context.Context, id, viewerID uint64, viewerIsAdmin bool) (model.Listing, error)
	Browse(ctx context.Context, f repository.ListingFilter) ([]model.Listing, error)
	Update(ctx context.Context, id, actorID uint64, actorIsAdmin bool, in service.ListingInput) (model.Listing, error)
	Delete(ctx context.Context, id, actorID uint64, actorIsAdmin bool) (model.Listing, error)
	Moderate(ctx context.Context, id uint64, approved bool) (model.Listing, error)
	AddImage(ctx context.Context, id, actorID uint64, filename, contentType string, body io.ReadSeeker) (model.Listing, error)
}

// ListingHandler serves /v1/listings and the listing moderation route.
type ListingHandler struct {
	Listings Listings
}

func NewListingHandler(l Listings) *ListingHandler {
	return &ListingHandler{Listings: l}
}

type moderateReq struct {
	Approved *bool `json:"approved"`
}

// Create publishes a new listing owned by the caller.  It stays hidden
// from browsing until a moderator approves it.
func (h *ListingHandler) Create(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var in service.ListingInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	l, err := h.Listings.Create(ctx, uid, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": l})
}

// Browse lists bookable listings.  Query: lat, lng, radius_km, q,
// limit, offset.
func (h *ListingHandler) Browse(c echo.Context) error {
	var f repository.ListingFilter
	var ok bool
	if f.Lat, ok = floatParam(c, "lat"); !ok {
		return badRequest(c, "invalid lat")
	}
	if f.Lng, ok = floatParam(c, "lng"); !ok {
		return badRequest(c, "invalid lng")
	}
	radius, ok := floatParam(c, "radius_km")
	if !ok {
		return badRequest(c, "invalid radius_km")
	}
	if radius != nil {
		f.RadiusKm = *radius
	}
	if f.Limit, ok = intParam(c, "limit"); !ok {
		return badRequest(c, "invalid limit")
	}
	if f.Offset, ok = intParam(c, "offset"); !ok {
		return badRequest(c, "invalid offset")
	}
	f.Query = strings.TrimSpace(c.QueryParam("q"))

	ctx, cancel := withTimeout(c)
	defer cancel()

	items, err := h.Listings.Browse(ctx, f)
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []model.Listing{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get returns one listing.  Unapproved listings are visible only to
// their owner and admins; the route runs behind OptionalJWT.
func (h *ListingHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	viewer, _ := middleware.UserID(c)

	ctx, cancel := withTimeout(c)
	defer cancel()

	l, err := h.Listings.Get(ctx, id, viewer, middleware.IsAdmin(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": l})
}

// Update applies a partial update by the owner.
func (h *ListingHandler) Update(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	var in service.ListingInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	l, err := h.Listings.Update(ctx, id, uid, middleware.IsAdmin(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": l})
}

// Delete deactivates a listing.
func (h *ListingHandler) Delete(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	l, err := h.Listings.Delete(ctx, id, uid, middleware.IsAdmin(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": l})
}

// Approve records a moderation decision.  Admin only.
func (h *ListingHandler) Approve(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	var req moderateReq
	if err := c.Bind(&req); err != nil || req.Approved == nil {
		return badRequest(c, "approved is required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	l, err := h.Listings.Moderate(ctx, id, *req.Approved)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": l})
}

// UploadImage stores the multipart "image" file and attaches it to the
// listing.
func (h *ListingHandler) UploadImage(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return badRequest(c, "image file is required")
	}
	if fh.Size > maxImageBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "image too large"})
	}
	f, err := fh.Open()
	if err != nil {
		return respondError(c, err)
	}
	defer f.Close()

	ctx, cancel := withTimeout(c)
	defer cancel()

	l, err := h.Listings.AddImage(ctx, id, uid, fh.Filename, contentType(fh, f), f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": l})
}

// contentType trusts the part header when set, otherwise sniffs the
// first bytes and rewinds.
func contentType(fh *multipart.FileHeader, f multipart.File) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	_, _ = f.Seek(0, io.SeekStart)
	return http.DetectContentType(head[:n])
}

func floatParam(c echo.Context, name string) (*float64, bool) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}

func intParam(c echo.Context, name string) (int, bool) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil
}
