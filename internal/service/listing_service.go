package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/toolshare/rental-backend/internal/model"
	"github.com/toolshare/rental-backend/internal/repository"
)

var (
	ErrNotListingOwner = fmt.Errorf("%w: only the owner may change this listing", model.ErrForbidden)
	ErrUploadsDisabled = fmt.Errorf("%w: image uploads are not configured", model.ErrValidation)
	ErrNotAnImage      = fmt.Errorf("%w: file must be an image", model.ErrValidation)
)

// Browse limits.
const (
	DefaultBrowseLimit  = 20
	MaxBrowseLimit      = 100
	DefaultRadiusKm     = 10.0
	MaxRadiusKm         = 500.0
	maxTitleLen         = 200
	maxDescriptionBytes = 10000
)

// ListingStore is the persistence ListingService needs.
type ListingStore interface {
	Create(ctx context.Context, l *model.Listing) error
	GetByID(ctx context.Context, id uint64) (model.Listing, error)
	Browse(ctx context.Context, f repository.ListingFilter) ([]model.Listing, error)
	Update(ctx context.Context, l *model.Listing) error
	SetApproved(ctx context.Context, id uint64, approved bool) error
	Deactivate(ctx context.Context, id uint64) error
	AddImage(ctx context.Context, listingID uint64, url string) error
}

// ImageStore saves an uploaded object and returns its public URL.
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, body io.ReadSeeker) (string, error)
}

// CachePurger drops cached browse responses after a listing changes.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// ListingService manages listings on behalf of owners and moderators.
type ListingService struct {
	store  ListingStore
	images ImageStore
	cache  CachePurger
	logger echo.Logger
}

// NewListingService returns a ListingService.  images and cache may be
// nil.
func NewListingService(store ListingStore, images ImageStore, cache CachePurger, logger echo.Logger) *ListingService {
	return &ListingService{store: store, images: images, cache: cache, logger: logger}
}

// ListingInput is a create or partial update.  Nil fields are left
// unchanged on update.
type ListingInput struct {
	Title                *string  `json:"title"`
	Description          *string  `json:"description"`
	HourlyPriceCents     *int64   `json:"hourly_price_cents"`
	DailyPriceCents      *int64   `json:"daily_price_cents"`
	SecurityDepositCents *int64   `json:"security_deposit_cents"`
	Latitude             *float64 `json:"latitude"`
	Longitude            *float64 `json:"longitude"`
	IsAvailable          *bool    `json:"is_available"`
}

func (in ListingInput) applyTo(l *model.Listing) {
	if in.Title != nil {
		l.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		l.Description = strings.TrimSpace(*in.Description)
	}
	if in.HourlyPriceCents != nil {
		l.HourlyPriceCents = *in.HourlyPriceCents
	}
	if in.DailyPriceCents != nil {
		l.DailyPriceCents = *in.DailyPriceCents
	}
	if in.SecurityDepositCents != nil {
		l.SecurityDepositCents = *in.SecurityDepositCents
	}
	if in.Latitude != nil {
		l.Latitude = in.Latitude
	}
	if in.Longitude != nil {
		l.Longitude = in.Longitude
	}
	if in.IsAvailable != nil {
		l.IsAvailable = *in.IsAvailable
	}
}

func validateListing(l model.Listing) error {
	switch {
	case l.Title == "":
		return fmt.Errorf("%w: title is required", model.ErrValidation)
	case len([]rune(l.Title)) > maxTitleLen:
		return fmt.Errorf("%w: title is too long", model.ErrValidation)
	case len(l.Description) > maxDescriptionBytes:
		return fmt.Errorf("%w: description is too long", model.ErrValidation)
	case l.HourlyPriceCents < 0 || l.DailyPriceCents < 0 || l.SecurityDepositCents < 0:
		return fmt.Errorf("%w: prices must not be negative", model.ErrValidation)
	case l.HourlyPriceCents == 0 && l.DailyPriceCents == 0:
		return fmt.Errorf("%w: an hourly or daily price is required", model.ErrValidation)
	case (l.Latitude == nil) != (l.Longitude == nil):
		return fmt.Errorf("%w: latitude and longitude go together", model.ErrValidation)
	}
	if l.Latitude != nil && (*l.Latitude < -90 || *l.Latitude > 90 || *l.Longitude < -180 || *l.Longitude > 180) {
		return fmt.Errorf("%w: coordinates out of range", model.ErrValidation)
	}
	return nil
}

// Create adds a listing owned by ownerID.  It stays hidden until a
// moderator approves it.
func (s *ListingService) Create(ctx context.Context, ownerID uint64, in ListingInput) (model.Listing, error) {
	l := model.Listing{OwnerID: ownerID, IsAvailable: true}
	in.applyTo(&l)
	if err := validateListing(l); err != nil {
		return model.Listing{}, err
	}
	if err := s.store.Create(ctx, &l); err != nil {
		return model.Listing{}, err
	}
	s.logger.Infof("listing %d created by user %d", l.ID, ownerID)
	return l, nil
}

// Get returns an approved listing.  Unapproved listings are only
// visible to their owner and admins.
func (s *ListingService) Get(ctx context.Context, id, viewerID uint64, viewerIsAdmin bool) (model.Listing, error) {
	l, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Listing{}, err
	}
	if !l.IsApproved && !viewerIsAdmin && viewerID != l.OwnerID {
		return model.Listing{}, fmt.Errorf("%w: listing", model.ErrNotFound)
	}
	return l, nil
}

// Browse lists bookable listings, clamping paging and radius.
func (s *ListingService) Browse(ctx context.Context, f repository.ListingFilter) ([]model.Listing, error) {
	if (f.Lat == nil) != (f.Lng == nil) {
		return nil, fmt.Errorf("%w: lat and lng go together", model.ErrValidation)
	}
	if f.Lat != nil && (*f.Lat < -90 || *f.Lat > 90 || *f.Lng < -180 || *f.Lng > 180) {
		return nil, fmt.Errorf("%w: coordinates out of range", model.ErrValidation)
	}
	if f.Limit <= 0 {
		f.Limit = DefaultBrowseLimit
	}
	if f.Limit > MaxBrowseLimit {
		f.Limit = MaxBrowseLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.RadiusKm <= 0 {
		f.RadiusKm = DefaultRadiusKm
	}
	if f.RadiusKm > MaxRadiusKm {
		f.RadiusKm = MaxRadiusKm
	}
	return s.store.Browse(ctx, f)
}

func (s *ListingService) owned(ctx context.Context, id, actorID uint64, actorIsAdmin bool) (model.Listing, error) {
	l, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Listing{}, err
	}
	if !actorIsAdmin && l.OwnerID != actorID {
		return model.Listing{}, ErrNotListingOwner
	}
	return l, nil
}

// Update applies a partial update by the owner or an admin.
func (s *ListingService) Update(ctx context.Context, id, actorID uint64, actorIsAdmin bool, in ListingInput) (model.Listing, error) {
	l, err := s.owned(ctx, id, actorID, actorIsAdmin)
	if err != nil {
		return model.Listing{}, err
	}
	in.applyTo(&l)
	if err := validateListing(l); err != nil {
		return model.Listing{}, err
	}
	if err := s.store.Update(ctx, &l); err != nil {
		return model.Listing{}, err
	}
	s.purge(ctx)
	return l, nil
}

// Delete deactivates a listing.  Existing reservations are untouched.
func (s *ListingService) Delete(ctx context.Context, id, actorID uint64, actorIsAdmin bool) (model.Listing, error) {
	l, err := s.owned(ctx, id, actorID, actorIsAdmin)
	if err != nil {
		return model.Listing{}, err
	}
	if err := s.store.Deactivate(ctx, id); err != nil {
		return model.Listing{}, err
	}
	l.IsAvailable = false
	s.logger.Infof("listing %d deactivated by user %d", id, actorID)
	s.purge(ctx)
	return l, nil
}

// Moderate records an admin's approval decision.
func (s *ListingService) Moderate(ctx context.Context, id uint64, approved bool) (model.Listing, error) {
	if err := s.store.SetApproved(ctx, id, approved); err != nil {
		return model.Listing{}, err
	}
	s.purge(ctx)
	return s.store.GetByID(ctx, id)
}

// AddImage uploads an image for the listing and records its URL.
func (s *ListingService) AddImage(ctx context.Context, id, actorID uint64, filename, contentType string, body io.ReadSeeker) (model.Listing, error) {
	if s.images == nil {
		return model.Listing{}, ErrUploadsDisabled
	}
	if !strings.HasPrefix(contentType, "image/") {
		return model.Listing{}, ErrNotAnImage
	}
	if _, err := s.owned(ctx, id, actorID, false); err != nil {
		return model.Listing{}, err
	}
	key := fmt.Sprintf("listings/%d/%s%s", id, uuid.NewString(), strings.ToLower(path.Ext(filename)))
	url, err := s.images.Put(ctx, key, contentType, body)
	if err != nil {
		return model.Listing{}, fmt.Errorf("upload image: %w", err)
	}
	if err := s.store.AddImage(ctx, id, url); err != nil {
		return model.Listing{}, err
	}
	s.purge(ctx)
	return s.store.GetByID(ctx, id)
}

func (s *ListingService) purge(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Purge(ctx); err != nil {
		s.logger.Warnf("listing cache purge failed: %v", err)
	}
}
