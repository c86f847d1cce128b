// Package service holds the business operations behind the HTTP
// handlers.  Services depend on small store interfaces so the booking
// rules can be exercised without a database.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/toolshare/rental-backend/internal/booking"
	"github.com/toolshare/rental-backend/internal/model"
	"github.com/toolshare/rental-backend/internal/queue"
)

var (
	ErrListingUnavailable = fmt.Errorf("%w: listing is not available for booking", model.ErrValidation)
	ErrSelfBooking        = fmt.Errorf("%w: owners cannot book their own listing", model.ErrForbidden)
	ErrOverlap            = fmt.Errorf("%w: listing is already booked for this time window", model.ErrConflict)
	ErrHasTransaction     = fmt.Errorf("%w: rent request already has a transaction", model.ErrConflict)
	ErrWindowLocked       = fmt.Errorf("%w: time window and price are fixed once a request leaves Requested", model.ErrConflict)
	ErrDeleteNotAllowed   = fmt.Errorf("%w: only the borrower or an admin may delete a rent request", model.ErrForbidden)
	ErrSelfApproval       = fmt.Errorf("%w: the borrower cannot approve their own rent request", model.ErrForbidden)
)

// ExpiredReason is recorded on requests cancelled by ExpireStale.
const ExpiredReason = "expired"

// Notifier publishes lifecycle events.  Failures never fail a request.
type Notifier interface {
	Publish(ctx context.Context, ev queue.RentRequestEvent) error
}

// RentRequestConfig holds the business settings of the booking flow.
type RentRequestConfig struct {
	CommissionRate float64       // percent of the rental price
	BookingWindow  time.Duration // how far ahead a pickup may be
}

// RentRequestService runs the reservation lifecycle.
type RentRequestService struct {
	store  RentStore
	notify Notifier
	cfg    RentRequestConfig
	logger echo.Logger
	now    func() time.Time
}

// NewRentRequestService returns a service using the wall clock.  notify
// may be nil to disable notifications.
func NewRentRequestService(store RentStore, notify Notifier, cfg RentRequestConfig, logger echo.Logger) *RentRequestService {
	return &RentRequestService{
		store:  store,
		notify: notify,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput is a booking request from a borrower.
type CreateInput struct {
	ListingID     uint64
	BorrowerID    uint64
	PickupTime    time.Time
	DurationUnit  model.DurationUnit
	DurationValue int
}

// Create books [PickupTime, PickupTime+duration) on a listing.  The
// overlap check and the insert run under the listing row lock, so of
// two concurrent overlapping requests exactly one succeeds.
func (s *RentRequestService) Create(ctx context.Context, in CreateInput) (model.Reservation, error) {
	listing, err := s.store.GetListing(ctx, in.ListingID)
	if err != nil {
		return model.Reservation{}, err
	}
	if !listing.Bookable() {
		return model.Reservation{}, ErrListingUnavailable
	}
	if listing.OwnerID == in.BorrowerID {
		return model.Reservation{}, ErrSelfBooking
	}
	pickup := in.PickupTime.UTC()
	end, err := booking.ComputeEnd(pickup, in.DurationUnit, in.DurationValue)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := booking.ValidatePickupWindow(pickup, s.now(), s.cfg.BookingWindow); err != nil {
		return model.Reservation{}, err
	}

	var created model.Reservation
	err = s.store.InTx(ctx, func(tx RentTx) error {
		locked, err := tx.LockListing(ctx, in.ListingID)
		if err != nil {
			return err
		}
		if !locked.Bookable() {
			return ErrListingUnavailable
		}
		taken, err := tx.HasOverlap(ctx, locked.ID, pickup, end, booking.BlockingStatuses(), 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrOverlap
		}
		price, err := booking.ComputePrice(locked, in.DurationUnit, in.DurationValue)
		if err != nil {
			return err
		}
		created = model.Reservation{
			ListingID:     locked.ID,
			BorrowerID:    in.BorrowerID,
			LenderID:      locked.OwnerID,
			PickupTime:    pickup,
			DropOffTime:   end,
			DurationUnit:  in.DurationUnit,
			DurationValue: in.DurationValue,
			PriceCents:    price,
			Status:        model.StatusRequested,
		}
		return tx.InsertReservation(ctx, &created)
	})
	if err != nil {
		return model.Reservation{}, err
	}

	s.logger.Infof("rent request %d created: listing=%d borrower=%d window=[%s,%s)",
		created.ID, created.ListingID, created.BorrowerID,
		created.PickupTime.Format(time.RFC3339), created.DropOffTime.Format(time.RFC3339))
	s.publish(ctx, queue.EventCreated, created)
	return created, nil
}

// UpdateInput carries the raw request fields; FilterMutableFields
// decides which of them the actor may set.
type UpdateInput struct {
	RentRequestID uint64
	ActorID       uint64
	ActorIsAdmin  bool
	Fields        map[string]json.RawMessage
}

// UpdateResult is the updated reservation plus the transaction created
// when the update approved it.
type UpdateResult struct {
	Reservation model.Reservation
	Transaction *model.Transaction
}

// Update applies the actor's permitted changes.  Asking for Approved
// fails with ErrHasTransaction when the request already has a
// transaction and with ErrOverlap when another blocking reservation
// took the window.
func (s *RentRequestService) Update(ctx context.Context, in UpdateInput) (UpdateResult, error) {
	current, err := s.store.GetReservation(ctx, in.RentRequestID)
	if err != nil {
		return UpdateResult{}, err
	}
	role, err := booking.ResolveRole(in.ActorID, in.ActorIsAdmin, current)
	if err != nil {
		return UpdateResult{}, err
	}
	upd, err := booking.FilterMutableFields(role, in.Fields)
	if err != nil {
		return UpdateResult{}, err
	}
	if upd.Empty() {
		return UpdateResult{Reservation: current}, nil
	}
	// admins who booked the listing themselves act as borrower here
	if upd.RequestsApproval() && in.ActorID == current.BorrowerID {
		return UpdateResult{}, ErrSelfApproval
	}

	var (
		result UpdateResult
		from   model.RentStatus
	)
	err = s.store.InTx(ctx, func(tx RentTx) error {
		listing, err := tx.LockListing(ctx, current.ListingID)
		if err != nil {
			return err
		}
		r, err := tx.GetReservationForUpdate(ctx, in.RentRequestID)
		if err != nil {
			return err
		}
		from = r.Status

		next, err := s.apply(r, upd, listing)
		if err != nil {
			return err
		}

		approving := upd.RequestsApproval()
		if approving {
			if !listing.Bookable() {
				return ErrListingUnavailable
			}
			exists, err := tx.TransactionExists(ctx, r.ID)
			if err != nil {
				return err
			}
			if exists {
				return ErrHasTransaction
			}
		}
		if booking.IsBlocking(next.Status) && (approving || upd.ChangesWindow()) {
			taken, err := tx.HasOverlap(ctx, next.ListingID, next.PickupTime, next.DropOffTime, booking.BlockingStatuses(), next.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrOverlap
			}
		}

		if err := tx.UpdateReservation(ctx, &next); err != nil {
			return err
		}
		result.Reservation = next

		if approving && in.ActorID != next.BorrowerID {
			t := model.Transaction{
				ReservationID:           next.ID,
				ListingID:               next.ListingID,
				BorrowerID:              next.BorrowerID,
				LenderID:                next.LenderID,
				StartTime:               next.PickupTime,
				EndTime:                 next.DropOffTime,
				TotalFeeCents:           next.PriceCents,
				PlatformCommissionCents: booking.Commission(next.PriceCents, s.cfg.CommissionRate),
				DepositCents:            listing.SecurityDepositCents,
				Status:                  model.TxPending,
			}
			if err := tx.InsertTransaction(ctx, &t); err != nil {
				return err
			}
			result.Transaction = &t
			return nil
		}
		if next.Status != from {
			if ts, ok := booking.TransactionStatusFor(next.Status); ok {
				return tx.UpdateTransactionStatus(ctx, next.ID, ts)
			}
		}
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}

	to := result.Reservation.Status
	s.logger.Infof("rent request %d updated by %s %d: %s -> %s", result.Reservation.ID, role, in.ActorID, from, to)
	if to != from {
		if ev, ok := queue.EventForStatus(to); ok {
			s.publish(ctx, ev, result.Reservation)
		}
	}
	return result, nil
}

// apply returns r with upd applied.  A window change recomputes the
// drop-off time and, unless an explicit price is given, the price.
func (s *RentRequestService) apply(r model.Reservation, upd booking.Update, listing model.Listing) (model.Reservation, error) {
	next := r
	if upd.Status != nil {
		if err := booking.CheckTransition(r.Status, *upd.Status); err != nil {
			return r, err
		}
		next.Status = *upd.Status
	}
	if upd.ChangesWindow() || upd.PriceCents != nil {
		if r.Status != model.StatusRequested {
			return r, ErrWindowLocked
		}
	}
	if upd.ChangesWindow() {
		if upd.PickupTime != nil {
			next.PickupTime = upd.PickupTime.UTC()
			if err := booking.ValidatePickupWindow(next.PickupTime, s.now(), s.cfg.BookingWindow); err != nil {
				return r, err
			}
		}
		if upd.DurationUnit != nil {
			next.DurationUnit = *upd.DurationUnit
		}
		if upd.DurationValue != nil {
			next.DurationValue = *upd.DurationValue
		}
		end, err := booking.ComputeEnd(next.PickupTime, next.DurationUnit, next.DurationValue)
		if err != nil {
			return r, err
		}
		next.DropOffTime = end
		price, err := booking.ComputePrice(listing, next.DurationUnit, next.DurationValue)
		if err != nil {
			return r, err
		}
		next.PriceCents = price
	}
	if upd.PriceCents != nil {
		next.PriceCents = *upd.PriceCents
	}
	if upd.ActualPickupTime != nil {
		t := upd.ActualPickupTime.UTC()
		next.ActualPickupTime = &t
	}
	if upd.ActualDropOffTime != nil {
		t := upd.ActualDropOffTime.UTC()
		next.ActualDropOffTime = &t
	}
	if upd.CancellationReason != nil {
		reason := *upd.CancellationReason
		next.CancellationReason = &reason
	}
	return next, nil
}

// Delete removes a rent request.  Only the borrower or an admin may
// delete, and never once a transaction exists for it.
func (s *RentRequestService) Delete(ctx context.Context, id, actorID uint64, actorIsAdmin bool) (model.Reservation, error) {
	current, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if !actorIsAdmin && actorID != current.BorrowerID {
		return model.Reservation{}, ErrDeleteNotAllowed
	}

	var deleted model.Reservation
	err = s.store.InTx(ctx, func(tx RentTx) error {
		if _, err := tx.LockListing(ctx, current.ListingID); err != nil {
			return err
		}
		r, err := tx.GetReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		exists, err := tx.TransactionExists(ctx, id)
		if err != nil {
			return err
		}
		if exists {
			return ErrHasTransaction
		}
		if err := tx.DeleteReservation(ctx, id); err != nil {
			return err
		}
		deleted = r
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	s.logger.Infof("rent request %d deleted by user %d", id, actorID)
	return deleted, nil
}

// Get returns a rent request visible to the actor.
func (s *RentRequestService) Get(ctx context.Context, id, actorID uint64, actorIsAdmin bool) (model.Reservation, error) {
	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if _, err := booking.ResolveRole(actorID, actorIsAdmin, r); err != nil {
		return model.Reservation{}, err
	}
	return r, nil
}

// List returns the user's rent requests as borrower, or as lender when
// asLender is set.
func (s *RentRequestService) List(ctx context.Context, userID uint64, asLender bool) ([]model.Reservation, error) {
	if asLender {
		return s.store.ListByLender(ctx, userID)
	}
	return s.store.ListByBorrower(ctx, userID)
}

// Transactions returns the user's transactions on either side.
func (s *RentRequestService) Transactions(ctx context.Context, userID uint64) ([]model.Transaction, error) {
	return s.store.ListTransactions(ctx, userID)
}

// expireBatch bounds how many requests one ExpireStale call handles.
const expireBatch = 100

// ExpireStale cancels Requested reservations whose pickup time has
// passed, releasing their hold on the listing.  It returns how many
// were cancelled.
func (s *RentRequestService) ExpireStale(ctx context.Context) (int, error) {
	now := s.now()
	stale, err := s.store.ListStaleRequested(ctx, now, expireBatch)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, candidate := range stale {
		var (
			r       model.Reservation
			changed bool
		)
		err := s.store.InTx(ctx, func(tx RentTx) error {
			if _, err := tx.LockListing(ctx, candidate.ListingID); err != nil {
				return err
			}
			var err error
			r, err = tx.GetReservationForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			// the borrower or lender may have acted since the scan
			if r.Status != model.StatusRequested || !r.PickupTime.Before(now) {
				return nil
			}
			reason := ExpiredReason
			r.Status = model.StatusCancelled
			r.CancellationReason = &reason
			changed = true
			return tx.UpdateReservation(ctx, &r)
		})
		if err != nil {
			return expired, fmt.Errorf("expire rent request %d: %w", candidate.ID, err)
		}
		if changed {
			expired++
			s.publish(ctx, queue.EventCancelled, r)
		}
	}
	if expired > 0 {
		s.logger.Infof("expired %d stale rent requests", expired)
	}
	return expired, nil
}

func (s *RentRequestService) publish(ctx context.Context, t queue.EventType, r model.Reservation) {
	if s.notify == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.notify.Publish(pctx, queue.NewRentRequestEvent(t, r, s.now())); err != nil {
		s.logger.Warnf("notify %s for rent request %d: %v", t, r.ID, err)
	}
}
