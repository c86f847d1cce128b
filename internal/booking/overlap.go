package booking

import (
	"time"

	"github.com/toolshare/rental-backend/internal/model"
)

// Overlaps reports whether the half-open windows [aStart, aEnd) and
// [bStart, bEnd) intersect.  A window ending exactly when another
// starts does not overlap it.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// BlockingStatuses lists the statuses that occupy a listing's calendar.
// The same set is used when a request is created, when one is approved
// and when its window is moved.  Requested blocks too, so at most one
// live request holds any instant of a listing.
func BlockingStatuses() []model.RentStatus {
	return []model.RentStatus{model.StatusRequested, model.StatusApproved, model.StatusConfirmed, model.StatusPickedUp}
}

// IsBlocking reports whether a reservation in status s holds its window.
func IsBlocking(s model.RentStatus) bool {
	for _, b := range BlockingStatuses() {
		if b == s {
			return true
		}
	}
	return false
}

// FirstConflict returns the first reservation in existing that blocks
// the candidate window, skipping excludeID.  Stores without a query
// language use it to answer the overlap question.
func FirstConflict(existing []model.Reservation, start, end time.Time, excludeID uint64) (model.Reservation, bool) {
	for _, r := range existing {
		if r.ID == excludeID || !IsBlocking(r.Status) {
			continue
		}
		if Overlaps(start, end, r.PickupTime, r.DropOffTime) {
			return r, true
		}
	}
	return model.Reservation{}, false
}
