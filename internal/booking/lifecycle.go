package booking

import (
	"fmt"

	"github.com/toolshare/rental-backend/internal/model"
)

// ErrInvalidTransition is returned for a status change the lifecycle
// does not allow, including any change out of a terminal state.
var ErrInvalidTransition = fmt.Errorf("%w: status transition not allowed", model.ErrConflict)

// transitions lists the legal targets for each non-terminal status.
// The legacy holding statuses behave like Approved.
func transitions(from model.RentStatus) []model.RentStatus {
	switch from {
	case model.StatusRequested:
		return []model.RentStatus{model.StatusApproved, model.StatusCancelled}
	case model.StatusApproved, model.StatusConfirmed, model.StatusPickedUp:
		return []model.RentStatus{model.StatusCompleted, model.StatusDisputed, model.StatusCancelled}
	}
	return nil
}

// IsTerminal reports whether s is absorbing.
func IsTerminal(s model.RentStatus) bool {
	return s == model.StatusCancelled || s == model.StatusCompleted || s == model.StatusDisputed
}

// CanTransition reports whether a reservation may move from one status
// to another.  Staying in a non-terminal status is allowed.
func CanTransition(from, to model.RentStatus) bool {
	if from == to {
		return !IsTerminal(from)
	}
	for _, t := range transitions(from) {
		if t == to {
			return true
		}
	}
	return false
}

// CheckTransition wraps CanTransition with a descriptive error.
func CheckTransition(from, to model.RentStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// TransactionStatusFor returns the transaction status that mirrors a
// reservation status, if any.
func TransactionStatusFor(s model.RentStatus) (model.TransactionStatus, bool) {
	switch s {
	case model.StatusCompleted:
		return model.TxCompleted, true
	case model.StatusDisputed:
		return model.TxDisputed, true
	case model.StatusCancelled:
		return model.TxCancelled, true
	}
	return "", false
}
