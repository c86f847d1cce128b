package booking

import (
	"errors"
	"testing"

	"github.com/toolshare/rental-backend/internal/model"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]model.RentStatus{
		{model.StatusRequested, model.StatusApproved},
		{model.StatusRequested, model.StatusCancelled},
		{model.StatusApproved, model.StatusCompleted},
		{model.StatusApproved, model.StatusDisputed},
		{model.StatusApproved, model.StatusCancelled},
		{model.StatusRequested, model.StatusRequested},
		{model.StatusPickedUp, model.StatusCompleted},
	}
	for _, p := range allowed {
		if !CanTransition(p[0], p[1]) {
			t.Errorf("%s -> %s should be allowed", p[0], p[1])
		}
	}
	denied := [][2]model.RentStatus{
		{model.StatusRequested, model.StatusCompleted},
		{model.StatusRequested, model.StatusDisputed},
		{model.StatusApproved, model.StatusRequested},
		{model.StatusCancelled, model.StatusApproved},
		{model.StatusCancelled, model.StatusCancelled},
		{model.StatusCompleted, model.StatusDisputed},
		{model.StatusDisputed, model.StatusCompleted},
	}
	for _, p := range denied {
		if CanTransition(p[0], p[1]) {
			t.Errorf("%s -> %s should be denied", p[0], p[1])
		}
	}
}

func TestCheckTransitionIsConflict(t *testing.T) {
	err := CheckTransition(model.StatusCompleted, model.StatusCancelled)
	if !errors.Is(err, ErrInvalidTransition) || !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestTransactionStatusFor(t *testing.T) {
	if s, ok := TransactionStatusFor(model.StatusCompleted); !ok || s != model.TxCompleted {
		t.Errorf("Completed should map to TxCompleted")
	}
	if _, ok := TransactionStatusFor(model.StatusApproved); ok {
		t.Errorf("Approved has no mirrored transaction status")
	}
}
