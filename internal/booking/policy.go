package booking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/toolshare/rental-backend/internal/model"
)

// ActorRole is the relation between the caller and a reservation.
type ActorRole int

const (
	RoleOwner ActorRole = iota + 1 // lender, owner of the listing
	RoleBorrower
	RoleAdmin
)

func (r ActorRole) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleBorrower:
		return "borrower"
	case RoleAdmin:
		return "admin"
	}
	return "unknown"
}

// Wire names of the mutable reservation fields.
const (
	FieldStatus             = "rent_status"
	FieldPickupTime         = "pickup_time"
	FieldDurationUnit       = "duration_unit"
	FieldDurationValue      = "duration_value"
	FieldActualPickupTime   = "actual_pickup_time"
	FieldActualDropOffTime  = "actual_drop_off_time"
	FieldCancellationReason = "cancellation_reason"
	FieldPrice              = "price_cents"
)

// ErrBorrowerStatus is returned when a borrower asks for any status
// other than Cancelled.
var ErrBorrowerStatus = fmt.Errorf("%w: borrowers may only cancel", model.ErrForbidden)

// ErrNotParty is returned when the caller is neither party nor admin.
var ErrNotParty = fmt.Errorf("%w: not a party to this rent request", model.ErrForbidden)

// allowedFields is the per-role allow-list.
func allowedFields(role ActorRole) []string {
	switch role {
	case RoleOwner:
		return []string{FieldStatus, FieldActualPickupTime, FieldCancellationReason}
	case RoleBorrower:
		return []string{FieldDurationUnit, FieldDurationValue, FieldPickupTime, FieldActualDropOffTime, FieldStatus}
	case RoleAdmin:
		return []string{
			FieldStatus, FieldPickupTime, FieldDurationUnit, FieldDurationValue,
			FieldActualPickupTime, FieldActualDropOffTime, FieldCancellationReason, FieldPrice,
		}
	}
	return nil
}

// Update is the typed change set produced by FilterMutableFields.  A
// nil field is left untouched.
type Update struct {
	Status             *model.RentStatus
	PickupTime         *time.Time
	DurationUnit       *model.DurationUnit
	DurationValue      *int
	ActualPickupTime   *time.Time
	ActualDropOffTime  *time.Time
	CancellationReason *string
	PriceCents         *int64
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.Status == nil && u.PickupTime == nil && u.DurationUnit == nil && u.DurationValue == nil &&
		u.ActualPickupTime == nil && u.ActualDropOffTime == nil && u.CancellationReason == nil && u.PriceCents == nil
}

// ChangesWindow reports whether the booked window has to be recomputed.
func (u Update) ChangesWindow() bool {
	return u.PickupTime != nil || u.DurationUnit != nil || u.DurationValue != nil
}

// RequestsApproval reports whether the update asks for Approved.  A
// repeated approval of an already approved request still counts.
func (u Update) RequestsApproval() bool {
	return u.Status != nil && *u.Status == model.StatusApproved
}

// ResolveRole determines how the actor relates to the reservation.
// Admins win over party roles.
func ResolveRole(actorID uint64, isAdmin bool, r model.Reservation) (ActorRole, error) {
	switch {
	case isAdmin:
		return RoleAdmin, nil
	case actorID != 0 && actorID == r.LenderID:
		return RoleOwner, nil
	case actorID != 0 && actorID == r.BorrowerID:
		return RoleBorrower, nil
	}
	return 0, ErrNotParty
}

// FilterMutableFields keeps the fields role may set, decodes them into
// an Update and drops everything else without complaint.
func FilterMutableFields(role ActorRole, fields map[string]json.RawMessage) (Update, error) {
	allowed := allowedFields(role)
	if allowed == nil {
		return Update{}, ErrNotParty
	}
	var u Update
	for _, name := range allowed {
		raw, ok := fields[name]
		if !ok || isNull(raw) {
			continue
		}
		if err := decodeField(&u, name, raw); err != nil {
			return Update{}, err
		}
	}
	if role == RoleBorrower && u.Status != nil && *u.Status != model.StatusCancelled {
		return Update{}, ErrBorrowerStatus
	}
	return u, nil
}

func decodeField(u *Update, name string, raw json.RawMessage) error {
	switch name {
	case FieldStatus:
		s, err := decodeString(name, raw)
		if err != nil {
			return err
		}
		st := model.RentStatus(s)
		if !st.Valid() {
			return fmt.Errorf("%w: unknown %s %q", model.ErrValidation, name, s)
		}
		u.Status = &st
	case FieldDurationUnit:
		s, err := decodeString(name, raw)
		if err != nil {
			return err
		}
		unit, err := ParseDurationUnit(s)
		if err != nil {
			return err
		}
		u.DurationUnit = &unit
	case FieldDurationValue:
		n, err := decodeInt(name, raw)
		if err != nil {
			return err
		}
		v := int(n)
		u.DurationValue = &v
	case FieldPickupTime, FieldActualPickupTime, FieldActualDropOffTime:
		s, err := decodeString(name, raw)
		if err != nil {
			return err
		}
		t, err := ParseTimestamp(s)
		if err != nil {
			return err
		}
		switch name {
		case FieldPickupTime:
			u.PickupTime = &t
		case FieldActualPickupTime:
			u.ActualPickupTime = &t
		default:
			u.ActualDropOffTime = &t
		}
	case FieldCancellationReason:
		s, err := decodeString(name, raw)
		if err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		u.CancellationReason = &s
	case FieldPrice:
		n, err := decodeInt(name, raw)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("%w: %s must not be negative", model.ErrValidation, name)
		}
		u.PriceCents = &n
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeString(name string, raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s must be a string", model.ErrValidation, name)
	}
	return s, nil
}

// decodeInt accepts a JSON number or a numeric string; older clients
// send form values as strings.
func decodeInt(name string, raw json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: %s must be an integer", model.ErrValidation, name)
}
