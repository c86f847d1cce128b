package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/toolshare/rental-backend/internal/model"
)

// MaxDurationValue bounds the number of units a single request may span.
const MaxDurationValue = 1000

var (
	ErrInvalidDurationUnit  = fmt.Errorf("%w: invalid duration unit", model.ErrValidation)
	ErrInvalidDurationValue = fmt.Errorf("%w: invalid duration value", model.ErrValidation)
	ErrInvalidTimestamp     = fmt.Errorf("%w: invalid timestamp", model.ErrValidation)
)

// ParseTimestamp parses an RFC3339 timestamp and normalises it to UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidTimestamp
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil || t.IsZero() {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
	}
	return t.UTC(), nil
}

// ParseDurationUnit maps the wire value onto a DurationUnit.
func ParseDurationUnit(raw string) (model.DurationUnit, error) {
	switch u := model.DurationUnit(strings.TrimSpace(raw)); u {
	case model.UnitHour, model.UnitDay, model.UnitWeek:
		return u, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDurationUnit, raw)
}

// ComputeEnd returns the end of a window starting at start and lasting
// value units.  Day and Week use calendar days.  An unknown unit is an
// error; the start time is never handed back as the end.
func ComputeEnd(start time.Time, unit model.DurationUnit, value int) (time.Time, error) {
	if start.IsZero() {
		return time.Time{}, ErrInvalidTimestamp
	}
	if value <= 0 || value > MaxDurationValue {
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidDurationValue, value)
	}
	switch unit {
	case model.UnitHour:
		return start.Add(time.Duration(value) * time.Hour), nil
	case model.UnitDay:
		return start.AddDate(0, 0, value), nil
	case model.UnitWeek:
		return start.AddDate(0, 0, 7*value), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDurationUnit, unit)
}

var (
	ErrPickupInPast = fmt.Errorf("%w: pickup_time is in the past", model.ErrValidation)
	ErrPickupTooFar = fmt.Errorf("%w: pickup_time is outside the booking window", model.ErrValidation)
)

// ValidatePickupWindow enforces the same-day/next-day booking rule:
// pickup must not be before now and not later than now+window.
func ValidatePickupWindow(pickup, now time.Time, window time.Duration) error {
	if pickup.Before(now) {
		return ErrPickupInPast
	}
	if pickup.After(now.Add(window)) {
		return ErrPickupTooFar
	}
	return nil
}
