package booking

import (
	"fmt"
	"math"

	"github.com/toolshare/rental-backend/internal/model"
)

// ErrNoPrice is returned when the listing has no rate for the unit.
var ErrNoPrice = fmt.Errorf("%w: listing has no price for this duration", model.ErrValidation)

// ComputePrice prices value units of the listing in cents.  Day and
// Week fall back to 24 hourly units when no daily rate is set.
func ComputePrice(l model.Listing, unit model.DurationUnit, value int) (int64, error) {
	if value <= 0 {
		return 0, ErrInvalidDurationValue
	}
	daily := l.DailyPriceCents
	if daily == 0 {
		daily = 24 * l.HourlyPriceCents
	}
	var price int64
	switch unit {
	case model.UnitHour:
		price = l.HourlyPriceCents * int64(value)
	case model.UnitDay:
		price = daily * int64(value)
	case model.UnitWeek:
		price = daily * 7 * int64(value)
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDurationUnit, unit)
	}
	if price <= 0 {
		return 0, ErrNoPrice
	}
	return price, nil
}

// Commission returns the platform share of fee for a rate given in
// percent, rounded to the nearest cent.
func Commission(feeCents int64, ratePercent float64) int64 {
	return int64(math.Round(float64(feeCents) * ratePercent / 100))
}
