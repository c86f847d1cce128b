package booking

import (
	"errors"
	"testing"

	"github.com/toolshare/rental-backend/internal/model"
)

func TestComputePrice(t *testing.T) {
	l := model.Listing{HourlyPriceCents: 1000, DailyPriceCents: 15000}
	cases := []struct {
		unit  model.DurationUnit
		value int
		want  int64
	}{
		{model.UnitHour, 2, 2000},
		{model.UnitDay, 3, 45000},
		{model.UnitWeek, 1, 105000},
	}
	for _, tc := range cases {
		got, err := ComputePrice(l, tc.unit, tc.value)
		if err != nil || got != tc.want {
			t.Errorf("ComputePrice(%s, %d) = %d, %v; want %d", tc.unit, tc.value, got, err, tc.want)
		}
	}
}

func TestComputePriceDailyFallback(t *testing.T) {
	l := model.Listing{HourlyPriceCents: 100}
	got, err := ComputePrice(l, model.UnitDay, 1)
	if err != nil || got != 2400 {
		t.Fatalf("expected 2400, got %d, %v", got, err)
	}
}

func TestComputePriceErrors(t *testing.T) {
	if _, err := ComputePrice(model.Listing{}, model.UnitHour, 1); !errors.Is(err, ErrNoPrice) {
		t.Errorf("expected ErrNoPrice, got %v", err)
	}
	if _, err := ComputePrice(model.Listing{HourlyPriceCents: 1}, "Fortnight", 1); !errors.Is(err, ErrInvalidDurationUnit) {
		t.Errorf("expected ErrInvalidDurationUnit, got %v", err)
	}
}

func TestCommission(t *testing.T) {
	if got := Commission(2000, 10); got != 200 {
		t.Errorf("Commission(2000, 10) = %d", got)
	}
	if got := Commission(999, 7.5); got != 75 {
		t.Errorf("Commission(999, 7.5) = %d, want 75", got)
	}
}
