package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func totals(values ...string) []MonthlyTotal {
	out := make([]MonthlyTotal, len(values))
	m := Month{Year: 2025, Month: time.January}
	for i, v := range values {
		out[i] = MonthlyTotal{Month: m, Total: decimal.RequireFromString(v)}
		m = m.Next()
	}
	return out
}

func TestForecastNextMonth(t *testing.T) {
	cases := []struct {
		name   string
		in     []MonthlyTotal
		want   string
		months int
	}{
		{"single month predicts itself", totals("120.5"), "120.5", 1},
		{"linear growth", totals("100", "200", "300"), "400", 3},
		{"flat", totals("50", "50", "50", "50"), "50", 4},
		{"declining clamps to zero", totals("300", "100"), "0", 2},
		{"window keeps last six", totals("1000", "1000", "10", "20", "30", "40", "50", "60"), "70", 6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ForecastNextMonth(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.PredictedNext.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("expected %s, got %s", tc.want, got.PredictedNext)
			}
			if len(got.Months) != tc.months {
				t.Fatalf("expected %d months, got %d", tc.months, len(got.Months))
			}
		})
	}
}

func TestForecastNextMonthNoData(t *testing.T) {
	if _, err := ForecastNextMonth(nil); !errors.Is(err, ErrNotEnoughData) {
		t.Fatalf("expected ErrNotEnoughData, got %v", err)
	}
}
