package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"0", "", false},
		{"0.001", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1,000.50", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestUsedPercent(t *testing.T) {
	cases := []struct {
		spent, limit, want string
	}{
		{"50", "100", "50"},
		{"1", "3", "33.33"},
		{"2", "3", "66.67"},
		{"10", "0", "0"},
		{"0", "200", "0"},
	}
	for _, tc := range cases {
		got := UsedPercent(decimal.RequireFromString(tc.spent), decimal.RequireFromString(tc.limit))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("UsedPercent(%s, %s) = %s, want %s", tc.spent, tc.limit, got, tc.want)
		}
	}
}

func TestBudgetStatusExceeds(t *testing.T) {
	threshold := decimal.NewFromInt(90)
	cases := []struct {
		spent, limit string
		want         bool
	}{
		{"91", "100", true},
		{"90", "100", false},
		{"50", "100", false},
		{"10", "0", false},
	}
	for _, tc := range cases {
		s := NewBudgetStatus(1, "Food", decimal.RequireFromString(tc.limit), decimal.RequireFromString(tc.spent))
		if got := s.Exceeds(threshold); got != tc.want {
			t.Fatalf("spent %s of %s: expected %v, got %v", tc.spent, tc.limit, tc.want, got)
		}
	}
}
