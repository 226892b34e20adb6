// Package core provides money parsing and handling utilities.
//
// Amounts are carried as shopspring decimals and rounded to cents only
// at the edges (parsing, percentages, JSON rendering).
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a decimal string to a positive amount rounded half-up to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.35, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ",") > 0 && strings.Count(s, ".") > 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = RoundCents(d)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// RoundCents rounds half away from zero to two decimal places.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// UsedPercent returns spent/limit*100 rounded to two places, or zero when limit is not positive.
func UsedPercent(spent, limit decimal.Decimal) decimal.Decimal {
	if !limit.IsPositive() {
		return decimal.Zero
	}
	return spent.Div(limit).Mul(hundred).Round(2)
}

// NewBudgetStatus derives the usage figures for a budget row.
func NewBudgetStatus(id CategoryID, name string, limit, spent decimal.Decimal) BudgetStatus {
	return BudgetStatus{
		CategoryID:  id,
		Category:    name,
		Limit:       limit,
		Spent:       spent,
		UsedPercent: UsedPercent(spent, limit),
	}
}

// Exceeds reports whether usage is strictly above the threshold percentage.
func (s BudgetStatus) Exceeds(threshold decimal.Decimal) bool {
	return s.Limit.IsPositive() && s.UsedPercent.GreaterThan(threshold)
}
