package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CategoryOthers is the fallback category assigned when no better one is known.
const CategoryOthers CategoryID = 4

const (
	CategoryTypeExpense = "expense"
	CategoryTypeIncome  = "income"
)

type (
	CategoryID int

	Date struct {
		time.Time
	}

	// Month identifies a calendar month, rendered as YYYY-MM.
	Month struct {
		Year  int
		Month time.Month
	}

	Category struct {
		ID       CategoryID
		Name     string
		Type     string
		Keywords []string
	}

	User struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	Transaction struct {
		ID         int64
		UserID     int64
		CategoryID CategoryID
		Amount     decimal.Decimal
		Note       string
		Date       Date
	}

	Budget struct {
		ID         int64
		UserID     int64
		CategoryID CategoryID
		Limit      decimal.Decimal
		Month      Month
	}

	BudgetStatus struct {
		CategoryID  CategoryID
		Category    string
		Limit       decimal.Decimal
		Spent       decimal.Decimal
		UsedPercent decimal.Decimal
	}

	// BudgetAlert is raised when spending in a category passes the alert threshold.
	BudgetAlert struct {
		UserID      int64
		Email       string
		CategoryID  CategoryID
		Category    string
		Limit       decimal.Decimal
		Spent       decimal.Decimal
		UsedPercent decimal.Decimal
		Month       Month
	}

	MonthlyTotal struct {
		Month Month
		Total decimal.Decimal
	}

	CategoryTotal struct {
		Category string
		Total    decimal.Decimal
	}
)

var (
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCategory = errors.New("invalid category")
	ErrNoteTooLong     = errors.New("note too long (max 500 characters)")
	ErrMissingUser     = errors.New("missing user")
)

const maxNoteLength = 500

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current UTC date truncated to midnight.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate accepts YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// MonthOf returns the calendar month containing the date.
func (d Date) MonthOf() Month {
	return Month{Year: d.Year(), Month: d.Time.Month()}
}

// ParseMonth parses a YYYY-MM string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// CurrentMonth returns the month containing now.
// CurrentMonth is the UTC month of now, the same calendar Today uses.
func CurrentMonth(now time.Time) Month {
	now = now.UTC()
	return Month{Year: now.Year(), Month: now.Month()}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

func (t Transaction) Validate() error {
	if t.UserID <= 0 {
		return ErrMissingUser
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.CategoryID <= 0 {
		return ErrInvalidCategory
	}
	if len([]rune(t.Note)) > maxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}

func (b Budget) Validate() error {
	if b.UserID <= 0 {
		return ErrMissingUser
	}
	if b.CategoryID <= 0 {
		return ErrInvalidCategory
	}
	if b.Limit.IsNegative() {
		return ErrInvalidAmount
	}
	if b.Month.IsZero() || b.Month.Month < time.January || b.Month.Month > time.December {
		return ErrInvalidMonth
	}
	return nil
}
