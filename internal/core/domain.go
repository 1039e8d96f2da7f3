package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxNameLength = 100
	MaxNoteLength = 200

	// DefaultPayoutDay is used when a form does not specify one.
	DefaultPayoutDay = time.Monday

	// Start dates outside these years are rejected.
	MinStartYear = 1970
	MaxStartYear = 2100
)

type (
	Money struct {
		Cents int64
	}

	// Child is a child's allowance account: who it belongs to and how it accrues.
	Child struct {
		ID           int64
		Name         string
		WeeklyRate   Money
		StartDate    Date
		StartBalance Money
		PayoutDay    time.Weekday
	}

	// Transaction is a manually recorded deposit (positive) or withdrawal (negative).
	// Transactions are never edited or deleted once stored.
	Transaction struct {
		ID        int64
		ChildID   int64
		Amount    Money
		Note      string
		CreatedAt time.Time
	}

	// RateEntry is a weekly allowance credit reconstructed for display. It is
	// never stored.
	RateEntry struct {
		ID     string
		Amount Money
		Note   string
		Date   Date
	}
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidPayoutDay     = errors.New("invalid payout day")
	ErrEmptyName            = errors.New("empty name")
	ErrNameTooLong          = errors.New("name too long (max 100 characters)")
	ErrNoteTooLong          = errors.New("note too long (max 200 characters)")
	ErrNegativeWeeklyRate   = errors.New("weekly rate must not be negative")
	ErrNegativeStartBalance = errors.New("start balance must not be negative")

	ErrAmountTooLarge      = fmt.Errorf("%w: above 1.000.000 €", ErrInvalidAmount)
	ErrStartDateOutOfRange = fmt.Errorf("%w: start date out of range", ErrInvalidDate)
)

// Validate checks that m is a bookable amount: positive and at most MaxCents.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	if m.Cents > MaxCents {
		return ErrAmountTooLarge
	}
	return nil
}

// ValidPayoutDay reports whether d is one of Sunday (0) to Saturday (6).
func ValidPayoutDay(d time.Weekday) bool {
	return d >= time.Sunday && d <= time.Saturday
}

// Validate checks name, amounts, payout day and start date of the profile.
func (c Child) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if c.WeeklyRate.Cents < 0 {
		return ErrNegativeWeeklyRate
	}
	if c.StartBalance.Cents < 0 {
		return ErrNegativeStartBalance
	}
	if c.WeeklyRate.Cents > MaxCents || c.StartBalance.Cents > MaxCents {
		return ErrAmountTooLarge
	}
	if !ValidPayoutDay(c.PayoutDay) {
		return ErrInvalidPayoutDay
	}
	if err := c.StartDate.Validate(); err != nil {
		return err
	}
	if c.StartDate.Year < MinStartYear || c.StartDate.Year > MaxStartYear {
		return ErrStartDateOutOfRange
	}
	return nil
}

// Validate checks a ledger entry before it is stored.
func (t Transaction) Validate() error {
	if t.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if t.Amount.Cents > MaxCents || t.Amount.Cents < -MaxCents {
		return ErrAmountTooLarge
	}
	if utf8.RuneCountInString(t.Note) > MaxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}

// IsDeposit reports whether the transaction adds money to the account.
func (t Transaction) IsDeposit() bool {
	return t.Amount.Cents > 0
}
