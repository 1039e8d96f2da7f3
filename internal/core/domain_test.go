package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{}, false},
		{Date{Year: 2024, Month: 2, Day: 30}, false},
		{Date{Year: 2024, Month: 13, Day: 1}, false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateArithmetic(t *testing.T) {
	start := NewDate(2024, 1, 1)
	if start.Weekday() != time.Monday {
		t.Fatalf("2024-01-01 should be a Monday, got %v", start.Weekday())
	}
	if got := NewDate(2024, 1, 15).DaysSince(start); got != 14 {
		t.Fatalf("expected 14 days, got %d", got)
	}
	if got := NewDate(2023, 12, 25).DaysSince(start); got != -7 {
		t.Fatalf("expected -7 days, got %d", got)
	}
	// Crosses the March DST switch in Europe; must still be whole days.
	if got := NewDate(2024, 4, 1).DaysSince(NewDate(2024, 3, 25)); got != 7 {
		t.Fatalf("expected 7 days across DST, got %d", got)
	}
	if got := start.AddDays(60); got != NewDate(2024, 3, 1) {
		t.Fatalf("expected 2024-03-01 (leap year), got %s", got)
	}
	if !start.Before(start.AddDays(1)) || start.After(start) {
		t.Fatalf("unexpected ordering")
	}
	if got := NewDate(2024, 2, 29).AddYears(1); got != NewDate(2025, 3, 1) {
		t.Fatalf("expected leap day to roll over, got %v", got)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2024-02-29" {
		t.Fatalf("round trip mismatch: %s", d)
	}
	for _, bad := range []string{"", "2024-13-01", "01.01.2024", "2023-02-29"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestToday(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tz data unavailable: %v", err)
	}
	// 23:30 UTC on Jan 7 is already Jan 8 in Berlin.
	now := time.Date(2024, 1, 7, 23, 30, 0, 0, time.UTC)
	if got := Today(now, berlin); got != NewDate(2024, 1, 8) {
		t.Fatalf("expected 2024-01-08, got %s", got)
	}
	if got := Today(now, nil); got != NewDate(2024, 1, 7) {
		t.Fatalf("expected 2024-01-07 in UTC, got %s", got)
	}
}

func TestChildValidate(t *testing.T) {
	good := Child{
		Name:         "Mia",
		WeeklyRate:   Money{Cents: 500},
		StartDate:    NewDate(2024, 1, 1),
		StartBalance: Money{Cents: 0},
		PayoutDay:    time.Friday,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	zeroRate := good
	zeroRate.WeeklyRate = Money{}
	if err := zeroRate.Validate(); err != nil {
		t.Fatalf("zero weekly rate should be allowed, got %v", err)
	}

	bads := []Child{
		{Name: " ", WeeklyRate: Money{Cents: 1}, StartDate: NewDate(2024, 1, 1)},
		{Name: strings.Repeat("x", 101), WeeklyRate: Money{Cents: 1}, StartDate: NewDate(2024, 1, 1)},
		{Name: "a", WeeklyRate: Money{Cents: -1}, StartDate: NewDate(2024, 1, 1)},
		{Name: "a", StartBalance: Money{Cents: -1}, StartDate: NewDate(2024, 1, 1)},
		{Name: "a", PayoutDay: 7, StartDate: NewDate(2024, 1, 1)},
		{Name: "a"},
		{Name: "a", WeeklyRate: Money{Cents: MaxCents + 1}, StartDate: NewDate(2024, 1, 1)},
		{Name: "a", StartBalance: Money{Cents: MaxCents + 1}, StartDate: NewDate(2024, 1, 1)},
		{Name: "a", StartDate: NewDate(1600, 1, 3)},
		{Name: "a", StartDate: NewDate(MaxStartYear+1, 1, 1)},
	}
	for i, c := range bads {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestChildValidateBounds(t *testing.T) {
	c := Child{Name: "Mia", StartDate: NewDate(MinStartYear, 1, 1), WeeklyRate: Money{Cents: MaxCents}, StartBalance: Money{Cents: MaxCents}}
	if err := c.Validate(); err != nil {
		t.Fatalf("limits are inclusive, got %v", err)
	}
	c.StartDate = NewDate(MinStartYear-1, 12, 31)
	if err := c.Validate(); !errors.Is(err, ErrStartDateOutOfRange) || !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrStartDateOutOfRange, got %v", err)
	}
}

func TestMoneyValidateLimit(t *testing.T) {
	if err := (Money{Cents: MaxCents}).Validate(); err != nil {
		t.Fatalf("MaxCents should be bookable, got %v", err)
	}
	if err := (Money{Cents: MaxCents + 1}).Validate(); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}
	if err := (Transaction{Amount: Money{Cents: -MaxCents - 1}}).Validate(); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge for huge withdrawal, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	if err := (Transaction{Amount: Money{Cents: -300}}).Validate(); err != nil {
		t.Fatalf("withdrawal should be valid, got %v", err)
	}
	if err := (Transaction{}).Validate(); err == nil {
		t.Fatalf("expected error for zero amount")
	}
	if err := (Transaction{Amount: Money{Cents: 1}, Note: strings.Repeat("n", 201)}).Validate(); err == nil {
		t.Fatalf("expected error for long note")
	}
}

func TestMergeHistory(t *testing.T) {
	txs := []Transaction{
		{ID: 1, Amount: Money{Cents: 1500}, Note: "Geburtstag", CreatedAt: time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)},
		{ID: 2, Amount: Money{Cents: -800}, CreatedAt: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)},
	}
	rates := []RateEntry{
		{ID: "rate-1", Amount: Money{Cents: 1000}, Date: NewDate(2024, 1, 8)},
		{ID: "rate-2", Amount: Money{Cents: 1000}, Date: NewDate(2024, 1, 15)},
	}

	got := MergeHistory(txs, rates, time.UTC)
	wantIDs := []string{"rate-2", "2", "rate-1", "1"}
	if len(got) != len(wantIDs) {
		t.Fatalf("expected %d entries, got %d", len(wantIDs), len(got))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
	if !got[0].Virtual || got[1].Virtual {
		t.Fatalf("virtual flags not set correctly")
	}
}

func TestMergeHistoryOutsideUnixNanoRange(t *testing.T) {
	rates := []RateEntry{
		{ID: "rate-1", Amount: Money{Cents: 100}, Date: NewDate(1600, 1, 10)},
		{ID: "rate-2", Amount: Money{Cents: 100}, Date: NewDate(1677, 9, 20)},
		{ID: "rate-3", Amount: Money{Cents: 100}, Date: NewDate(1677, 9, 27)},
	}
	txs := []Transaction{{ID: 1, Amount: Money{Cents: 5}, CreatedAt: time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)}}

	got := MergeHistory(txs, rates, time.UTC)
	wantIDs := []string{"1", "rate-3", "rate-2", "rate-1"}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}
