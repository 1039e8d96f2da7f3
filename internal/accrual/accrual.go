// Package accrual computes allowance balances.
//
// A profile credits a fixed weekly rate on a fixed weekday. The first credit
// lands on the first occurrence of that weekday strictly after the start date;
// the start balance already covers the start day itself. Everything here is a
// pure function of its arguments: the evaluation day is always passed in and
// nothing reads the clock.
package accrual

import (
	"iter"
	"slices"
	"strconv"
	"time"

	"taschengeld/internal/core"
)

// RateNote is the note shown on every reconstructed weekly credit.
const RateNote = "Wöchentliches Taschengeld"

// Profile is the accrual configuration of one account.
type Profile struct {
	StartDate    core.Date
	PayoutDay    time.Weekday
	WeeklyRate   core.Money
	StartBalance core.Money
}

// ProfileOf extracts the accrual profile of a child account.
func ProfileOf(c core.Child) Profile {
	return Profile{
		StartDate:    c.StartDate,
		PayoutDay:    c.PayoutDay,
		WeeklyRate:   c.WeeklyRate,
		StartBalance: c.StartBalance,
	}
}

// DaysToFirstPayout returns the number of days from the start date to the
// first payout. It is always between 1 and 7.
func DaysToFirstPayout(p Profile) int {
	days := (int(p.PayoutDay) - int(p.StartDate.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return days
}

// WeeksElapsed returns how many payouts have happened up to and including today.
// It is never negative.
func WeeksElapsed(p Profile, today core.Date) int {
	first := DaysToFirstPayout(p)
	elapsed := today.DaysSince(p.StartDate)
	if elapsed < first {
		return 0
	}
	return 1 + (elapsed-first)/7
}

// Balance returns start balance plus all weekly credits up to today plus the
// sum of the ledger. The result is not clamped and may be negative.
func Balance(p Profile, ledger []core.Transaction, today core.Date) core.Money {
	earned := p.StartBalance.Add(p.WeeklyRate.Times(int64(WeeksElapsed(p, today))))
	return earned.Add(core.SumAmounts(ledger))
}

// RateEntries yields one entry per payout up to and including today, oldest
// first, with ids rate-1, rate-2, ... The sequence can be ranged over any
// number of times and always yields the same entries.
func RateEntries(p Profile, today core.Date) iter.Seq[core.RateEntry] {
	return func(yield func(core.RateEntry) bool) {
		cursor := p.StartDate.AddDays(DaysToFirstPayout(p))
		for n := 1; !cursor.After(today); n++ {
			e := core.RateEntry{
				ID:     "rate-" + strconv.Itoa(n),
				Amount: p.WeeklyRate,
				Note:   RateNote,
				Date:   cursor,
			}
			if !yield(e) {
				return
			}
			cursor = cursor.AddDays(7)
		}
	}
}

// CollectRateEntries returns the entries of RateEntries as a slice.
func CollectRateEntries(p Profile, today core.Date) []core.RateEntry {
	return slices.Collect(RateEntries(p, today))
}

// BalanceAt returns the balance at instant at: weekly credits up to the
// calendar day of at in loc, and only ledger entries created at or before at.
func BalanceAt(p Profile, ledger []core.Transaction, at time.Time, loc *time.Location) core.Money {
	upTo := make([]core.Transaction, 0, len(ledger))
	for _, t := range ledger {
		if !t.CreatedAt.After(at) {
			upTo = append(upTo, t)
		}
	}
	return Balance(p, upTo, core.Today(at, loc))
}
