package core

import (
	"slices"
	"strconv"
	"time"
)

// ChildSummary is a child together with its current balance.
type ChildSummary struct {
	Child   Child
	Balance Money
}

// HistoryEntry is one row of an account history: either a stored transaction
// or a reconstructed weekly credit.
type HistoryEntry struct {
	ID      string
	Amount  Money
	Note    string
	At      time.Time
	Virtual bool
}

// MergeHistory interleaves stored transactions with weekly credits, newest
// first. Credits are placed at midnight of their payout day in loc. On equal
// timestamps stored transactions come first.
func MergeHistory(txs []Transaction, rates []RateEntry, loc *time.Location) []HistoryEntry {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]HistoryEntry, 0, len(txs)+len(rates))
	for _, t := range txs {
		out = append(out, HistoryEntry{
			ID:     strconv.FormatInt(t.ID, 10),
			Amount: t.Amount,
			Note:   t.Note,
			At:     t.CreatedAt,
		})
	}
	for _, r := range rates {
		out = append(out, HistoryEntry{
			ID:      r.ID,
			Amount:  r.Amount,
			Note:    r.Note,
			At:      r.Date.In(loc),
			Virtual: true,
		})
	}
	slices.SortStableFunc(out, func(a, b HistoryEntry) int {
		return b.At.Compare(a.At)
	})
	return out
}
