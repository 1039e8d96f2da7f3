package memory

import (
	"context"
	"errors"
	"testing"

	"taschengeld/internal/core"
	"taschengeld/internal/sheets"
)

func TestWriter(t *testing.T) {
	w := New()
	ctx := context.Background()

	ref, err := w.AppendRow(ctx, sheets.LedgerRow{TransactionID: 1, Child: "Mia", Amount: core.Money{Cents: 100}})
	if err != nil || ref != "mem:1" {
		t.Fatalf("append: ref=%q err=%v", ref, err)
	}

	boom := errors.New("quota exceeded")
	w.FailWith(boom)
	if _, err := w.AppendRow(ctx, sheets.LedgerRow{TransactionID: 2}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	w.FailWith(nil)

	if _, err := w.AppendRow(ctx, sheets.LedgerRow{TransactionID: 3}); err != nil {
		t.Fatalf("append after reset: %v", err)
	}
	rows := w.Rows()
	if len(rows) != 2 || rows[0].TransactionID != 1 || rows[1].TransactionID != 3 {
		t.Fatalf("unexpected rows %+v", rows)
	}
}
