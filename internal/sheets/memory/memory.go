// Package memory is an in-process LedgerWriter for development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"taschengeld/internal/sheets"
)

type Writer struct {
	mu   sync.Mutex
	rows []sheets.LedgerRow
	err  error
}

var _ sheets.LedgerWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{}
}

// AppendRow stores the row and returns a synthetic row reference.
func (w *Writer) AppendRow(_ context.Context, row sheets.LedgerRow) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return "", w.err
	}
	w.rows = append(w.rows, row)
	return fmt.Sprintf("mem:%d", len(w.rows)), nil
}

// FailWith makes every following AppendRow return err until reset with nil.
func (w *Writer) FailWith(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
}

func (w *Writer) Rows() []sheets.LedgerRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.rows)
}
