package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"taschengeld/internal/core"
	"taschengeld/internal/sheets"

	goption "google.golang.org/api/option"
)

type fakeSheets struct {
	mu       sync.Mutex
	appended [][]any
	header   [][]any
	queries  []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, r.URL.RawQuery)

	var body struct {
		Values [][]any `json:"values"`
	}
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.appended = append(f.appended, body.Values...)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "Taschengeld!A2:F2"},
		})
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{"values": f.header})
	case r.Method == http.MethodPut:
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.header = body.Values
		_ = json.NewEncoder(w).Encode(map[string]any{})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{
		SpreadsheetID: "sheet-id",
		Location:      time.FixedZone("CET", 3600),
		Options: []goption.ClientOption{
			goption.WithEndpoint(srv.URL + "/"),
			goption.WithoutAuthentication(),
			goption.WithHTTPClient(srv.Client()),
		},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, fake
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}

	_, err = New(context.Background(), Config{SpreadsheetID: "x", CredentialsFile: "/does/not/exist.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected file error, got %v", err)
	}
}

func TestAppendRow(t *testing.T) {
	c, fake := newTestClient(t)

	ref, err := c.AppendRow(context.Background(), sheets.LedgerRow{
		TransactionID: 42,
		At:            time.Date(2024, 1, 8, 11, 30, 0, 0, time.UTC),
		Child:         "Mia",
		Amount:        core.Money{Cents: -800},
		Note:          "Eis",
		BalanceAfter:  core.Money{Cents: 1250},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "Taschengeld!A2:F2" {
		t.Fatalf("ref = %q", ref)
	}

	if len(fake.appended) != 1 {
		t.Fatalf("expected one row, got %v", fake.appended)
	}
	row := fake.appended[0]
	want := []any{"2024-01-08 12:30", "Mia", -8.0, "Eis", 12.5, 42.0}
	if len(row) != len(want) {
		t.Fatalf("row = %v", row)
	}
	for i := range want {
		if row[i] != want[i] {
			t.Fatalf("column %d = %v (%T), want %v", i, row[i], row[i], want[i])
		}
	}
	if !strings.Contains(fake.queries[0], "valueInputOption=USER_ENTERED") {
		t.Fatalf("unexpected query %q", fake.queries[0])
	}
}

func TestEnsureHeader(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	if err := c.EnsureHeader(ctx); err != nil {
		t.Fatalf("ensure header: %v", err)
	}
	if len(fake.header) != 1 || fake.header[0][0] != "Datum" {
		t.Fatalf("header not written: %v", fake.header)
	}

	fake.header = [][]any{{"Eigene Spalte"}}
	if err := c.EnsureHeader(ctx); err != nil {
		t.Fatalf("ensure header: %v", err)
	}
	if fake.header[0][0] != "Eigene Spalte" {
		t.Fatal("existing header must not be overwritten")
	}
}
