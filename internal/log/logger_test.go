package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSONLoggerCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentLedger, Output: &buf})
	l.Info("hello", FieldChildID, int64(3))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected json output, got %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentLedger {
		t.Fatalf("expected component %q, got %v", ComponentLedger, rec[FieldComponent])
	}
	if rec[FieldChildID] != float64(3) {
		t.Fatalf("expected child_id 3, got %v", rec[FieldChildID])
	}
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "text", Output: &buf}).WithComponent(ComponentWorker)
	l.Info("x")
	out := buf.String()
	if !strings.Contains(out, "component=worker") || strings.Contains(out, "component=app") {
		t.Fatalf("unexpected output: %q", out)
	}
	if l.Component() != ComponentWorker {
		t.Fatalf("expected worker component, got %s", l.Component())
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatalf("expected fallback logger")
	}
	l := New(DefaultConfig())
	if got := FromContext(WithContext(context.Background(), l)); got != l {
		t.Fatalf("expected stored logger")
	}
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))
	r := httptest.NewRequest("POST", "/kinder/1", nil)

	sl.LogHTTPEnd(context.Background(), r, 422, 5, "1.2.3.4")
	if !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Fatalf("expected warn level for 422, got %q", buf.String())
	}

	buf.Reset()
	sl.LogError(context.Background(), "boom", errors.New("disk full"), OpDeposit, nil)
	if !strings.Contains(buf.String(), "disk full") || !strings.Contains(buf.String(), OpDeposit) {
		t.Fatalf("unexpected error log: %q", buf.String())
	}
}
