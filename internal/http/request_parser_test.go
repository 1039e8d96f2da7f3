package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"taschengeld/internal/core"
)

func formParser(t *testing.T, values url.Values) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return p
}

func TestRequestBodyParser(t *testing.T) {
	t.Run("form", func(t *testing.T) {
		p := formParser(t, url.Values{"note": {"  Eis\x00 "}})
		if p.IsJSON() {
			t.Fatal("form body detected as JSON")
		}
		if got := p.Get("note"); got != "Eis" {
			t.Fatalf("Get(note) = %q", got)
		}
		if got := p.Get("missing"); got != "" {
			t.Fatalf("Get(missing) = %q", got)
		}
	})

	t.Run("json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"intent":"deposit","amount":2.5}`))
		req.Header.Set("Content-Type", "application/json")
		p := NewRequestBodyParser(req)
		if err := p.Parse(); err != nil {
			t.Fatalf("parse: %v", err)
		}
		if !p.IsJSON() || p.Get("intent") != "deposit" || p.Get("amount") != "2.5" {
			t.Fatalf("unexpected values intent=%q amount=%q", p.Get("intent"), p.Get("amount"))
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"intent":`))
		p := NewRequestBodyParser(req)
		if err := p.Parse(); err == nil {
			t.Fatal("expected parse error")
		}
		if err := p.Parse(); err == nil {
			t.Fatal("second Parse must return the same error")
		}
	})
}

func TestParseTransaction(t *testing.T) {
	tests := []struct {
		name    string
		form    url.Values
		want    TransactionInput
		wantErr error
	}{
		{"deposit", url.Values{"intent": {"deposit"}, "amount": {"12,50"}, "note": {"Oma"}},
			TransactionInput{Intent: intentDeposit, Amount: core.Money{Cents: 1250}, Note: "Oma"}, nil},
		{"withdraw rounds half up", url.Values{"intent": {"withdraw"}, "amount": {"0.005"}},
			TransactionInput{Intent: intentWithdraw, Amount: core.Money{Cents: 1}}, nil},
		{"zero", url.Values{"intent": {"deposit"}, "amount": {"0"}}, TransactionInput{}, core.ErrInvalidAmount},
		{"negative", url.Values{"intent": {"deposit"}, "amount": {"-3"}}, TransactionInput{}, core.ErrInvalidAmount},
		{"garbage", url.Values{"intent": {"withdraw"}, "amount": {"drei"}}, TransactionInput{}, core.ErrInvalidAmount},
		{"unknown intent wins over bad amount", url.Values{"intent": {"steal"}, "amount": {"x"}}, TransactionInput{}, errUnknownIntent},
		{"missing intent", url.Values{"amount": {"1"}}, TransactionInput{}, errUnknownIntent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTransaction(formParser(t, tt.form))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseChildForm(t *testing.T) {
	today := core.NewDate(2024, 3, 10)

	t.Run("defaults", func(t *testing.T) {
		form, child, err := ParseChildForm(formParser(t, url.Values{"name": {" Mia "}}), today)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if child.Name != "Mia" || child.StartDate != today || child.PayoutDay != time.Monday ||
			child.WeeklyRate.Cents != 0 || child.StartBalance.Cents != 0 {
			t.Fatalf("unexpected child %+v", child)
		}
		if form.StartDate != "2024-03-10" {
			t.Fatalf("form start date = %q", form.StartDate)
		}
	})

	t.Run("all fields", func(t *testing.T) {
		_, child, err := ParseChildForm(formParser(t, url.Values{
			"name":          {"Ben"},
			"weekly_rate":   {"2,50"},
			"start_date":    {"2024-01-05"},
			"start_balance": {"10"},
			"payout_day":    {"6"},
		}), today)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if child.WeeklyRate.Cents != 250 || child.StartBalance.Cents != 1000 ||
			child.StartDate != core.NewDate(2024, 1, 5) || child.PayoutDay != time.Saturday {
			t.Fatalf("unexpected child %+v", child)
		}
	})

	errs := []struct {
		name string
		form url.Values
		want error
	}{
		{"empty name", url.Values{"name": {"  "}}, core.ErrEmptyName},
		{"negative rate", url.Values{"name": {"x"}, "weekly_rate": {"-1"}}, core.ErrNegativeWeeklyRate},
		{"negative balance", url.Values{"name": {"x"}, "start_balance": {"-1"}}, core.ErrNegativeStartBalance},
		{"bad amount", url.Values{"name": {"x"}, "weekly_rate": {"viel"}}, core.ErrInvalidAmount},
		{"bad date", url.Values{"name": {"x"}, "start_date": {"10.03.2024"}}, core.ErrInvalidDate},
		{"rate above limit", url.Values{"name": {"x"}, "weekly_rate": {"1000000,01"}}, core.ErrAmountTooLarge},
		{"start date too early", url.Values{"name": {"x"}, "start_date": {"1600-01-03"}}, core.ErrStartDateOutOfRange},
		{"bad payout day", url.Values{"name": {"x"}, "payout_day": {"7"}}, core.ErrInvalidPayoutDay},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			form, _, err := ParseChildForm(formParser(t, tt.form), today)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if form.Name != sanitizeInput(tt.form.Get("name")) {
				t.Fatalf("form must keep the submitted name, got %q", form.Name)
			}
		})
	}
}

func TestChildFormFrom(t *testing.T) {
	form := ChildFormFrom(core.Child{
		ID:           3,
		Name:         "Mia",
		WeeklyRate:   core.Money{Cents: 250},
		StartDate:    core.NewDate(2024, 1, 1),
		StartBalance: core.Money{Cents: 1000},
		PayoutDay:    time.Friday,
	})
	want := ChildForm{ID: 3, Name: "Mia", WeeklyRate: "2,50", StartDate: "2024-01-01", StartBalance: "10,00", PayoutDay: 5}
	if form != want {
		t.Fatalf("got %+v, want %+v", form, want)
	}
}
