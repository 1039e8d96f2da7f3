// Package http provides the web interface: pages, HTMX fragments and a small
// JSON view of the accounts.
//
// This file turns request bodies into validated domain input. Bodies may be
// form-encoded (browsers, HTMX) or JSON (scripts).
package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"taschengeld/internal/core"
)

const maxBodyBytes = 64 << 10

// RequestBodyParser reads the body once and serves values from either a JSON
// object or form data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse decodes the body. It is safe to call more than once.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}
	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns the sanitized value for key, or "" when absent.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

const (
	intentDeposit  = "deposit"
	intentWithdraw = "withdraw"
)

// TransactionInput is a parsed booking request.
type TransactionInput struct {
	Intent string
	Amount core.Money
	Note   string
}

// ParseTransaction reads intent, amount and note. An unknown intent is
// reported before the amount is looked at.
func ParseTransaction(p *RequestBodyParser) (TransactionInput, error) {
	in := TransactionInput{
		Intent: p.Get("intent"),
		Note:   p.Get("note"),
	}
	if in.Intent != intentDeposit && in.Intent != intentWithdraw {
		return in, errUnknownIntent
	}
	cents, err := core.ParseDecimalToCents(p.Get("amount"))
	if err != nil {
		return in, err
	}
	in.Amount = core.Money{Cents: cents}
	return in, nil
}

// ChildForm holds the raw text of the profile form so it can be shown again
// after a validation error.
type ChildForm struct {
	ID           int64
	Name         string
	WeeklyRate   string
	StartDate    string
	StartBalance string
	PayoutDay    int
}

// ChildFormFrom fills the form with an existing profile.
func ChildFormFrom(c core.Child) ChildForm {
	return ChildForm{
		ID:           c.ID,
		Name:         c.Name,
		WeeklyRate:   decimalText(c.WeeklyRate),
		StartDate:    c.StartDate.String(),
		StartBalance: decimalText(c.StartBalance),
		PayoutDay:    int(c.PayoutDay),
	}
}

func decimalText(m core.Money) string {
	return strings.Replace(m.Decimal().StringFixed(2), ".", ",", 1)
}

// ParseChildForm reads the profile form. Empty amounts mean zero, an empty
// start date means today and an empty payout day means Monday.
func ParseChildForm(p *RequestBodyParser, today core.Date) (ChildForm, core.Child, error) {
	form := ChildForm{
		Name:         p.Get("name"),
		WeeklyRate:   p.Get("weekly_rate"),
		StartDate:    p.Get("start_date"),
		StartBalance: p.Get("start_balance"),
		PayoutDay:    int(core.DefaultPayoutDay),
	}
	child := core.Child{Name: form.Name, StartDate: today, PayoutDay: core.DefaultPayoutDay}

	if v := p.Get("payout_day"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || !core.ValidPayoutDay(time.Weekday(d)) {
			return form, child, core.ErrInvalidPayoutDay
		}
		form.PayoutDay = d
		child.PayoutDay = time.Weekday(d)
	}

	rate, err := parseNonNegative(form.WeeklyRate, core.ErrNegativeWeeklyRate)
	if err != nil {
		return form, child, err
	}
	child.WeeklyRate = core.Money{Cents: rate}

	balance, err := parseNonNegative(form.StartBalance, core.ErrNegativeStartBalance)
	if err != nil {
		return form, child, err
	}
	child.StartBalance = core.Money{Cents: balance}

	if form.StartDate != "" {
		d, err := core.ParseDate(form.StartDate)
		if err != nil {
			return form, child, err
		}
		child.StartDate = d
	} else {
		form.StartDate = today.String()
	}

	return form, child, child.Validate()
}

// parseNonNegative accepts empty or decimal text. A leading minus reports neg.
func parseNonNegative(s string, neg error) (int64, error) {
	if strings.HasPrefix(strings.TrimSpace(s), "-") {
		return 0, neg
	}
	cents, err := core.ParseOptionalCents(s)
	if err != nil {
		return 0, err
	}
	return cents, nil
}
