package http

import (
	"encoding/json"
	"net/http"
	"time"

	"taschengeld/internal/core"
	"taschengeld/internal/log"
)

type apiChild struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	WeeklyRateCents  int64  `json:"weekly_rate_cents"`
	StartDate        string `json:"start_date"`
	StartBalanceCent int64  `json:"start_balance_cents"`
	PayoutDay        int    `json:"payout_day"`
	BalanceCents     int64  `json:"balance_cents"`
	Balance          string `json:"balance"`
}

type apiHistoryEntry struct {
	ID          string    `json:"id"`
	AmountCents int64     `json:"amount_cents"`
	Note        string    `json:"note"`
	At          time.Time `json:"at"`
	Virtual     bool      `json:"virtual"`
}

type apiAccount struct {
	apiChild
	Today   string            `json:"today"`
	History []apiHistoryEntry `json:"history"`
}

func toAPIChild(c core.Child, balance core.Money) apiChild {
	return apiChild{
		ID:               c.ID,
		Name:             c.Name,
		WeeklyRateCents:  c.WeeklyRate.Cents,
		StartDate:        c.StartDate.String(),
		StartBalanceCent: c.StartBalance.Cents,
		PayoutDay:        int(c.PayoutDay),
		BalanceCents:     balance.Cents,
		Balance:          balance.Decimal().StringFixed(2),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleAPIChildren(w http.ResponseWriter, r *http.Request) {
	list, err := s.ledger.Overview(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Overview failed", log.FieldError, err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]apiChild, 0, len(list))
	for _, cs := range list {
		out = append(out, toAPIChild(cs.Child, cs.Balance))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPIChild(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "child not found")
		return
	}
	acc, err := s.ledger.Account(r.Context(), id)
	if err != nil {
		_, status, known := userMessage(err)
		if !known {
			s.logger.ErrorContext(r.Context(), "Account lookup failed", log.FieldChildID, id, log.FieldError, err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSONError(w, status, "child not found")
		return
	}

	out := apiAccount{
		apiChild: toAPIChild(acc.Child, acc.Balance),
		Today:    acc.Today.String(),
		History:  make([]apiHistoryEntry, 0, len(acc.History)),
	}
	for _, h := range acc.History {
		out.History = append(out.History, apiHistoryEntry{
			ID:          h.ID,
			AmountCents: h.Amount.Cents,
			Note:        h.Note,
			At:          h.At,
			Virtual:     h.Virtual,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
