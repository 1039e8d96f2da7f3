package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"taschengeld/internal/core"
	"taschengeld/internal/log"
	"taschengeld/internal/services"
)

// pageData is shared by all full-page templates.
type pageData struct {
	Title    string
	Parent   bool
	Error    string
	Next     string
	Children []core.ChildSummary
	Account  services.Account
	Form     ChildForm
	Weekdays []weekdayOption
}

type weekdayOption struct {
	Value int
	Name  string
}

func (s *Server) page(r *http.Request, title string) pageData {
	return pageData{Title: title, Parent: s.sessions.IsParent(r)}
}

// handleHealth performs a basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady checks the templates and the store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.store == nil:
		checks["storage"] = "not_configured"
	default:
		if err := s.store.Ping(ctx); err != nil {
			checks["storage"] = fmt.Sprintf("failed: %v", err)
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients()}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	suspicious, blocked := s.securityDetector.Counts()

	w.WriteHeader(http.StatusOK)
	counter := func(name, help string, v any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %v\n\n", name, help, name, name, v)
	}
	gauge := func(name, help string, v any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %v\n\n", name, help, name, name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	gauge("http_request_duration_avg_ms", "Average response time in milliseconds", traceMetrics.AverageResponseTime.Milliseconds())
	counter("deposits_total", "Deposits recorded", atomic.LoadInt64(&s.appMetrics.deposits))
	counter("withdrawals_total", "Withdrawals recorded", atomic.LoadInt64(&s.appMetrics.withdrawals))
	counter("transactions_rejected_total", "Bookings rejected by validation or insufficient funds", atomic.LoadInt64(&s.appMetrics.rejected))
	if s.cache != nil {
		hits, misses := s.cache.Stats()
		counter("ledger_cache_hits_total", "Ledger cache hits", hits)
		counter("ledger_cache_misses_total", "Ledger cache misses", misses)
		gauge("ledger_cache_entries", "Ledgers currently cached", s.cache.Size())
	}
	counter("rate_limit_hits_total", "Requests rejected by the rate limiter", rateLimitMetrics.TotalHits)
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	counter("suspicious_requests_total", "Suspicious requests detected", suspicious)
	counter("blocked_requests_total", "Requests blocked by method", blocked)
	gauge("uptime_seconds", "Application uptime in seconds", int64(time.Since(s.appMetrics.uptime).Seconds()))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	children, err := s.ledger.Overview(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Overview failed", log.FieldError, err)
		http.Error(w, "Fehler beim Laden der Übersicht", http.StatusInternalServerError)
		return
	}
	data := s.page(r, "")
	data.Children = children
	s.render(w, r, http.StatusOK, "index.html", data)
}

func (s *Server) handleChild(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, msgChildNotFound, http.StatusNotFound)
		return
	}
	acc, err := s.ledger.Account(r.Context(), id)
	if err != nil {
		if msg, status, known := userMessage(err); known {
			http.Error(w, msg, status)
			return
		}
		s.logger.ErrorContext(r.Context(), "Account lookup failed", log.FieldChildID, id, log.FieldError, err)
		http.Error(w, "Fehler beim Laden", http.StatusInternalServerError)
		return
	}
	data := s.page(r, acc.Child.Name)
	data.Account = acc
	s.render(w, r, http.StatusOK, "child.html", data)
}

// handleTransaction records a deposit or withdrawal. HTMX requests get the
// refreshed account fragment or an error for the form; plain form posts are
// redirected back to the child page.
func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.transactionError(w, r, 0, http.StatusNotFound, msgChildNotFound)
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.transactionError(w, r, id, http.StatusBadRequest, msgInvalidForm)
		return
	}

	in, err := ParseTransaction(p)
	if err == nil {
		if in.Intent == intentWithdraw {
			_, err = s.ledger.Withdraw(r.Context(), id, in.Amount, in.Note)
		} else {
			_, err = s.ledger.Deposit(r.Context(), id, in.Amount, in.Note)
		}
	}
	if err != nil {
		msg, status, known := userMessage(err)
		if !known {
			s.logger.ErrorContext(r.Context(), "Failed to record transaction",
				log.FieldChildID, id,
				log.FieldAmountCents, in.Amount.Cents,
				log.FieldError, err)
		} else {
			atomic.AddInt64(&s.appMetrics.rejected, 1)
		}
		s.transactionError(w, r, id, status, msg)
		return
	}
	s.recordTransaction(in.Intent)

	if !isHTMX(r) {
		http.Redirect(w, r, "/kinder/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
		return
	}

	acc, err := s.ledger.Account(r.Context(), id)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Account reload failed", log.FieldChildID, id, log.FieldError, err)
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusOK)
		return
	}

	msg := "Eingezahlt: " + in.Amount.Format()
	if in.Intent == intentWithdraw {
		msg = "Ausgezahlt: " + in.Amount.Format()
	}
	NewHTMXResponse().
		TriggerBalanceChanged(id, acc.Balance.Cents).
		TriggerSuccessNotification(msg).
		ApplyHeaders(w)
	s.render(w, r, http.StatusOK, "account.html", pageData{Parent: true, Account: acc})
}

func (s *Server) transactionError(w http.ResponseWriter, r *http.Request, id int64, status int, msg string) {
	if isHTMX(r) {
		FormError(status, msg).Write(w)
		return
	}
	if status == http.StatusNotFound || id == 0 {
		http.Error(w, msg, status)
		return
	}
	acc, err := s.ledger.Account(r.Context(), id)
	if err != nil {
		http.Error(w, msg, status)
		return
	}
	data := s.page(r, acc.Child.Name)
	data.Account = acc
	data.Error = msg
	s.render(w, r, status, "child.html", data)
}
