package http

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taschengeld/internal/core"
	"taschengeld/internal/log"
	"taschengeld/internal/services"
	"taschengeld/internal/storage"
	appweb "taschengeld/web"
)

var weekdayNames = [...]string{"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag"}

func weekdayName(d time.Weekday) string {
	if !core.ValidPayoutDay(d) {
		return ""
	}
	return weekdayNames[d]
}

// parseTemplates loads the embedded templates. Timestamps are shown in loc.
func parseTemplates(loc *time.Location) (*template.Template, error) {
	funcs := template.FuncMap{
		"euro":    func(m core.Money) string { return m.Format() },
		"weekday": weekdayName,
		"date":    func(d core.Date) string { return d.In(time.UTC).Format("02.01.2006") },
		// Weekly credits have no time of day worth showing.
		"datetime": func(t time.Time, dateOnly bool) string {
			t = t.In(loc)
			if dateOnly {
				return t.Format("02.01.2006")
			}
			return t.Format("02.01.2006 15:04")
		},
	}
	return template.New("").Funcs(funcs).ParseFS(appweb.TemplatesFS, "templates/*.html")
}

// render executes a template into a buffer first so a failing template never
// leaves a half-written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			log.FieldComponent, log.ComponentTemplate,
			"template", name)
		http.Error(w, "Fehler beim Anzeigen der Seite", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

var errUnknownIntent = errors.New("unknown intent")

const (
	msgInvalidAmount     = "Betrag muss größer als 0 sein"
	msgInsufficientFunds = "Nicht genug Guthaben"
	msgAmountTooLarge    = "Betrag zu hoch (max. 1.000.000 €)"
	msgChildNotFound     = "Kind nicht gefunden"
	msgUnknownIntent     = "Unbekannte Aktion"
	msgWrongPassword     = "Falsches Passwort"
	msgSaveFailed        = "Fehler beim Speichern"
	msgInvalidForm       = "Ungültige Anfrage"
)

// userMessage maps domain errors to the German message and status shown to
// the user. ok is false for unexpected errors.
func userMessage(err error) (msg string, status int, ok bool) {
	switch {
	case errors.Is(err, errUnknownIntent):
		return msgUnknownIntent, http.StatusBadRequest, true
	case errors.Is(err, storage.ErrNotFound):
		return msgChildNotFound, http.StatusNotFound, true
	case errors.Is(err, services.ErrInsufficientFunds):
		return msgInsufficientFunds, http.StatusUnprocessableEntity, true
	case errors.Is(err, core.ErrAmountTooLarge):
		return msgAmountTooLarge, http.StatusUnprocessableEntity, true
	case errors.Is(err, core.ErrInvalidAmount):
		return msgInvalidAmount, http.StatusUnprocessableEntity, true
	case errors.Is(err, core.ErrNoteTooLong):
		return "Notiz ist zu lang (max. 200 Zeichen)", http.StatusUnprocessableEntity, true
	case errors.Is(err, core.ErrEmptyName):
		return "Name darf nicht leer sein", http.StatusUnprocessableEntity, true
	case errors.Is(err, core.ErrNameTooLong):
		return "Name ist zu lang (max. 100 Zeichen)", http.StatusUnprocessableEntity, true
	case errors.Is(err, core.ErrNegativeWeeklyRate):
		return "Wöchentlicher Betrag darf nicht negativ sein", http.StatusUnprocessableEntity, true
	case errors.Is(err, core.ErrNegativeStartBalance):
		return "Startguthaben darf nicht negativ sein", http.StatusUnprocessableEntity, true
	case errors.Is(err, core.ErrStartDateOutOfRange):
		return "Startdatum liegt außerhalb des erlaubten Zeitraums", http.StatusUnprocessableEntity, true
	case errors.Is(err, core.ErrInvalidDate):
		return "Ungültiges Datum", http.StatusUnprocessableEntity, true
	case errors.Is(err, core.ErrInvalidPayoutDay):
		return "Ungültiger Auszahlungstag", http.StatusUnprocessableEntity, true
	}
	return msgSaveFailed, http.StatusInternalServerError, false
}
