package http

import (
	"errors"
	"net/http"

	"taschengeld/internal/auth"
	"taschengeld/internal/log"
)

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	data := s.page(r, "Eltern-Login")
	data.Next = r.URL.Query().Get("next")
	s.render(w, r, http.StatusOK, "login.html", data)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError(msgInvalidForm).Write(w)
		return
	}
	next := r.PostForm.Get("next")

	if err := s.sessions.Login(w, r.PostForm.Get("password")); err != nil {
		if !errors.Is(err, auth.ErrWrongPassword) {
			s.logger.ErrorContext(r.Context(), "Login failed", log.FieldError, err)
			http.Error(w, "Anmeldung fehlgeschlagen", http.StatusInternalServerError)
			return
		}
		s.logger.WarnContext(r.Context(), "Wrong parent password",
			log.FieldComponent, log.ComponentAuth,
			log.FieldClientIP, s.securityDetector.ExtractClientIP(r))
		data := s.page(r, "Eltern-Login")
		data.Next = next
		data.Error = msgWrongPassword
		s.render(w, r, http.StatusUnauthorized, "login.html", data)
		return
	}

	if !auth.SafeRedirect(next) {
		next = "/"
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
