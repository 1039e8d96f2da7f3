// Package auth implements the shared-password parent login and its session cookie.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	CookieName = "taschengeld_session"

	issuer        = "taschengeld"
	subjectParent = "parent"
	loginPath     = "/login"
)

var (
	ErrWrongPassword  = errors.New("wrong password")
	ErrInvalidSession = errors.New("invalid session")
)

type Config struct {
	Password string
	Secret   []byte
	TTL      time.Duration
	// Secure sets the Secure attribute on the cookie.
	Secure bool
	Now    func() time.Time
}

// Sessions issues and verifies HS256-signed session tokens kept in a cookie.
type Sessions struct {
	password [sha256.Size]byte
	secret   []byte
	ttl      time.Duration
	secure   bool
	now      func() time.Time
}

func NewSessions(cfg Config) *Sessions {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Sessions{
		password: sha256.Sum256([]byte(cfg.Password)),
		secret:   cfg.Secret,
		ttl:      cfg.TTL,
		secure:   cfg.Secure,
		now:      cfg.Now,
	}
}

// CheckPassword compares in constant time. Both sides are hashed first so the
// comparison does not leak the password length.
func (s *Sessions) CheckPassword(password string) error {
	got := sha256.Sum256([]byte(password))
	if subtle.ConstantTimeCompare(got[:], s.password[:]) != 1 {
		return ErrWrongPassword
	}
	return nil
}

// Issue returns a signed token and its expiry.
func (s *Sessions) Issue() (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subjectParent,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, issuer, subject and expiry.
func (s *Sessions) Verify(token string) error {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(subjectParent),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return nil
}

// Login checks the password and on success sets the session cookie.
func (s *Sessions) Login(w http.ResponseWriter, password string) error {
	if err := s.CheckPassword(password); err != nil {
		return err
	}
	token, exp, err := s.Issue()
	if err != nil {
		return err
	}
	http.SetCookie(w, s.cookie(token, exp))
	return nil
}

// Logout clears the session cookie.
func (s *Sessions) Logout(w http.ResponseWriter) {
	c := s.cookie("", time.Unix(0, 0))
	c.MaxAge = -1
	http.SetCookie(w, c)
}

func (s *Sessions) cookie(value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// IsParent reports whether r carries a valid session.
func (s *Sessions) IsParent(r *http.Request) bool {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return false
	}
	return s.Verify(c.Value) == nil
}

// RequireParent lets only logged-in parents through. Browsers are sent to
// the login page; HTMX requests get an HX-Redirect instead.
func (s *Sessions) RequireParent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.IsParent(r) {
			next.ServeHTTP(w, r)
			return
		}
		target := LoginURL(r.URL.Path)
		if r.Header.Get("HX-Request") == "true" {
			w.Header().Set("HX-Redirect", target)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}

// LoginURL builds the login link that returns to next afterwards.
func LoginURL(next string) string {
	if !SafeRedirect(next) || next == "/" {
		return loginPath
	}
	return loginPath + "?next=" + url.QueryEscape(next)
}

// SafeRedirect reports whether target is a local absolute path.
func SafeRedirect(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") && !strings.Contains(target, `\`)
}
