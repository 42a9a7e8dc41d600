// Package token manages the connection-token cookie lifecycle: converting a
// one-shot query parameter into a cookie and refreshing the cookie's expiry
// on root page renders.
package token

import (
	"fmt"
	"net/http"

	"github.com/codelab/workbench/internal/config"
)

const (
	// CookieName is the reserved connection-token cookie.
	CookieName = "workbench-connection-token"
	// QueryKey is the reserved query parameter a token may arrive under.
	QueryKey = "tkn"

	// cookieMaxAge is one week in seconds.
	cookieMaxAge = 7 * 24 * 60 * 60
)

// Mode governs whether the token cookie is (re)issued on root requests.
type Mode int

const (
	ModeNone Mode = iota
	ModeOptional
	ModeMandatory
)

// ParseMode maps a configuration token mode onto its runtime value.
func ParseMode(m config.TokenMode) (Mode, error) {
	switch m {
	case config.TokenModeNone, "":
		return ModeNone, nil
	case config.TokenModeOptional:
		return ModeOptional, nil
	case config.TokenModeMandatory:
		return ModeMandatory, nil
	}
	return ModeNone, fmt.Errorf("unknown token mode %q", m)
}

// Manager holds the process-lifetime token state. Immutable after creation.
type Manager struct {
	mode  Mode
	value string
}

// NewManager creates a Manager for the given mode and token value.
func NewManager(mode Mode, value string) *Manager {
	return &Manager{mode: mode, value: value}
}

// Mode returns the configured token mode.
func (m *Manager) Mode() Mode {
	return m.mode
}

// Redirect converts a token-bearing query parameter into a cookie and a 302
// back to the same path with the parameter stripped. It reports whether the
// response has been written; callers must return immediately when it has.
func (m *Manager) Redirect(w http.ResponseWriter, r *http.Request) bool {
	q := r.URL.Query()
	if !q.Has(QueryKey) {
		return false
	}

	value := q.Get(QueryKey)
	q.Del(QueryKey)
	http.SetCookie(w, m.cookie(value))

	location := r.URL.Path
	if enc := q.Encode(); enc != "" {
		location += "?" + enc
	}
	// Written by hand rather than http.Redirect to keep the 302 bodyless.
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusFound)
	return true
}

// Refresh re-issues the configured token cookie, extending its lifetime.
// A NONE-mode manager never sets cookies.
func (m *Manager) Refresh(w http.ResponseWriter) {
	if m.mode == ModeNone {
		return
	}
	http.SetCookie(w, m.cookie(m.value))
}

func (m *Manager) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		SameSite: http.SameSiteLaxMode,
	}
}
