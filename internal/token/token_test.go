package token

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codelab/workbench/internal/config"
)

func findCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	return nil
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      config.TokenMode
		want    Mode
		wantErr bool
	}{
		{config.TokenModeNone, ModeNone, false},
		{"", ModeNone, false},
		{config.TokenModeOptional, ModeOptional, false},
		{config.TokenModeMandatory, ModeMandatory, false},
		{"bogus", ModeNone, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRedirect_StripsTokenParameter(t *testing.T) {
	m := NewManager(ModeMandatory, "configured-value")

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/?folder=x&"+QueryKey+"=secret", nil)

	if !m.Redirect(rec, r) {
		t.Fatal("expected redirect to be written")
	}
	if rec.Code != http.StatusFound {
		t.Errorf("expected 302, got %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if loc != "/?folder=x" {
		t.Errorf("expected token-free location, got %q", loc)
	}

	c := findCookie(t, rec)
	if c == nil {
		t.Fatal("expected token cookie to be set")
	}
	if c.Value != "secret" {
		t.Errorf("cookie carries %q, expected the query token", c.Value)
	}
	if c.MaxAge != 604800 {
		t.Errorf("expected one-week max-age, got %d", c.MaxAge)
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("expected SameSite=Lax, got %v", c.SameSite)
	}
}

func TestRedirect_TokenOnlyQuery(t *testing.T) {
	m := NewManager(ModeOptional, "v")

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/?"+QueryKey+"=abc", nil)

	if !m.Redirect(rec, r) {
		t.Fatal("expected redirect to be written")
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("expected bare path, got %q", loc)
	}
}

func TestRedirect_NoToken(t *testing.T) {
	m := NewManager(ModeMandatory, "v")

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/?folder=x", nil)

	if m.Redirect(rec, r) {
		t.Fatal("expected no redirect without a token parameter")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("expected no cookies")
	}
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name       string
		mode       Mode
		wantCookie bool
	}{
		{"none mode never sets cookies", ModeNone, false},
		{"optional mode refreshes", ModeOptional, true},
		{"mandatory mode refreshes", ModeMandatory, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.mode, "current")
			rec := httptest.NewRecorder()
			m.Refresh(rec)

			c := findCookie(t, rec)
			if tt.wantCookie {
				if c == nil {
					t.Fatal("expected refreshed cookie")
				}
				if c.Value != "current" {
					t.Errorf("expected configured value, got %q", c.Value)
				}
			} else if c != nil {
				t.Error("expected no cookie")
			}
		})
	}
}
