package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/codelab/workbench/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"workbench.html": `<html><head><meta data-settings="{{WORKBENCH_WEB_CONFIGURATION}}" data-session="{{WORKBENCH_AUTH_SESSION}}"><script>boot();</script></head></html>`,
		"callback.html":  `<html><body><script>done();</script></body></html>`,
		"favicon.ico":    "icon-bytes",
		"manifest.json":  `{"name":"workbench"}`,
		"a.txt":          "alpha",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Workbench.AppRoot = dir
	cfg.Token.Mode = config.TokenModeOptional
	cfg.Token.Value = "secret"
	cfg.Gallery.ResourceURLTemplate = "https://cdn.gallery.example.com/extensions/{path}"
	return cfg
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	srv, err := New(testConfig(t), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv.Handler()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", target, nil)
	r.Host = "localhost:9888"
	h.ServeHTTP(rec, r)
	return rec
}

func TestRouter_Root(t *testing.T) {
	h := newTestHandler(t)

	rec := get(t, h, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected a CSP header on the root page")
	}
	if !strings.Contains(rec.Body.String(), "remoteAuthority") {
		t.Error("expected the embedded configuration payload")
	}
}

func TestRouter_TokenRedirect(t *testing.T) {
	h := newTestHandler(t)

	rec := get(t, h, "/?tkn=abc")
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if strings.Contains(rec.Header().Get("Location"), "tkn=") {
		t.Error("location must not carry the token parameter")
	}
}

func TestRouter_FixedAssets(t *testing.T) {
	h := newTestHandler(t)

	rec := get(t, h, "/favicon.ico")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "icon-bytes" {
		t.Errorf("unexpected asset body %q", rec.Body.String())
	}

	rec = get(t, h, "/manifest.json")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for manifest, got %d", rec.Code)
	}

	// Assets not present in the app root are plain 404s.
	rec = get(t, h, "/code-192.png")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing asset, got %d", rec.Code)
	}
}

func TestRouter_Static(t *testing.T) {
	h := newTestHandler(t)

	rec := get(t, h, "/static/a.txt")
	if rec.Code != http.StatusOK || rec.Body.String() != "alpha" {
		t.Fatalf("expected 200 'alpha', got %d %q", rec.Code, rec.Body.String())
	}

	etag := rec.Header().Get("Etag")
	rec2 := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/static/a.txt", nil)
	r.Host = "localhost:9888"
	r.Header.Set("If-None-Match", etag)
	h.ServeHTTP(rec2, r)
	if rec2.Code != http.StatusNotModified {
		t.Errorf("expected 304 on revalidation, got %d", rec2.Code)
	}
}

func TestRouter_StaticTraversal(t *testing.T) {
	h := newTestHandler(t)

	rec := get(t, h, "/static/../../etc/passwd")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for traversal, got %d", rec.Code)
	}
	if rec.Body.String() != "Bad request" {
		t.Errorf("expected plain 'Bad request' body, got %q", rec.Body.String())
	}
}

func TestRouter_Callback(t *testing.T) {
	h := newTestHandler(t)

	rec := get(t, h, "/callback")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "default-src 'none'") {
		t.Error("expected the narrow callback policy")
	}
}

func TestRouter_GalleryForbidden(t *testing.T) {
	h := newTestHandler(t)

	rec := get(t, h, "/web-extension-resource/evil.attacker.net/x")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if rec.Body.String() != "Request Forbidden" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestRouter_NotFound(t *testing.T) {
	h := newTestHandler(t)

	for _, target := range []string{"/nope", "/api/v1/things", "/static"} {
		rec := get(t, h, target)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s: expected 404, got %d", target, rec.Code)
		}
		if rec.Body.String() != "Not found" {
			t.Errorf("GET %s: expected plain 'Not found' body, got %q", target, rec.Body.String())
		}
	}
}

func TestRouter_MethodAgnosticDispatch(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/callback", nil)
	r.Host = "localhost:9888"
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Errorf("expected path-only dispatch to serve POST /callback, got %d", rec.Code)
	}
}

func TestRouter_PanicRecovery(t *testing.T) {
	rt := &Router{logger: zap.NewNop()}
	m := httprouter.New()
	m.GET("/boom", rt.route("boom", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
		panic("kaboom")
	}))
	rt.matcher = m

	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest("GET", "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if rec.Body.String() != "Internal Server Error" {
		t.Errorf("expected generic body, got %q", rec.Body.String())
	}
}

func TestRouter_UnexpectedErrorMasked(t *testing.T) {
	rt := &Router{logger: zap.NewNop()}
	m := httprouter.New()
	m.GET("/fail", rt.route("fail", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
		return os.ErrPermission
	}))
	rt.matcher = m

	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest("GET", "/fail", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "permission") {
		t.Error("internal error detail leaked to the client")
	}
}
