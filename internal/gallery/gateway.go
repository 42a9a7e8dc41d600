// Package gallery proxies extension-resource fetches to the configured
// gallery upstream, bounded by a parent-domain trust check.
package gallery

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/codelab/workbench/internal/errors"
)

// Prefix is the request path prefix the gateway is mounted under.
const Prefix = "/web-extension-resource/"

// requestHeaders are forwarded from the client to the upstream. Lookup is
// case-insensitive through http.Header's canonical-key semantics.
var requestHeaders = []string{
	"X-Client-Name",
	"X-Client-Version",
	"X-Machine-Id",
	"X-Client-Commit",
}

// responseHeaders are relayed from the upstream back to the client.
var responseHeaders = []string{
	"Cache-Control",
	"Content-Type",
}

// URLTemplate describes the trusted upstream for proxied resources.
// Immutable for the process lifetime.
type URLTemplate struct {
	Scheme    string
	Authority string
	Path      string
}

// ParseTemplate parses a resource URL template from product configuration.
// An empty input returns (nil, nil): the gateway is simply disabled.
func ParseTemplate(raw string) (*URLTemplate, error) {
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing resource URL template: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("resource URL template %q missing scheme or authority", raw)
	}
	return &URLTemplate{
		Scheme:    u.Scheme,
		Authority: u.Host,
		Path:      u.Path,
	}, nil
}

// parentDomain returns everything after the first dot of an authority. The
// trust check compares these suffixes, which is weaker than a registrable
// domain comparison; kept for compatibility with the configured gallery shape.
func parentDomain(authority string) string {
	if i := strings.Index(authority, "."); i >= 0 {
		return authority[i+1:]
	}
	return ""
}

// Gateway relays resource fetches to hosts under the template's parent domain.
type Gateway struct {
	tmpl   *URLTemplate
	client *http.Client
	logger *zap.Logger
}

// New creates a Gateway. A nil template leaves it unconfigured; a nil client
// falls back to http.DefaultClient's transport behavior.
func New(tmpl *URLTemplate, client *http.Client, logger *zap.Logger) *Gateway {
	if client == nil {
		client = &http.Client{}
	}
	return &Gateway{
		tmpl:   tmpl,
		client: client,
		logger: logger,
	}
}

// Configured reports whether a resource URL template was supplied.
func (g *Gateway) Configured() bool {
	return g.tmpl != nil
}

// RewriteTemplate returns the configured template re-addressed at this
// server's own gateway path, so clients fetch resources through the trust
// check instead of reaching the upstream directly.
func (g *Gateway) RewriteTemplate(host string) string {
	if g.tmpl == nil {
		return ""
	}
	return "http://" + host + Prefix + g.tmpl.Authority + g.tmpl.Path
}

// Proxy forwards one resource fetch. The first path segment after the mount
// prefix names the candidate authority, the remainder becomes the upstream
// path; the template supplies the scheme.
func (g *Gateway) Proxy(w http.ResponseWriter, r *http.Request) error {
	if g.tmpl == nil {
		return errors.New(http.StatusInternalServerError, "No extension gallery service configured.")
	}

	rest := strings.TrimPrefix(r.URL.Path, Prefix)
	authority, upstreamPath, _ := strings.Cut(rest, "/")

	if parentDomain(authority) != parentDomain(g.tmpl.Authority) {
		return errors.ErrForbidden
	}

	upstream := url.URL{
		Scheme: g.tmpl.Scheme,
		Host:   authority,
		Path:   "/" + upstreamPath,
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstream.String(), nil)
	if err != nil {
		return errors.Wrap(err, http.StatusInternalServerError, "Internal Server Error")
	}
	for _, name := range requestHeaders {
		if v := r.Header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return errors.Wrap(err, http.StatusInternalServerError, "Internal Server Error")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Pass the upstream status through with its body text when readable.
		msg := fmt.Sprintf("Request failed with status %d", resp.StatusCode)
		if body, readErr := io.ReadAll(resp.Body); readErr == nil {
			msg = string(body)
		}
		g.logger.Warn("gallery upstream returned non-200",
			zap.String("upstream", upstream.String()),
			zap.Int("status", resp.StatusCode),
		)
		w.WriteHeader(resp.StatusCode)
		io.WriteString(w, msg)
		return nil
	}

	// Full buffering is an accepted tradeoff for this leg given expected
	// resource sizes.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, http.StatusInternalServerError, "Internal Server Error")
	}
	for _, name := range responseHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
	return nil
}
