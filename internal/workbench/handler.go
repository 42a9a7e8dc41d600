// Package workbench renders the browser client's HTML shell with its embedded
// runtime configuration and derived Content-Security-Policy, plus the fixed
// callback page.
package workbench

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/codelab/workbench/internal/csp"
	"github.com/codelab/workbench/internal/errors"
	"github.com/codelab/workbench/internal/gallery"
	"github.com/codelab/workbench/internal/token"
)

const (
	// Shell variants served from the app root.
	shellBuilt = "workbench.html"
	shellDev   = "workbench-dev.html"
	// Callback page served on /callback.
	callbackShell = "callback.html"

	// Substitution markers reserved inside the shell documents.
	configMarker  = "{{WORKBENCH_WEB_CONFIGURATION}}"
	sessionMarker = "{{WORKBENCH_AUTH_SESSION}}"

	// workerBootstrapHash pins the static worker-bootstrap script shipped
	// with the client bundle; it is not an inline block of the shell, so it
	// never appears in the extracted hashes.
	workerBootstrapHash = "sha256-YIgqxEUsqcd0NTlk1dIbEOdzDU550H23X1QKLsbACG8="

	shellCacheSize = 8
)

// Options carries the construction-time environment for the handler. All
// fields are read-only after New.
type Options struct {
	AppRoot               string
	DevMode               bool
	SmokeTest             bool
	WorkspaceURI          string
	FolderURI             string
	EnableSync            bool
	DisableWorkspaceTrust bool
	AuthToken             string
}

// cachedShell holds one shell template keyed by modification time.
type cachedShell struct {
	modTime int64
	data    string
}

// Handler serves the root bootstrap page and the callback page.
type Handler struct {
	opts    Options
	tokens  *token.Manager
	gateway *gallery.Gateway
	logger  *zap.Logger
	shells  *lru.Cache[string, *cachedShell]
}

// New creates a Handler.
func New(opts Options, tokens *token.Manager, gw *gallery.Gateway, logger *zap.Logger) (*Handler, error) {
	shells, err := lru.New[string, *cachedShell](shellCacheSize)
	if err != nil {
		return nil, err
	}
	return &Handler{
		opts:    opts,
		tokens:  tokens,
		gateway: gw,
		logger:  logger,
		shells:  shells,
	}, nil
}

// shell returns the template text at path, re-reading only when the file's
// modification time has changed.
func (h *Handler) shell(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	mod := fi.ModTime().UnixNano()
	if c, ok := h.shells.Get(path); ok && c.modTime == mod {
		return c.data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	h.shells.Add(path, &cachedShell{modTime: mod, data: string(data)})
	return string(data), nil
}

// ServeRoot renders the workbench shell for one request.
func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) error {
	host := r.Host
	if host == "" {
		return errors.ErrBadRequest
	}

	// A token in the query string becomes a cookie plus a redirect to the
	// token-free URL before any HTML is generated.
	if h.tokens.Redirect(w, r) {
		return nil
	}

	name := shellBuilt
	if h.opts.DevMode {
		name = shellDev
	}
	doc, err := h.shell(filepath.Join(h.opts.AppRoot, name))
	if err != nil {
		if os.IsNotExist(err) {
			return errors.ErrNotFound
		}
		return errors.Wrap(err, http.StatusInternalServerError, "Internal Server Error")
	}

	payload, err := json.Marshal(h.clientConfiguration(host))
	if err != nil {
		return errors.Wrap(err, http.StatusInternalServerError, "Internal Server Error")
	}
	doc = strings.ReplaceAll(doc, configMarker, escapeAttribute(string(payload)))
	doc = strings.ReplaceAll(doc, sessionMarker, h.authSession())

	h.tokens.Refresh(w)
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Content-Security-Policy", h.rootPolicy(doc, host))
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, doc)
	return nil
}

// ServeCallback renders the fixed callback page under a narrower policy:
// scripts limited to self plus the page's own hashes, with none of the
// connect/frame/worker relaxations the root page needs.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) error {
	doc, err := h.shell(filepath.Join(h.opts.AppRoot, callbackShell))
	if err != nil {
		if os.IsNotExist(err) {
			return errors.ErrNotFound
		}
		return errors.Wrap(err, http.StatusInternalServerError, "Internal Server Error")
	}

	scriptSrc := append([]string{"'self'"}, csp.QuoteAll(csp.ExtractHashes(doc))...)
	policy := csp.NewPolicy().
		Add("default-src", "'none'").
		Add("script-src", scriptSrc...).
		Add("style-src", "'self'", "'unsafe-inline'").
		String()

	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Content-Security-Policy", policy)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, doc)
	return nil
}

// clientConfiguration is the payload substituted into the shell's
// configuration marker.
type clientConfiguration struct {
	RemoteAuthority       string              `json:"remoteAuthority"`
	WrapWorkerInIframe    *bool               `json:"_wrapWebWorkerExtHostInIframe,omitempty"`
	DevelopmentOptions    *developmentOptions `json:"developmentOptions,omitempty"`
	SettingsSyncOptions   *settingsSync       `json:"settingsSyncOptions,omitempty"`
	EnableWorkspaceTrust  bool                `json:"enableWorkspaceTrust"`
	FolderURI             string              `json:"folderUri,omitempty"`
	WorkspaceURI          string              `json:"workspaceUri,omitempty"`
	ResourceURLTemplate   string              `json:"webExtensionResourceUrlTemplate,omitempty"`
}

type developmentOptions struct {
	LogLevel string `json:"logLevel"`
}

type settingsSync struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) clientConfiguration(host string) clientConfiguration {
	cfg := clientConfiguration{
		RemoteAuthority:      host,
		EnableWorkspaceTrust: !h.opts.DisableWorkspaceTrust,
		FolderURI:            h.opts.FolderURI,
		WorkspaceURI:         h.opts.WorkspaceURI,
	}
	if h.opts.SmokeTest {
		// The integration-test driver cannot reach into iframe-wrapped
		// worker hosts.
		off := false
		cfg.WrapWorkerInIframe = &off
	}
	if h.opts.DevMode {
		cfg.DevelopmentOptions = &developmentOptions{LogLevel: "trace"}
	}
	if h.opts.EnableSync {
		cfg.SettingsSyncOptions = &settingsSync{Enabled: true}
	}
	if h.gateway.Configured() {
		cfg.ResourceURLTemplate = h.gateway.RewriteTemplate(host)
	}
	return cfg
}

// authSession returns the substitution for the auth-session marker: a fresh
// ephemeral session in development mode when an auth token was supplied,
// nothing otherwise.
func (h *Handler) authSession() string {
	if !h.opts.DevMode || h.opts.AuthToken == "" {
		return ""
	}
	session := map[string]interface{}{
		"id":          uuid.NewString(),
		"providerId":  "github",
		"accessToken": h.opts.AuthToken,
		"scopes":      []string{"read:user", "user:email"},
	}
	payload, err := json.Marshal(session)
	if err != nil {
		h.logger.Error("serializing auth session", zap.Error(err))
		return ""
	}
	return escapeAttribute(string(payload))
}

// rootPolicy derives the root page's Content-Security-Policy. script-src
// carries every inline hash discovered in the served document, the pinned
// worker-bootstrap hash, and the page's own authority over plain HTTP for
// same-origin worker loading. The remaining directives are fixed.
func (h *Handler) rootPolicy(doc, host string) string {
	scriptSrc := csp.QuoteAll(csp.ExtractHashes(doc))
	scriptSrc = append(scriptSrc, "'"+workerBootstrapHash+"'", "http://"+host)

	return csp.NewPolicy().
		Add("default-src", "'self'").
		Add("img-src", "'self'", "https:", "data:", "blob:").
		Add("media-src", "'self'").
		Add("script-src", scriptSrc...).
		Add("child-src", "'self'").
		Add("frame-src", "'self'", "https:", "data:").
		Add("worker-src", "'self'", "data:", "blob:").
		Add("style-src", "'self'", "'unsafe-inline'").
		Add("connect-src", "'self'", "ws:", "wss:", "https:").
		Add("font-src", "'self'", "blob:").
		Add("manifest-src", "'self'").
		String()
}

// escapeAttribute makes serialized JSON safe inside a double-quoted HTML
// attribute.
func escapeAttribute(s string) string {
	return strings.ReplaceAll(s, `"`, "&quot;")
}
