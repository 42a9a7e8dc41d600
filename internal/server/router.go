package server

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/codelab/workbench/internal/errors"
	"github.com/codelab/workbench/internal/gallery"
	"github.com/codelab/workbench/internal/metrics"
	"github.com/codelab/workbench/internal/static"
	"github.com/codelab/workbench/internal/workbench"
)

// fixedAssets are served by exact name from the application root.
var fixedAssets = []string{
	"/favicon.ico",
	"/manifest.json",
	"/code-192.png",
	"/code-512.png",
}

// handle is a route endpoint: it either writes a complete response or returns
// a typed error for the router to render.
type handle func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error

// Router dispatches requests by path and is the single place every request is
// guaranteed a response, including when a handler panics.
type Router struct {
	matcher *httprouter.Router
	logger  *zap.Logger
}

// NewRouter wires the route table. Dispatch is method-agnostic: matching uses
// only the request path, and unmatched paths get a plain-text 404.
func NewRouter(st *static.Responder, wb *workbench.Handler, gw *gallery.Gateway, logger *zap.Logger) *Router {
	rt := &Router{logger: logger}

	m := httprouter.New()
	m.RedirectTrailingSlash = false
	m.RedirectFixedPath = false
	m.HandleMethodNotAllowed = false

	for _, name := range fixedAssets {
		rel := strings.TrimPrefix(name, "/")
		m.GET(name, rt.route("asset", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
			fsPath, err := st.Resolve(rel)
			if err != nil {
				return err
			}
			return st.ServeFile(w, r, fsPath, nil)
		}))
	}

	m.GET("/static/*filepath", rt.route("static", func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
		fsPath, err := st.Resolve(ps.ByName("filepath"))
		if err != nil {
			return err
		}
		return st.ServeFile(w, r, fsPath, nil)
	}))

	m.GET("/", rt.route("root", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
		return wb.ServeRoot(w, r)
	}))

	m.GET("/callback", rt.route("callback", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
		return wb.ServeCallback(w, r)
	}))

	m.GET("/web-extension-resource/*resource", rt.route("gallery", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
		return gw.Proxy(w, r)
	}))

	rt.matcher = m
	return rt
}

// ServeHTTP matches the request path and delegates. Handler panics become a
// generic 500; the detail is logged and never reaches the client.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			rt.logger.Error("panic recovered",
				zap.Any("error", rec),
				zap.String("path", r.URL.Path),
				zap.ByteString("stack", debug.Stack()),
			)
			errors.ErrInternal.WriteText(w)
		}
	}()

	// Lookup is pinned to GET so dispatch depends on the path alone.
	h, ps, _ := rt.matcher.Lookup(http.MethodGet, r.URL.Path)
	if h == nil {
		rt.renderError(w, r, "none", errors.ErrNotFound)
		return
	}
	h(w, r, ps)
}

// route adapts a handle into an httprouter.Handle with error rendering and
// request metrics.
func (rt *Router) route(name string, h handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		if err := h(sr, r, ps); err != nil {
			rt.renderError(sr, r, name, err)
		}
		metrics.RecordRequest(name, sr.statusCode, time.Since(start).Seconds())
		if name == "gallery" {
			metrics.RecordGalleryStatus(sr.statusCode)
		}
	}
}

// renderError turns a handler failure into a plain-text response. Unexpected
// error values are masked as a generic 500.
func (rt *Router) renderError(w http.ResponseWriter, r *http.Request, route string, err error) {
	werr, ok := errors.AsError(err)
	if !ok {
		rt.logger.Error("unhandled error",
			zap.String("route", route),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		werr = errors.ErrInternal
	} else if werr.Loggable() {
		rt.logger.Warn("request failed",
			zap.String("route", route),
			zap.String("path", r.URL.Path),
			zap.Int("status", werr.Code),
			zap.Error(err),
		)
	}
	werr.WriteText(w)
	if route == "none" {
		metrics.RecordRequest(route, werr.Code, 0)
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.wroteHeader {
		sr.statusCode = code
		sr.wroteHeader = true
	}
	sr.ResponseWriter.WriteHeader(code)
}
