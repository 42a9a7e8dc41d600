// Package static serves files from the application root with conditional-GET
// support and path-containment enforcement.
package static

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/codelab/workbench/internal/errors"
)

// caseInsensitiveFS reports whether path containment must fold case.
var caseInsensitiveFS = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

// contentTypes is the fixed extension lookup table; anything else falls back
// to mime.TypeByExtension and finally text/plain.
var contentTypes = map[string]string{
	".html": "text/html",
	".js":   "text/javascript",
	".json": "application/json",
	".css":  "text/css",
	".svg":  "image/svg+xml",
}

// Responder serves files rooted at the application directory.
type Responder struct {
	root   string
	logger *zap.Logger

	// statFn is a seam for tests to observe filesystem access.
	statFn func(string) (os.FileInfo, error)
}

// NewResponder creates a Responder rooted at dir.
func NewResponder(dir string, logger *zap.Logger) (*Responder, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Responder{
		root:   abs,
		logger: logger,
		statFn: os.Stat,
	}, nil
}

// Root returns the absolute application root directory.
func (s *Responder) Root() string {
	return s.root
}

// Resolve maps a decoded request path onto a filesystem path inside the
// application root. Any path escaping the root, via ".." segments or
// otherwise, is rejected with a Bad request error before the filesystem is
// touched. The containment check folds case on case-insensitive filesystems.
func (s *Responder) Resolve(rel string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if !contains(s.root, full) {
		return "", errors.ErrBadRequest
	}
	return full, nil
}

func contains(root, path string) bool {
	if caseInsensitiveFS {
		root = strings.ToLower(root)
		path = strings.ToLower(path)
	}
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

// ServeFile writes the file at fsPath to the response with an ETag, answering
// If-None-Match revalidations with 304 and streaming the body otherwise.
// extra headers are applied to successful responses.
func (s *Responder) ServeFile(w http.ResponseWriter, r *http.Request, fsPath string, extra http.Header) error {
	fi, err := s.statFn(fsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.ErrNotFound
		}
		return errors.Wrap(err, http.StatusNotFound, "Not found")
	}
	if fi.IsDir() {
		return errors.ErrNotFound
	}

	for name, values := range extra {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}

	etag := etagFor(fsPath, fi)
	w.Header().Set("Etag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	f, err := os.Open(fsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.ErrNotFound
		}
		return errors.Wrap(err, http.StatusNotFound, "Not found")
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentTypeFor(fsPath))
	w.Header().Set("Content-Length", strconv.FormatInt(fi.Size(), 10))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return nil
	}
	// io.Copy streams through the ResponseWriter, so a slow client applies
	// backpressure instead of pulling the whole file into memory.
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Debug("static file stream aborted",
			zap.String("path", fsPath),
			zap.Error(err),
		)
	}
	return nil
}

// etagFor derives a weak validator from the file's identity, size and
// modification time. Unchanged file state always yields the identical tag.
func etagFor(path string, fi os.FileInfo) string {
	h := xxhash.New()
	io.WriteString(h, path)
	h.Write([]byte{0})
	io.WriteString(h, strconv.FormatInt(fi.Size(), 10))
	h.Write([]byte{0})
	io.WriteString(h, strconv.FormatInt(fi.ModTime().UnixNano(), 10))
	return `W/"` + strconv.FormatUint(h.Sum64(), 16) + `"`
}

func contentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "text/plain"
}
