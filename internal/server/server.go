// Package server owns the HTTP surface of the workbench web server: the
// route table, the listeners and their lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/codelab/workbench/internal/config"
	"github.com/codelab/workbench/internal/gallery"
	"github.com/codelab/workbench/internal/metrics"
	"github.com/codelab/workbench/internal/static"
	"github.com/codelab/workbench/internal/token"
	"github.com/codelab/workbench/internal/workbench"
)

const shutdownTimeout = 10 * time.Second

// Server is the assembled workbench web server.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	main   *http.Server
	admin  *http.Server
}

// New builds the handler graph from configuration. All collaborators are
// constructed here and injected; nothing reaches for ambient state.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	mode, err := token.ParseMode(cfg.Token.Mode)
	if err != nil {
		return nil, err
	}
	tokens := token.NewManager(mode, cfg.Token.Value)

	st, err := static.NewResponder(cfg.Workbench.AppRoot, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing static responder: %w", err)
	}

	tmpl, err := gallery.ParseTemplate(cfg.Gallery.ResourceURLTemplate)
	if err != nil {
		return nil, err
	}
	gw := gallery.New(tmpl, nil, logger)

	wb, err := workbench.New(workbench.Options{
		AppRoot:               cfg.Workbench.AppRoot,
		DevMode:               cfg.Workbench.BuildMode == config.BuildModeDev,
		SmokeTest:             cfg.Workbench.SmokeTest,
		WorkspaceURI:          cfg.Workbench.WorkspaceURI,
		FolderURI:             cfg.Workbench.FolderURI,
		EnableSync:            cfg.Workbench.EnableSync,
		DisableWorkspaceTrust: cfg.Workbench.DisableWorkspaceTrust,
		AuthToken:             cfg.Workbench.AuthToken,
	}, tokens, gw, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		main: &http.Server{
			Addr:    cfg.ListenAddr(),
			Handler: NewRouter(st, wb, gw, logger),
		},
	}

	if cfg.Admin.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/-/metrics", metrics.Handler())
		mux.HandleFunc("/-/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		s.admin = &http.Server{
			Addr:    cfg.Admin.Addr,
			Handler: mux,
		}
	}

	return s, nil
}

// Handler returns the main request handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.main.Handler
}

// Run serves until ctx is canceled, then drains connections gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", s.main.Addr))
		if err := s.main.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if s.admin != nil {
		g.Go(func() error {
			s.logger.Info("admin listening", zap.String("addr", s.admin.Addr))
			if err := s.admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if s.admin != nil {
			s.admin.Shutdown(shutCtx)
		}
		return s.main.Shutdown(shutCtx)
	})

	return g.Wait()
}
