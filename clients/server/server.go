// Package server provides the CertStencil web editor and its HTTP API.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xob0t/CertStencil/pkg/batch"
	"github.com/xob0t/CertStencil/pkg/certificate"
	"github.com/xob0t/CertStencil/pkg/config"
	"github.com/xob0t/CertStencil/pkg/drag"
	"github.com/xob0t/CertStencil/pkg/logger"
	"github.com/xob0t/CertStencil/pkg/render"
	"github.com/xob0t/CertStencil/pkg/session"
)

//go:embed web/*
var webContent embed.FS

// Options configure a Server.
type Options struct {
	Config   config.Config
	Logger   *zap.Logger          // zap.L() when nil
	Registry *prometheus.Registry // a fresh registry when nil

	// Rasterizer overrides the renderer used for batches.
	Rasterizer batch.Rasterizer
}

// Server wires the session store, renderer, batch service and drag board to HTTP.
type Server struct {
	cfg      config.Config
	log      *zap.Logger
	registry *prometheus.Registry

	fonts    *render.FontRegistry
	renderer *render.Renderer
	store    *session.Store
	service  *batch.Service
	board    *drag.Board
	engine   *gin.Engine
}

// New builds a server and its routes.
func New(opts Options) (*Server, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = zap.L()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	fonts, err := render.NewFontRegistry()
	if err != nil {
		return nil, err
	}
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("run id node: %w", err)
	}
	batchMetrics, err := batch.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register batch metrics: %w", err)
	}
	httpMetrics, err := newHTTPMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		log:      log,
		registry: reg,
		fonts:    fonts,
		renderer: render.NewRenderer(fonts),
		store:    session.NewStore(fonts, node),
	}

	var rasterizer batch.Rasterizer = s.renderer
	if opts.Rasterizer != nil {
		rasterizer = opts.Rasterizer
	}
	pipeline := batch.NewPipeline(rasterizer, log.Named("batch"), batchMetrics)
	pipeline.Timeout = cfg.Timeout
	pipeline.Concurrency = cfg.Concurrency
	s.service = batch.NewService(s.store, pipeline)
	s.board = drag.NewBoard(s.onDragMove)

	s.engine, err = s.routes(httpMetrics)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Store exposes the session store.
func (s *Server) Store() *session.Store {
	return s.store
}

func (s *Server) routes(m *httpMetrics) (*gin.Engine, error) {
	webFS, err := fs.Sub(webContent, "web")
	if err != nil {
		return nil, fmt.Errorf("embed web: %w", err)
	}

	r := gin.New()
	r.MaxMultipartMemory = s.cfg.MaxUploadBytes
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		Logger:    s.log.Named("http"),
		SkipPaths: []string{"/healthz", "/metrics", "/api/elements/:id/drag/move"},
	}))
	r.Use(m.middleware())

	r.GET("/", func(c *gin.Context) {
		c.FileFromFS("/", http.FS(webFS))
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.GET("/state", s.handleState)
	api.POST("/reset", s.handleReset)

	api.POST("/upload/template", s.handleUploadTemplate)
	api.POST("/upload/font", s.handleUploadFont)
	api.POST("/upload/bundle", s.handleImportBundle)
	api.GET("/bundle", s.handleExportBundle)

	api.PUT("/names", s.handleSetNames)
	api.PUT("/stamp", s.handleSetStamp)
	api.PATCH("/elements/:id", s.handleUpdateElement)
	api.POST("/elements/:id/drag/down", s.handleDragDown)
	api.POST("/elements/:id/drag/move", s.handleDragMove)
	api.POST("/elements/:id/drag/up", s.handleDragUp)

	api.GET("/preview.png", s.handlePreview)
	api.POST("/generate", s.handleGenerate)

	api.GET("/certificates", s.handleCertificates)
	api.GET("/certificates/:index/download", s.handleDownload)
	api.GET("/certificates/:index/thumbnail", s.handleThumbnail)
	r.GET("/api/certificates.zip", s.handleArchive)

	return r, nil
}

// Run serves on cfg.Addr() until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	url := "http://localhost" + s.cfg.Addr()
	s.log.Info("CertStencil editor listening", zap.String("url", url))
	if s.cfg.OpenBrowser {
		go s.openBrowser(url)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	s.board.Reset()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// onDragMove is the drag board's update callback.
func (s *Server) onDragMove(id int, pos certificate.Position) {
	if err := s.store.MoveElement(id, pos); err != nil {
		s.log.Debug("drag move dropped", zap.Int("id", id), zap.Error(err))
	}
}

// browserCommand returns the platform command that opens url.
var browserCommand = func(url string) *exec.Cmd {
	switch runtime.GOOS {
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		return exec.Command("open", url)
	default:
		return exec.Command("xdg-open", url)
	}
}

func (s *Server) openBrowser(url string) {
	if err := browserCommand(url).Start(); err != nil {
		s.log.Debug("could not open browser", zap.String("url", url), zap.Error(err))
	}
}
