package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/loqalabs/loqa-till/internal/bill"
	"github.com/loqalabs/loqa-till/internal/catalog"
	"github.com/loqalabs/loqa-till/internal/till"
)

// Till is the control surface the API drives.
type Till interface {
	StartListening(ctx context.Context) (bool, error)
	StopListening(ctx context.Context) (bool, error)
	LoadCatalog(ctx context.Context, name string, c *catalog.Catalog) error
	PrintBill(ctx context.Context) (bill.Handle, error)
	Snapshot(ctx context.Context) (till.Snapshot, error)
}

type Options struct {
	AllowOrigins   []string
	StreamInterval time.Duration
	Ready          func() bool
	Metrics        http.Handler
}

type Server struct {
	till     Till
	opts     Options
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func New(t Till, opts Options, log *slog.Logger) *Server {
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = time.Second
	}
	s := &Server{
		till: t,
		opts: opts,
		log:  log.With(slog.String("component", "api")),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if len(s.opts.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.opts.AllowOrigins,
			AllowMethods:     []string{"GET", "POST"},
			AllowHeaders:     []string{"Origin", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", s.ready)
	if s.opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.opts.Metrics))
	}

	api := r.Group("/api")
	{
		api.POST("/listen/start", s.startListening)
		api.POST("/listen/stop", s.stopListening)
		api.POST("/catalog", s.loadCatalog)
		api.POST("/bill/print", s.printBill)
		api.GET("/snapshot", s.snapshot)
		api.GET("/stream", s.stream)
	}
	return r
}

func (s *Server) ready(c *gin.Context) {
	if s.opts.Ready == nil || s.opts.Ready() {
		c.String(http.StatusOK, "ready")
		return
	}
	c.String(http.StatusServiceUnavailable, "not ready")
}

func (s *Server) startListening(c *gin.Context) {
	changed, err := s.till.StartListening(c.Request.Context())
	if err != nil {
		s.unavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listening": true, "changed": changed})
}

func (s *Server) stopListening(c *gin.Context) {
	changed, err := s.till.StopListening(c.Request.Context())
	if err != nil {
		s.unavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listening": false, "changed": changed})
}

func (s *Server) loadCatalog(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	cat, err := catalog.Read(header.Filename, file)
	if err != nil {
		s.log.Info("rejected price list", slog.String("file", header.Filename), slogError(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.till.LoadCatalog(c.Request.Context(), header.Filename, cat); err != nil {
		s.unavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loaded": header.Filename, "items": cat.Len()})
}

func (s *Server) printBill(c *gin.Context) {
	handle, err := s.till.PrintBill(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, handle)
	case errors.Is(err, till.ErrEmptyBill):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, till.ErrClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.unavailable(c, err)
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func (s *Server) snapshot(c *gin.Context) {
	snap, err := s.till.Snapshot(c.Request.Context())
	if err != nil {
		s.unavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) unavailable(c *gin.Context, err error) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
