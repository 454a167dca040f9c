package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/usecase"
)

const requestIDHeader = "X-Request-ID"

// Ingester stores an uploaded document.
type Ingester interface {
	Ingest(ctx context.Context, filename string, data []byte) (*usecase.IngestResult, error)
}

// Answerer answers a question from the indexed documents.
type Answerer interface {
	AnswerQuestion(ctx context.Context, question string, topK int) string
}

type Options struct {
	MaxUploadBytes int64
	Logger         logger.Logger
}

// Server exposes ingestion and question answering over HTTP.
type Server struct {
	router    *gin.Engine
	ingester  Ingester
	answerer  Answerer
	maxUpload int64
	log       logger.Logger
}

type UploadResponse struct {
	Message      string `json:"message"`
	ChunksStored int    `json:"chunks_stored"`
}

type QueryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

type QueryResponse struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func New(ingester Ingester, answerer Answerer, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.Logger == nil {
		opts.Logger = logger.FromContext(context.Background())
	}

	s := &Server{
		router:    gin.New(),
		ingester:  ingester,
		answerer:  answerer,
		maxUpload: opts.MaxUploadBytes,
		log:       opts.Logger,
	}
	s.router.MaxMultipartMemory = opts.MaxUploadBytes
	s.router.Use(gin.Recovery(), s.requestContext())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/upload", s.handleUpload)
	s.router.POST("/query", s.handleQuery)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("Shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

// requestContext tags each request with an id and a scoped logger.
func (s *Server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		log := s.log.With("request_id", id)
		c.Request = c.Request.WithContext(logger.ContextWithLogger(c.Request.Context(), log))

		start := time.Now()
		c.Next()
		log.Debug("Request handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "missing file field"})
		return
	}
	if header.Size > s.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Detail: "file too large"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "unreadable upload"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "unreadable upload"})
		return
	}
	if int64(len(data)) > s.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Detail: "file too large"})
		return
	}

	ctx := c.Request.Context()
	res, err := s.ingester.Ingest(ctx, header.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnsupportedFileType), errors.Is(err, domain.ErrContentMismatch):
			c.JSON(http.StatusBadRequest, errorResponse{Detail: err.Error()})
		default:
			logger.FromContext(ctx).Error("Upload failed", "file", header.Filename, "error", err)
			c.JSON(http.StatusInternalServerError, errorResponse{Detail: "failed to process document"})
		}
		return
	}

	msg := fmt.Sprintf("Processed %s", res.Source)
	if res.Skipped {
		msg = fmt.Sprintf("%s is already up to date", res.Source)
	}
	c.JSON(http.StatusOK, UploadResponse{
		Message:      msg,
		ChunksStored: res.ChunksStored,
	})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "question is required"})
		return
	}
	if req.TopK < 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "top_k must not be negative"})
		return
	}

	answer := s.answerer.AnswerQuestion(c.Request.Context(), req.Question, req.TopK)
	c.JSON(http.StatusOK, QueryResponse{Answer: answer})
}
