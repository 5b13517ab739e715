// Package server exposes the publish pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/blacktop/threadpost/internal/logutil"
	"github.com/blacktop/threadpost/internal/threads"
)

const requestIDHeader = "X-Request-ID"

// Composer publishes post requests and creates carousel items for them.
type Composer interface {
	Compose(ctx context.Context, req threads.PostRequest) (threads.PublishResult, error)
	CreateCarouselItem(ctx context.Context, creds threads.Credentials, item threads.CarouselItem) (string, error)
}

// UsageReader reads the quota snapshot for an account.
type UsageReader interface {
	CurrentUsage(ctx context.Context, creds threads.Credentials) (threads.QuotaSnapshot, error)
}

// Config holds HTTP server dependencies.
type Config struct {
	Addr     string
	Composer Composer
	Usage    UsageReader
	// Metrics is served at /metrics when set.
	Metrics http.Handler
}

// Server is the HTTP front end.
type Server struct {
	router   *gin.Engine
	server   *http.Server
	composer Composer
	usage    UsageReader
}

// New builds the router and underlying http.Server.
func New(cfg Config) *Server {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	s := &Server{
		router:   router,
		composer: cfg.Composer,
		usage:    cfg.Usage,
	}

	router.GET("/health", s.handleHealth)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}
	router.POST("/threads", s.handleCompose)
	router.POST("/threads/items", s.handleCreateItem)
	router.GET("/quota", s.handleQuota)
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, errorResponse{Error: "Method Not Allowed", Code: "method_not_allowed"})
	})

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	logutil.Infof("starting HTTP server: addr=%s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logutil.Infof("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown HTTP server: %w", err)
	}
	return nil
}

type composeResponse struct {
	Success     bool   `json:"success"`
	PublishedID string `json:"publishedId"`
	Permalink   string `json:"permalink,omitempty"`
}

type itemRequest struct {
	UserID      string `json:"userId"`
	AccessToken string `json:"accessToken"`
	threads.CarouselItem
}

type itemResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

type quotaUsage struct {
	Usage         int `json:"usage"`
	Total         int `json:"total"`
	Remaining     int `json:"remaining"`
	WindowSeconds int `json:"window_seconds"`
}

type quotaResponse struct {
	Post           quotaUsage `json:"post"`
	Reply          quotaUsage `json:"reply"`
	Delete         quotaUsage `json:"delete"`
	LocationSearch quotaUsage `json:"location_search"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleCompose(c *gin.Context) {
	var req threads.PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid JSON body: %v", err), Code: threads.CodeInvalid})
		return
	}
	if req.UserID == "" || req.AccessToken == "" || req.MediaType == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Missing required fields", Code: threads.CodeInvalid})
		return
	}

	result, err := s.composer.Compose(c.Request.Context(), req)
	if err != nil {
		code := threads.Code(err)
		logutil.Errorf("compose failed: request_id=%s code=%s err=%v", c.GetString(requestIDHeader), code, err)
		c.JSON(statusFor(code), errorResponse{Error: err.Error(), Code: code})
		return
	}

	c.JSON(http.StatusOK, composeResponse{
		Success:     true,
		PublishedID: result.ID,
		Permalink:   result.Permalink,
	})
}

func (s *Server) handleCreateItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid JSON body: %v", err), Code: threads.CodeInvalid})
		return
	}
	if req.UserID == "" || req.AccessToken == "" || req.MediaType == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Missing required fields", Code: threads.CodeInvalid})
		return
	}

	creds := threads.Credentials{UserID: req.UserID, AccessToken: req.AccessToken}
	id, err := s.composer.CreateCarouselItem(c.Request.Context(), creds, req.CarouselItem)
	if err != nil {
		code := threads.Code(err)
		logutil.Errorf("create carousel item failed: request_id=%s code=%s err=%v", c.GetString(requestIDHeader), code, err)
		c.JSON(statusFor(code), errorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, itemResponse{Success: true, ID: id})
}

func (s *Server) handleQuota(c *gin.Context) {
	creds := threads.Credentials{
		UserID:      strings.TrimSpace(c.GetHeader("X-Threads-User-Id")),
		AccessToken: bearerToken(c.GetHeader("Authorization")),
	}
	snap, err := s.usage.CurrentUsage(c.Request.Context(), creds)
	if err != nil {
		code := threads.Code(err)
		c.JSON(statusFor(code), errorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, quotaResponse{
		Post:           toQuotaUsage(snap.Post),
		Reply:          toQuotaUsage(snap.Reply),
		Delete:         toQuotaUsage(snap.Delete),
		LocationSearch: toQuotaUsage(snap.LocationSearch),
	})
}

func toQuotaUsage(q threads.QuotaUsage) quotaUsage {
	return quotaUsage{
		Usage:         q.Usage,
		Total:         q.Total,
		Remaining:     q.Remaining(),
		WindowSeconds: int(q.Window / time.Second),
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func statusFor(code string) int {
	switch code {
	case threads.CodeInvalid:
		return http.StatusBadRequest
	case threads.CodeContainerFailed:
		return http.StatusUnprocessableEntity
	case threads.CodeNotReady:
		return http.StatusGatewayTimeout
	case threads.CodePublishFailed, threads.CodeTransport:
		return http.StatusBadGateway
	case threads.CodeCanceled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)

		c.Next()

		logutil.Infof("HTTP request: request_id=%s method=%s path=%s status=%d duration=%s client_ip=%s",
			id, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}
