package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/config"
	"go.uber.org/zap"
)

type Server struct {
	router  *gin.Engine
	handler *Handler
	audit   *AuditHandler
	httpSrv *http.Server
	cfg     *config.Config
	log     *zap.Logger
}

func NewServer(cfg *config.Config, fulfillment Fulfiller, broadcast Broadcaster, audit AuditReader, log *zap.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.HandleMethodNotAllowed = true

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log.Named("http")))

	s := &Server{
		router:  router,
		handler: NewHandler(fulfillment, broadcast, log),
		audit:   NewAuditHandler(audit),
		cfg:     cfg,
		log:     log,
	}

	s.setupRoutes()
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})
	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "panel-fulfillment-service",
		})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Admin dashboard - fulfil paid orders
	fulfillment := s.router.Group("/api/v1/fulfillment")
	fulfillment.Use(JWTAuthMiddleware(s.cfg.JWT.SecretKey, s.cfg.JWT.AdminRole))
	fulfillment.Use(RateLimitMiddleware(NewRateLimiter(s.cfg.Server.RateLimitPerMinute)))
	{
		fulfillment.POST("/provision", s.handler.Provision)
		fulfillment.GET("/orders/:id/logs", s.audit.OrderLogs)
	}

	// Database webhook - order notifications
	notifications := s.router.Group("/api/v1/notifications")
	notifications.Use(InternalAuthMiddleware(s.cfg.InternalSecret))
	{
		notifications.POST("/orders", s.handler.BroadcastOrders)
	}
}

// Handler exposes the router for an http.Server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
