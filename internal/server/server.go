// Package server exposes the WhatsApp webhook over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lingoloop/lingoloop/internal/metrics"
	"github.com/lingoloop/lingoloop/internal/tracing"
	"github.com/lingoloop/lingoloop/internal/whatsapp"
	"go.uber.org/zap"
)

// maxBodyBytes bounds webhook payloads.
const maxBodyBytes = 1 << 20

// Options configures a Server.
type Options struct {
	Addr               string
	VerifyToken        string
	Workers            int
	QueueSize          int
	RateLimitPerMinute int

	// Tracing adds an OpenTelemetry span per request.
	Tracing bool

	// Ping checks backing services for /health. Optional.
	Ping func(ctx context.Context) error

	Logger *zap.Logger
}

// Server is the webhook HTTP server.
type Server struct {
	opts       Options
	engine     *gin.Engine
	limiter    *SenderLimiter
	dispatcher *Dispatcher
	now        func() time.Time
	logger     *zap.Logger
}

// New builds a Server that hands accepted messages to p.
func New(p Processor, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		opts:       opts,
		limiter:    NewSenderLimiter(opts.RateLimitPerMinute),
		dispatcher: NewDispatcher(p, opts.Workers, opts.QueueSize, logger),
		now:        time.Now,
		logger:     logger,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger), metrics.Middleware())
	if s.opts.Tracing {
		r.Use(tracing.Middleware())
	}

	r.GET("/webhook", s.verifyWebhook)
	r.POST("/webhook", s.receiveWebhook)
	r.GET("/health", s.health)
	r.GET("/metrics", metrics.Handler())
	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests and
// queued messages.
func (s *Server) Run(ctx context.Context) error {
	metrics.Init()
	s.dispatcher.Start(context.WithoutCancel(ctx))

	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook server listening", zap.String("addr", s.opts.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()

	for {
		select {
		case err := <-errCh:
			s.dispatcher.Stop()
			return err
		case <-sweep.C:
			s.limiter.Sweep(10 * time.Minute)
		case <-ctx.Done():
			s.logger.Info("shutting down webhook server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			err := srv.Shutdown(shutdownCtx)
			s.dispatcher.Stop()
			return err
		}
	}
}

// verifyWebhook answers the Meta subscription handshake.
func (s *Server) verifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "" && token == "" && challenge == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	if mode == "subscribe" && s.opts.VerifyToken != "" && token == s.opts.VerifyToken {
		s.logger.Info("webhook verified")
		c.String(http.StatusOK, challenge)
		return
	}
	s.logger.Warn("webhook verification failed", zap.String("mode", mode))
	c.JSON(http.StatusForbidden, gin.H{"error": "verification failed"})
}

// receiveWebhook always acknowledges with 200 so providers do not retry
// payloads we cannot use.
func (s *Server) receiveWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		s.logger.Warn("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	msg, err := whatsapp.Parse(c.ContentType(), body)
	if err != nil {
		if !errors.Is(err, whatsapp.ErrNoMessage) {
			s.logger.Warn("unparseable webhook payload", zap.Error(err))
		}
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}

	switch {
	case !s.limiter.Allow(msg.From):
		metrics.MessagesDropped.Inc()
		s.logger.Warn("sender rate limited", zap.String("from", msg.From))
	case !s.dispatcher.Submit(msg):
		metrics.MessagesDropped.Inc()
		s.logger.Warn("dispatch queue full, message dropped",
			zap.String("from", msg.From),
			zap.String("message_id", msg.ID))
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (s *Server) health(c *gin.Context) {
	if s.opts.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "degraded",
				"components": gin.H{"database": "down"},
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"components": gin.H{"database": "up"},
	})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
