package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/stanley20008love/lark-proxyss/config"
	"github.com/stanley20008love/lark-proxyss/internal/adapter/feishu"
	"github.com/stanley20008love/lark-proxyss/internal/agent"
	"github.com/stanley20008love/lark-proxyss/internal/core"
	"github.com/stanley20008love/lark-proxyss/internal/metrics"
	"github.com/stanley20008love/lark-proxyss/internal/model"
)

// Adapter serves the Lark webhook, health checks, the chat API and metrics.
type Adapter struct {
	Dispatcher *core.Dispatcher
	Parser     *feishu.EventParser
	State      *agent.BotState
	Logger     *zap.Logger
	Server     config.ServerConfig
}

func NewAdapter(server config.ServerConfig, parser *feishu.EventParser, dispatcher *core.Dispatcher, state *agent.BotState, logger *zap.Logger) *Adapter {
	return &Adapter{
		Dispatcher: dispatcher,
		Parser:     parser,
		State:      state,
		Logger:     logger,
		Server:     server,
	}
}

type ChatRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Text     string `json:"text" binding:"required"`
	ChatID   string `json:"chat_id"`
	Platform string `json:"platform"` // optional, defaults to "api"
}

type ChatResponse struct {
	Response string `json:"response"`
	Route    string `json:"route"`
	Card     any    `json:"card,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// Handler builds the HTTP handler: gin routes wrapped in permissive CORS.
func (a *Adapter) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), a.requestLogger())

	r.POST("/webhook", a.handleWebhook)
	r.POST("/api", a.handleWebhook)
	r.GET("/webhook", a.handleHealth)
	r.GET("/api", a.handleHealth)
	r.GET("/health", a.handleHealth)
	r.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.POST("/api/v1/chat", a.handleChat)
	r.GET("/api/status", a.handleStatus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	c := cors.New(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"*"},
		OptionsSuccessStatus: http.StatusOK,
	})
	return c.Handler(r)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (a *Adapter) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + a.Server.Port,
		Handler:      a.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("Starting HTTP server", zap.String("port", a.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *Adapter) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.Logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (a *Adapter) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: a.Server.ServiceName,
		Version: a.Server.ServiceVersion,
	})
}

// handleWebhook always answers 200: Lark retries anything else and the
// retry would duplicate replies.
func (a *Adapter) handleWebhook(c *gin.Context) {
	outcome := "ignored"
	defer func() {
		if p := recover(); p != nil {
			a.Logger.Error("Webhook panicked", zap.Any("panic", p), zap.Stack("stack"))
			outcome = "panic"
			c.JSON(http.StatusOK, gin.H{"code": 0})
		}
		metrics.WebhookRequests.WithLabelValues(outcome).Inc()
	}()

	body, err := c.GetRawData()
	if err != nil {
		a.Logger.Warn("Unreadable webhook body", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"code": 0})
		return
	}

	if challenge, ok := feishu.Handshake(body); ok {
		outcome = "handshake"
		a.Logger.Info("URL verification")
		c.JSON(http.StatusOK, gin.H{"challenge": challenge})
		return
	}

	// Card clicks are answered in the response body: Lark shows the toast
	// and swaps in the returned card.
	act, err := a.Parser.ParseCardAction(body)
	if err == nil {
		res := a.Dispatcher.HandleCardAction(context.WithoutCancel(c.Request.Context()), act)
		outcome = "card_action"
		c.JSON(http.StatusOK, feishu.CardActionResponse(res))
		return
	}
	if !errors.Is(err, feishu.ErrNotCardAction) {
		outcome = a.skipped(err)
		c.JSON(http.StatusOK, gin.H{"code": 0})
		return
	}

	ev, err := a.Parser.Parse(body)
	if err != nil {
		outcome = a.skipped(err)
		c.JSON(http.StatusOK, gin.H{"code": 0})
		return
	}

	// The reply is built before acknowledging. The request context is
	// detached so a client disconnect does not abort delivery.
	a.Dispatcher.HandleEvent(context.WithoutCancel(c.Request.Context()), ev)
	outcome = "dispatched"
	c.JSON(http.StatusOK, gin.H{"code": 0})
}

// skipped logs why a webhook body gets no reply and returns the outcome
// label for it.
func (a *Adapter) skipped(err error) string {
	switch {
	case errors.Is(err, feishu.ErrTokenMismatch):
		a.Logger.Warn("Webhook token mismatch")
		return "rejected"
	case errors.Is(err, feishu.ErrMalformed):
		a.Logger.Warn("Malformed webhook body", zap.Error(err))
		return "malformed"
	default:
		a.Logger.Debug("Webhook event skipped", zap.Error(err))
		return "ignored"
	}
}

func (a *Adapter) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	platform := req.Platform
	if platform == "" {
		platform = "api"
	}
	chatID := req.ChatID
	if chatID == "" {
		chatID = req.UserID
	}

	cmd := model.NewCommand(req.Text)
	cmd.Session = platform + ":" + chatID
	cmd.UserID = req.UserID

	requestID := uuid.NewString()
	a.Logger.Info("Chat API request", zap.String("request_id", requestID), zap.String("user_id", req.UserID))

	reply, route := a.Dispatcher.Respond(c.Request.Context(), cmd)
	if reply.IsEmpty() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "request_id": requestID})
		return
	}

	resp := ChatResponse{Response: reply.String(), Route: route}
	if reply.Kind == model.ReplyCard {
		resp.Card = reply.Card
	}
	c.JSON(http.StatusOK, resp)
}

func (a *Adapter) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, a.State.Dashboard())
}
