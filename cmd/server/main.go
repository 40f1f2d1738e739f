package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stanley20008love/lark-proxyss/config"
	"github.com/stanley20008love/lark-proxyss/internal/adapter/feishu"
	"github.com/stanley20008love/lark-proxyss/internal/adapter/rest"
	"github.com/stanley20008love/lark-proxyss/internal/agent"
	"github.com/stanley20008love/lark-proxyss/internal/core"
	"github.com/stanley20008love/lark-proxyss/internal/dataservice"
	"github.com/stanley20008love/lark-proxyss/internal/llm"
	"github.com/stanley20008love/lark-proxyss/internal/session"
)

func main() {
	// 1. Init Config
	config.Init()
	cfg := config.AppConfig

	// 2. Init Logger
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Init LLM (optional)
	var llmProvider llm.Provider
	if p, err := llm.NewProvider(cfg.LLM); err == nil {
		llmProvider = p
	} else if errors.Is(err, llm.ErrNotConfigured) {
		logger.Warn("LLM_API_KEY not set, free text falls back to help")
	} else {
		logger.Fatal("Failed to init LLM provider", zap.Error(err))
	}

	// 4. Init Data Services
	registry, err := dataservice.NewRegistryFromConfig(cfg.Data, logger)
	if err != nil {
		logger.Fatal("Failed to init data services", zap.Error(err))
	}
	dataService := registry.GetDefault()
	logger.Info("Data sources registered", zap.Strings("sources", registry.Names()))

	// 5. Init Agents and Router
	state := agent.NewBotState()
	market := agent.NewMarket(dataService, logger)
	chatAgent := agent.NewChatAgent(llmProvider, session.NewManager(), dataService, logger)

	router, err := core.NewRouter(
		core.Commands(market, state, time.Now),
		core.AssistantFallback(chatAgent, logger),
	)
	if err != nil {
		logger.Fatal("Invalid command table", zap.Error(err))
	}

	// 6. Init Dispatcher
	gateway := feishu.NewClient(cfg.Feishu, logger)
	dispatcher, err := core.NewDispatcher(router, gateway, logger)
	if err != nil {
		logger.Fatal("Failed to init dispatcher", zap.Error(err))
	}

	// 7. Init Adapters
	// 7.1 Feishu long connection (optional, same dispatcher as the webhook)
	if cfg.Feishu.WSEnabled {
		wsAdapter := feishu.NewWSAdapter(cfg.Feishu, dispatcher, logger)
		go func() {
			if err := wsAdapter.StartWS(ctx); err != nil {
				logger.Error("Failed to start Feishu WS", zap.Error(err))
			}
		}()
	}

	// 7.2 HTTP webhook, chat API and metrics
	restAdapter := rest.NewAdapter(cfg.Server, feishu.NewEventParser(cfg.Feishu.VerificationToken), dispatcher, state, logger)
	if err := restAdapter.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}
