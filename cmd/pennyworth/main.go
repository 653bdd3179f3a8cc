package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/calder/pennyworth/internal/agent"
	"github.com/calder/pennyworth/internal/approval"
	"github.com/calder/pennyworth/internal/executor"
	"github.com/calder/pennyworth/internal/gateway"
	"github.com/calder/pennyworth/internal/observability"
	"github.com/calder/pennyworth/internal/planner"
	"github.com/calder/pennyworth/internal/proactive"
	"github.com/calder/pennyworth/internal/store"
	"github.com/calder/pennyworth/internal/tools"
	"github.com/calder/pennyworth/pkg/config"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	observability.PrintBanner(cfg.App.Name, version)
	logger := observability.NewLogger(cfg.App.Environment)
	defer logger.Sync()

	db, err := store.New(cfg.Memory.Path, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer db.Close()

	// Capability providers.
	registry := tools.NewRegistry()
	finance := tools.NewFinanceProvider()
	registry.Register(finance)
	registry.Register(tools.NewTravelProvider())
	calendar := tools.NewCalendarProvider()
	registry.Register(calendar)
	registry.Register(tools.NewEmailProvider())

	research, err := tools.NewResearchProvider()
	if err != nil {
		logger.Warn("research provider unavailable", zap.Error(err))
	} else {
		registry.Register(research)
		defer research.Close()
	}

	// LLM collaborator.
	pName, pCfg := cfg.DefaultProvider()
	if pName == "" {
		logger.Fatal("no enabled LLM provider in config")
	}

	var model llms.Model
	switch pName {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		model, err = openai.New(opts...)
	default:
		logger.Fatal("unsupported LLM provider", zap.String("provider", pName))
	}
	if err != nil {
		logger.Fatal("failed to initialize LLM provider", zap.Error(err))
	}

	// Orchestration.
	approvals := approval.NewManager(db.Approvals(), cfg.Agent.ApprovalTTLHours, logger)
	exec := executor.NewExecutor(registry, approvals, db.AuditLog(), logger)
	classifier := planner.NewClassifier(model, logger)
	builder := planner.NewBuilder(model, registry, logger)
	pro := proactive.NewEngine(logger,
		&proactive.LowBalanceTrigger{Finance: finance, Threshold: 500},
		&proactive.UpcomingEventsTrigger{Calendar: calendar},
	)
	prompts := agent.NewPromptManager(cfg.App.PromptsDir)

	engine := agent.NewEngine(model, classifier, builder, exec, approvals, db, pro, prompts,
		agent.EngineConfig{
			MaxIterations:       cfg.Agent.MaxIterations,
			MinActionConfidence: cfg.Agent.MinActionConfidence,
			HistoryWindow:       cfg.Agent.HistoryWindow,
		}, logger)

	// Gateways.
	var gateways []gateway.Messenger
	if tgCfg, enabled := cfg.Gateway("telegram"); enabled {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, engine, logger)
		if err != nil {
			logger.Fatal("failed to start telegram gateway", zap.Error(err))
		}
		gateways = append(gateways, tg)
	}
	if dcCfg, enabled := cfg.Gateway("discord"); enabled {
		dc, err := gateway.NewDiscordGateway(dcCfg.Token, engine, logger)
		if err != nil {
			logger.Fatal("failed to start discord gateway", zap.Error(err))
		}
		gateways = append(gateways, dc)
	}
	if len(gateways) == 0 {
		logger.Fatal("no gateway enabled in config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := agent.NewScheduler(approvals, pro, db, gateways[0], logger)
	go scheduler.Start(ctx)

	for _, gw := range gateways {
		go func(gw gateway.Messenger) {
			if err := gw.Start(); err != nil {
				logger.Error("gateway stopped", zap.Error(err))
			}
		}(gw)
	}

	logger.Info("pennyworth is up",
		zap.String("environment", cfg.App.Environment),
		zap.Int("gateways", len(gateways)))

	<-ctx.Done()
	logger.Info("shutting down")
	for _, gw := range gateways {
		if err := gw.Stop(); err != nil {
			logger.Warn("gateway shutdown error", zap.Error(err))
		}
	}
}
