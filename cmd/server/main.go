package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"
	"log/slog"

	"github.com/hypebot-ai/hypebot/internal/config"
	"github.com/hypebot-ai/hypebot/internal/generator"
	"github.com/hypebot-ai/hypebot/internal/logging"
	"github.com/hypebot-ai/hypebot/internal/mentions"
	"github.com/hypebot-ai/hypebot/internal/metrics"
	"github.com/hypebot-ai/hypebot/internal/scheduler"
	"github.com/hypebot-ai/hypebot/internal/server"
	"github.com/hypebot-ai/hypebot/internal/social"
	"github.com/hypebot-ai/hypebot/internal/state"
	"github.com/hypebot-ai/hypebot/internal/status"
)

func main() {
	// Local development convenience; deployments set real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting hypebot", "keyword", cfg.Bot.Keyword)

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	bot := status.NewBot()

	mentionClient := mentions.NewClient(
		cfg.Elfa.APIKey,
		cfg.Elfa.BaseURL,
		logging.WithComponent(logger, "mentions"),
	)

	gen := generator.New(
		openai.NewClient(cfg.OpenAI.APIKey),
		generator.Config{
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
		},
		logging.WithComponent(logger, "generator"),
	)

	store := state.NewStore(cfg.Bot.DataDir, logging.WithComponent(logger, "state"))

	socialLogger := logging.WithComponent(logger, "social")
	twitterClient := social.NewTwitterClient(
		cfg.Twitter.APIKey,
		cfg.Twitter.APISecretKey,
		cfg.Twitter.AccessToken,
		cfg.Twitter.AccessTokenSecret,
		cfg.Twitter.BearerToken,
		socialLogger,
	)
	sessionClient := social.NewSessionClient(
		cfg.Twitter.Username,
		cfg.Twitter.Password,
		cfg.Twitter.Email,
		cfg.Twitter.SessionBaseURL,
		socialLogger,
	)
	rotator := social.NewRotator(socialLogger)
	publisher := social.NewPublisher(twitterClient, sessionClient, socialLogger)

	sched := scheduler.NewPostScheduler(
		scheduler.Config{
			Keyword:         cfg.Bot.Keyword,
			PostingInterval: cfg.Bot.PostingInterval,
			ErrorBackoff:    cfg.Bot.ErrorBackoff,
		},
		mentionClient,
		gen,
		store,
		rotator,
		publisher,
		twitterClient,
		sessionClient,
		bot,
		collector,
		logging.WithComponent(logger, "scheduler"),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", status.Handler(bot))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", collector.Handler())

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := sched.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("posting loop exited", "error", err)
		}
	}()

	logger.Info("hypebot started successfully")

	waitForSignal(logger)
	cancel()

	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
