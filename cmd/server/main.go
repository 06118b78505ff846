// Command server runs the knowledge bot: the Slack events webhook, the
// reviewer API for flagged questions, and the bulk knowledge import
// endpoint.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/answerbase/go-knowledge-bot/internal/ai"
	"github.com/answerbase/go-knowledge-bot/internal/cache"
	"github.com/answerbase/go-knowledge-bot/internal/config"
	httpapi "github.com/answerbase/go-knowledge-bot/internal/http"
	"github.com/answerbase/go-knowledge-bot/internal/http/handlers"
	"github.com/answerbase/go-knowledge-bot/internal/index"
	"github.com/answerbase/go-knowledge-bot/internal/observability"
	"github.com/answerbase/go-knowledge-bot/internal/repo"
	"github.com/answerbase/go-knowledge-bot/internal/services"
	"github.com/answerbase/go-knowledge-bot/internal/slack"
	"github.com/answerbase/go-knowledge-bot/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	gem, err := ai.Dial(ctx, cfg.Gemini.APIKey, ai.Options{
		Model:          cfg.Gemini.Model,
		EmbedModel:     cfg.Gemini.EmbedModel,
		CallTimeout:    cfg.Gemini.CallTimeout,
		RPS:            cfg.Gemini.RPS,
		Burst:          cfg.Gemini.Burst,
		EmbedCacheSize: cfg.EmbeddingCacheSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("genai client setup failed")
	}

	verified, err := index.Open(cfg.VerifiedIndex, gem)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.VerifiedIndex).Msg("verified index open failed")
	}
	general, err := index.Open(cfg.GeneralIndex, gem)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.GeneralIndex).Msg("general index open failed")
	}
	log.Info().
		Int("verified_docs", verified.Len()).
		Int("general_docs", general.Len()).
		Msg("knowledge indexes loaded")

	slackClient := slack.NewClient(cfg.Slack.BotToken)

	// Services
	dedup := services.NewDedupGuard(cfg.DedupCapacity, cfg.DedupTTL)
	conv := services.NewConversationStore(db)
	conv.Window = cfg.HistoryWindow

	matcher := services.NewSimilarityMatcher(db, gem)
	matcher.Threshold = cfg.SimilarityThreshold
	matcher.Limit = cfg.SimilarityLimit

	classifier := services.NewFlagClassifier(gem)
	responses := cache.NewTTL[string](cfg.ResponseCacheSize, cfg.ResponseCacheTTL)

	orch := services.NewOrchestrator(classifier, matcher, conv, verified, general, gem, responses)
	orch.K = cfg.RetrievalK

	feedback := services.NewFeedbackService(db, slackClient, gem, verified)
	feedback.Invalidate = func(question string) { responses.Remove(question) }

	h := handlers.New(dedup, orch, feedback, slackClient, general, cfg.Slack.SigningSecret, cfg.Slack.MaxSkew)
	if botID, err := slackClient.BotUserID(ctx); err != nil {
		log.Warn().Err(err).Msg("bot identity lookup failed, self-authored events will not be filtered by user id")
	} else {
		h.BotUser = botID
	}

	engine := gin.New()
	httpapi.RegisterRoutes(engine, httpapi.Deps{Handler: h}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
}
