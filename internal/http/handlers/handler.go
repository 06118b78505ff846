package handlers

import (
	"context"
	"time"

	"github.com/answerbase/go-knowledge-bot/internal/importer"
	"github.com/answerbase/go-knowledge-bot/internal/services"
)

// defaultEventTimeout bounds asynchronous event processing when no explicit
// timeout is configured.
const defaultEventTimeout = 2 * time.Minute

// Messenger posts replies back to the messaging transport.
type Messenger interface {
	Send(ctx context.Context, channel, threadTs, text string) error
}

// Handler bundles the services behind the HTTP endpoints. All fields are
// required unless noted.
type Handler struct {
	Dedup        *services.DedupGuard
	Orchestrator *services.Orchestrator
	Feedback     *services.FeedbackService
	Messenger    Messenger

	// General receives CSV-imported knowledge.
	General importer.Writer

	// SigningSecret and MaxSkew verify inbound Slack deliveries.
	SigningSecret string
	MaxSkew       time.Duration

	// BotUser is the bot's own Slack user id, resolved at startup. Events
	// authored by it (including its reactions) are skipped to avoid feedback
	// loops. Empty disables the check.
	BotUser string

	// EventTimeout bounds the asynchronous processing of one Slack event
	// after the webhook has been acknowledged. Values <= 0 default to 2m.
	EventTimeout time.Duration
}

// New constructs the handler set.
func New(dedup *services.DedupGuard, orch *services.Orchestrator, fb *services.FeedbackService, msgr Messenger, general importer.Writer, signingSecret string, maxSkew time.Duration) *Handler {
	return &Handler{
		Dedup:         dedup,
		Orchestrator:  orch,
		Feedback:      fb,
		Messenger:     msgr,
		General:       general,
		SigningSecret: signingSecret,
		MaxSkew:       maxSkew,
		EventTimeout:  defaultEventTimeout,
	}
}
