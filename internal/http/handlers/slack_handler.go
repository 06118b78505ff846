package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/answerbase/go-knowledge-bot/internal/http/middleware"
	"github.com/answerbase/go-knowledge-bot/internal/slack"
)

// maxEventBody caps the inbound webhook payload.
const maxEventBody = 1 << 20

// SlackEvents handles POST /slack/events, the Events API webhook.
//
// Slack expects an acknowledgment within 3 seconds and redelivers otherwise,
// so the handler verifies, dedups, and acks synchronously, then processes
// the event in a detached goroutine. The dedup guard absorbs both Slack's
// redeliveries and genuine duplicate posts.
//
// @Summary      Slack events webhook
// @Description  Receives Events API deliveries: URL verification, messages, and reactions.
// @Tags         slack
// @Accept       json
// @Produce      json
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Router       /slack/events [post]
func (h *Handler) SlackEvents(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBody))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	if err := slack.VerifySignature(c.Request.Header, body, h.SigningSecret, h.MaxSkew); err != nil {
		fail(c, http.StatusUnauthorized, ErrCodeSignatureInvalid, "invalid request signature")
		return
	}

	var env slack.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed event payload")
		return
	}

	switch env.Type {
	case slack.TypeURLVerification:
		ok(c, http.StatusOK, gin.H{"challenge": env.Challenge})
		return
	case slack.TypeEventCallback:
		// Handled below.
	default:
		ok(c, http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	ev := env.Event
	log := middleware.LoggerFrom(c)

	if ev.FromBot() || (h.BotUser != "" && ev.User == h.BotUser) {
		ok(c, http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if !h.Dedup.MarkSeen(ev.DedupKey()) {
		log.Debug().Str("event_ts", ev.Ts).Msg("duplicate delivery dropped")
		ok(c, http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	switch {
	case ev.IsDislike():
		h.async(c, func(ctx context.Context) {
			ts := ev.Item.Ts
			if _, err := h.Feedback.RegisterDislike(ctx, ev.Item.Channel, ts); err != nil {
				log.Error().Err(err).Str("channel", ev.Item.Channel).Str("ts", ts).Msg("dislike registration failed")
			}
		})
	case ev.IsQuestion():
		h.async(c, func(ctx context.Context) {
			reply := h.Orchestrator.Answer(ctx, ev.Text, ev.ThreadKey())
			if err := h.Messenger.Send(ctx, ev.Channel, ev.ThreadKey(), reply); err != nil {
				log.Error().Err(err).Str("channel", ev.Channel).Msg("reply delivery failed")
			}
		})
	}

	ok(c, http.StatusOK, gin.H{"status": "accepted"})
}

// async runs fn after the webhook ack on a context that survives the request
// but keeps its logger and trace, bounded by EventTimeout.
func (h *Handler) async(c *gin.Context, fn func(ctx context.Context)) {
	timeout := h.EventTimeout
	if timeout <= 0 {
		timeout = defaultEventTimeout
	}
	base := context.WithoutCancel(c.Request.Context())
	go func() {
		ctx, cancel := context.WithTimeout(base, timeout)
		defer cancel()
		fn(ctx)
	}()
}
