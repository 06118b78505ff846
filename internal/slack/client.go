package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/answerbase/go-knowledge-bot/internal/services"
)

// Client wraps the Slack Web API behind the transport capabilities the
// services use: looking up a message, fetching its thread, and posting a
// reply.
type Client struct {
	api *slack.Client
}

// NewClient builds a Client over a bot token (xoxb-…).
func NewClient(botToken string) *Client {
	return &Client{api: slack.New(botToken)}
}

// FetchMessage returns the single channel message at ts. The feedback
// service uses it to resolve a reacted-to message to its thread root before
// fetching the thread.
func (c *Client) FetchMessage(ctx context.Context, channel, ts string) (services.ThreadMessage, error) {
	resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channel,
		Latest:    ts,
		Inclusive: true,
		Limit:     1,
	})
	if err != nil {
		return services.ThreadMessage{}, fmt.Errorf("slack: fetch message %s/%s: %w", channel, ts, err)
	}
	if len(resp.Messages) == 0 {
		return services.ThreadMessage{}, fmt.Errorf("slack: message %s/%s not found", channel, ts)
	}
	return toThreadMessage(resp.Messages[0]), nil
}

// FetchThread returns up to limit messages of the thread rooted at ts, in
// posting order. ts must be the thread root timestamp; Slack returns only
// the single message when given a child timestamp.
func (c *Client) FetchThread(ctx context.Context, channel, ts string, limit int) ([]services.ThreadMessage, error) {
	msgs, _, _, err := c.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID: channel,
		Timestamp: ts,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("slack: fetch thread %s/%s: %w", channel, ts, err)
	}
	out := make([]services.ThreadMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toThreadMessage(m))
	}
	return out, nil
}

func toThreadMessage(m slack.Message) services.ThreadMessage {
	tm := services.ThreadMessage{
		User:      m.User,
		BotID:     m.BotID,
		Text:      m.Text,
		Timestamp: m.Timestamp,
		ThreadTs:  m.ThreadTimestamp,
	}
	// Slack sets thread_ts on the root message too; a root is not "inside"
	// another thread.
	if tm.ThreadTs == tm.Timestamp {
		tm.ThreadTs = ""
	}
	return tm
}

// Send posts text as a threaded reply.
func (c *Client) Send(ctx context.Context, channel, threadTs, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(threadTs),
	)
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// BotUserID resolves the authenticated bot's user id, used to ignore the
// bot's own messages.
func (c *Client) BotUserID(ctx context.Context) (string, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("slack: auth test: %w", err)
	}
	return resp.UserID, nil
}
