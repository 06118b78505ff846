// Package slack integrates the bot with the Slack Events API: inbound
// envelope types, request signature verification, and a thin client wrapper
// exposing only the transport capabilities the services need.
package slack

import "strings"

// Envelope event types.
const (
	TypeURLVerification = "url_verification"
	TypeEventCallback   = "event_callback"
)

// Inner event types.
const (
	EventMessage       = "message"
	EventAppMention    = "app_mention"
	EventReactionAdded = "reaction_added"
)

// DislikeReaction is the emoji name that flags a bot answer.
const DislikeReaction = "-1"

// Item points at the message a reaction was added to.
type Item struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Ts      string `json:"ts"`
}

// Event is the inner event of an event_callback envelope. Fields are a
// superset across the event types the bot handles.
type Event struct {
	Type        string `json:"type"`
	Channel     string `json:"channel"`
	User        string `json:"user"`
	Text        string `json:"text"`
	Ts          string `json:"ts"`
	ThreadTs    string `json:"thread_ts,omitempty"`
	ClientMsgID string `json:"client_msg_id,omitempty"`
	BotID       string `json:"bot_id,omitempty"`
	Subtype     string `json:"subtype,omitempty"`
	Reaction    string `json:"reaction,omitempty"`
	Item        Item   `json:"item,omitempty"`
}

// Envelope is the outer Events API delivery.
type Envelope struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`
	Challenge string `json:"challenge,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	Event     Event  `json:"event,omitempty"`
}

// ThreadKey returns the conversation key for an event: the thread it belongs
// to, or its own timestamp when it starts one.
func (e Event) ThreadKey() string {
	if e.ThreadTs != "" {
		return e.ThreadTs
	}
	return e.Ts
}

// DedupKey returns the stable identifier used by the dedup guard. Messages
// carry client_msg_id; reactions are identified by their coordinates.
func (e Event) DedupKey() string {
	if e.ClientMsgID != "" {
		return e.ClientMsgID
	}
	return strings.Join([]string{e.Type, e.Channel, e.User, e.Ts, e.Item.Ts}, "|")
}

// FromBot reports whether the event was produced by a bot (including this
// one), which must never be answered to avoid reply loops.
func (e Event) FromBot() bool {
	return e.BotID != "" || e.Subtype == "bot_message"
}

// IsQuestion reports whether the event is a human message the bot should
// answer.
func (e Event) IsQuestion() bool {
	if e.FromBot() {
		return false
	}
	if e.Type != EventMessage && e.Type != EventAppMention {
		return false
	}
	return strings.TrimSpace(e.Text) != ""
}

// IsDislike reports whether the event is a dislike reaction.
func (e Event) IsDislike() bool {
	return e.Type == EventReactionAdded && e.Reaction == DislikeReaction
}
