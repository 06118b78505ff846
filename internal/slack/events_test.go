package slack

import "testing"

func TestThreadKey(t *testing.T) {
	threaded := Event{Ts: "2.0", ThreadTs: "1.0"}
	if got := threaded.ThreadKey(); got != "1.0" {
		t.Fatalf("threaded key = %q", got)
	}
	root := Event{Ts: "3.0"}
	if got := root.ThreadKey(); got != "3.0" {
		t.Fatalf("root key = %q", got)
	}
}

func TestDedupKey(t *testing.T) {
	msg := Event{Type: EventMessage, ClientMsgID: "abc123", Ts: "1.0"}
	if got := msg.DedupKey(); got != "abc123" {
		t.Fatalf("message key = %q, want client_msg_id", got)
	}

	// Reactions have no client_msg_id; coordinates must still be stable.
	r1 := Event{Type: EventReactionAdded, Channel: "C1", User: "U1", Ts: "5.0", Item: Item{Ts: "4.0"}}
	r2 := Event{Type: EventReactionAdded, Channel: "C1", User: "U1", Ts: "5.0", Item: Item{Ts: "4.0"}}
	if r1.DedupKey() != r2.DedupKey() {
		t.Fatal("identical reactions must share a dedup key")
	}
	other := Event{Type: EventReactionAdded, Channel: "C1", User: "U2", Ts: "5.0", Item: Item{Ts: "4.0"}}
	if r1.DedupKey() == other.DedupKey() {
		t.Fatal("different users must not collide")
	}
}

func TestIsQuestion(t *testing.T) {
	cases := []struct {
		name string
		ev   Event
		want bool
	}{
		{"plain message", Event{Type: EventMessage, Text: "hi"}, true},
		{"app mention", Event{Type: EventAppMention, Text: "hi"}, true},
		{"bot message", Event{Type: EventMessage, Text: "hi", BotID: "B1"}, false},
		{"bot subtype", Event{Type: EventMessage, Text: "hi", Subtype: "bot_message"}, false},
		{"blank text", Event{Type: EventMessage, Text: "   "}, false},
		{"reaction", Event{Type: EventReactionAdded, Reaction: "-1"}, false},
	}
	for _, tc := range cases {
		if got := tc.ev.IsQuestion(); got != tc.want {
			t.Fatalf("%s: IsQuestion = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsDislike(t *testing.T) {
	if !(Event{Type: EventReactionAdded, Reaction: DislikeReaction}).IsDislike() {
		t.Fatal("-1 reaction must be a dislike")
	}
	if (Event{Type: EventReactionAdded, Reaction: "+1"}).IsDislike() {
		t.Fatal("+1 reaction is not a dislike")
	}
	if (Event{Type: EventMessage, Reaction: DislikeReaction}).IsDislike() {
		t.Fatal("message events are never dislikes")
	}
}
