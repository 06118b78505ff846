package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/answerbase/go-knowledge-bot/internal/domain"
)

func postEvent(t *testing.T, env *testEnv, payload string, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	body := []byte(payload)
	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sign {
		signBody(req, body)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func TestSlackEvents_RejectsUnsignedRequest(t *testing.T) {
	env := newTestEnv(t)

	w := postEvent(t, env, `{"type":"event_callback"}`, false)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Code != ErrCodeSignatureInvalid {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestSlackEvents_URLVerificationEchoesChallenge(t *testing.T) {
	env := newTestEnv(t)

	w := postEvent(t, env, `{"type":"url_verification","challenge":"c0ffee"}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "c0ffee") {
		t.Fatalf("challenge not echoed: %s", w.Body.String())
	}
}

func TestSlackEvents_MessageProducesOneReply(t *testing.T) {
	env := newTestEnv(t)

	payload := `{"type":"event_callback","event":{"type":"message","channel":"C1","user":"U1","text":"what is the refund window?","ts":"100.1","client_msg_id":"abc123"}}`
	w := postEvent(t, env, payload, true)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "accepted") {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	env.waitSends(t, 1)
	if env.messenger.sends[0] != "a helpful answer" {
		t.Fatalf("reply = %q", env.messenger.sends[0])
	}
}

func TestSlackEvents_DuplicateDeliveryYieldsOneReply(t *testing.T) {
	env := newTestEnv(t)

	payload := `{"type":"event_callback","event":{"type":"message","channel":"C1","user":"U1","text":"q","ts":"100.1","client_msg_id":"abc123"}}`

	first := postEvent(t, env, payload, true)
	second := postEvent(t, env, payload, true)

	if !strings.Contains(first.Body.String(), "accepted") {
		t.Fatalf("first delivery: %s", first.Body.String())
	}
	if !strings.Contains(second.Body.String(), "duplicate") {
		t.Fatalf("second delivery: %s", second.Body.String())
	}

	env.waitSends(t, 1)
	// Give a would-be duplicate goroutine time to misbehave.
	time.Sleep(100 * time.Millisecond)
	if n := env.messenger.count(); n != 1 {
		t.Fatalf("replies = %d, want exactly 1", n)
	}
}

func TestSlackEvents_BotMessagesIgnored(t *testing.T) {
	env := newTestEnv(t)

	payload := `{"type":"event_callback","event":{"type":"message","channel":"C1","bot_id":"B9","text":"I am a bot","ts":"7.0"}}`
	w := postEvent(t, env, payload, true)
	if !strings.Contains(w.Body.String(), "ignored") {
		t.Fatalf("bot message not ignored: %s", w.Body.String())
	}
	time.Sleep(50 * time.Millisecond)
	if env.messenger.count() != 0 {
		t.Fatal("bot message must never be answered")
	}
}

func TestSlackEvents_OwnUserEventsIgnored(t *testing.T) {
	env := newTestEnv(t)

	// Events authored by the bot's own user id carry no bot_id, so the user
	// check is what prevents the bot from answering itself.
	payload := `{"type":"event_callback","event":{"type":"message","channel":"C1","user":"UBOT","text":"echo?","ts":"8.0"}}`
	w := postEvent(t, env, payload, true)
	if !strings.Contains(w.Body.String(), "ignored") {
		t.Fatalf("own message not ignored: %s", w.Body.String())
	}
	time.Sleep(50 * time.Millisecond)
	if env.messenger.count() != 0 {
		t.Fatal("bot must never answer its own messages")
	}
}

func TestSlackEvents_OwnUserDislikeIgnored(t *testing.T) {
	env := newTestEnv(t)

	payload := `{"type":"event_callback","event":{"type":"reaction_added","reaction":"-1","user":"UBOT","ts":"9.0","item":{"type":"message","channel":"C1","ts":"2.0"}}}`
	w := postEvent(t, env, payload, true)
	if !strings.Contains(w.Body.String(), "ignored") {
		t.Fatalf("own reaction not ignored: %s", w.Body.String())
	}

	time.Sleep(50 * time.Millisecond)
	var n int64
	env.db.Model(&domain.FlaggedQuestion{}).Count(&n)
	if n != 0 {
		t.Fatalf("own reaction created a flag, count=%d", n)
	}
}

func TestSlackEvents_DislikeReactionFlagsQuestion(t *testing.T) {
	env := newTestEnv(t)

	// The reaction item carries the bot reply's own ts ("2.0"), not the
	// thread root; the pipeline must resolve the root before reading the
	// thread.
	payload := `{"type":"event_callback","event":{"type":"reaction_added","reaction":"-1","user":"U2","ts":"9.0","item":{"type":"message","channel":"C1","ts":"2.0"}}}`
	w := postEvent(t, env, payload, true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	// The flag is written asynchronously; poll briefly.
	deadline := time.Now().Add(3 * time.Second)
	for {
		var n int64
		env.db.Model(&domain.FlaggedQuestion{}).Where("is_answered = ?", false).Count(&n)
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("flagged question not created, pending=%d", n)
		}
		time.Sleep(20 * time.Millisecond)
	}

	var q domain.FlaggedQuestion
	if err := env.db.First(&q).Error; err != nil {
		t.Fatalf("load flagged: %v", err)
	}
	if q.Question != "What is the refund window?" || q.DislikeCount != 1 || q.Embedding == nil {
		t.Fatalf("unexpected flagged record: %+v", q)
	}
}

func TestSlackEvents_OtherReactionIgnored(t *testing.T) {
	env := newTestEnv(t)

	payload := `{"type":"event_callback","event":{"type":"reaction_added","reaction":"+1","user":"U2","ts":"9.0","item":{"type":"message","channel":"C1","ts":"2.0"}}}`
	postEvent(t, env, payload, true)

	time.Sleep(50 * time.Millisecond)
	var n int64
	env.db.Model(&domain.FlaggedQuestion{}).Count(&n)
	if n != 0 {
		t.Fatalf("+1 reaction created a flag, count=%d", n)
	}
}

func TestSlackEvents_MalformedJSON(t *testing.T) {
	env := newTestEnv(t)

	w := postEvent(t, env, `{not json`, true)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
