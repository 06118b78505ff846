package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/answerbase/go-knowledge-bot/internal/domain"
	"github.com/answerbase/go-knowledge-bot/internal/index"
	"github.com/answerbase/go-knowledge-bot/internal/services"
)

const testSigningSecret = "test-signing-secret"

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("handlers_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.FlaggedQuestion{}, &domain.Exchange{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// recordingMessenger counts sends and signals each one.
type recordingMessenger struct {
	mu    sync.Mutex
	sends []string
	ch    chan struct{}
}

func newRecordingMessenger() *recordingMessenger {
	return &recordingMessenger{ch: make(chan struct{}, 16)}
}

func (m *recordingMessenger) Send(_ context.Context, _, _, text string) error {
	m.mu.Lock()
	m.sends = append(m.sends, text)
	m.mu.Unlock()
	m.ch <- struct{}{}
	return nil
}

func (m *recordingMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sends)
}

// staticGen answers every generation with a fixed string.
type staticGen struct{ out string }

func (g staticGen) Generate(context.Context, string) (string, error) { return g.out, nil }

// vecEmbedder returns a constant vector.
type vecEmbedder struct{}

func (vecEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

// memIndex is a minimal in-memory Searcher + importer.Writer.
type memIndex struct {
	mu   sync.Mutex
	docs map[string]index.Document
}

func newMemIndex() *memIndex { return &memIndex{docs: map[string]index.Document{}} }

func (m *memIndex) Add(_ context.Context, doc index.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; !ok {
		m.docs[doc.ID] = doc
	}
	return nil
}

func (m *memIndex) Persist() error { return nil }

func (m *memIndex) Search(context.Context, string, int) ([]index.Result, error) {
	return nil, nil
}

// threadMessaging serves one canned thread with Slack's lookup rules: the
// full thread comes back only for its root timestamp.
type threadMessaging struct{ msgs []services.ThreadMessage }

func (f threadMessaging) FetchMessage(_ context.Context, _, ts string) (services.ThreadMessage, error) {
	for _, m := range f.msgs {
		if m.Timestamp == ts {
			return m, nil
		}
	}
	return services.ThreadMessage{}, fmt.Errorf("message %s not found", ts)
}

func (f threadMessaging) FetchThread(_ context.Context, _, ts string, _ int) ([]services.ThreadMessage, error) {
	if len(f.msgs) == 0 || ts != f.msgs[0].Timestamp {
		for _, m := range f.msgs {
			if m.Timestamp == ts {
				return []services.ThreadMessage{m}, nil
			}
		}
		return nil, nil
	}
	return f.msgs, nil
}

type testEnv struct {
	router    *gin.Engine
	messenger *recordingMessenger
	db        *gorm.DB
	verified  *memIndex
	general   *memIndex
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	verified := newMemIndex()
	general := newMemIndex()
	messenger := newRecordingMessenger()

	conv := services.NewConversationStore(db)
	matcher := services.NewSimilarityMatcher(db, vecEmbedder{})
	matcher.Threshold = 1.1 // nothing matches; refusal paths are tested in services
	classifier := services.NewFlagClassifier(staticGen{out: "0"})
	orch := services.NewOrchestrator(classifier, matcher, conv, verified, general, staticGen{out: "a helpful answer"}, nil)

	feedback := services.NewFeedbackService(db, threadMessaging{msgs: []services.ThreadMessage{
		{User: "U1", Text: "What is the refund window?", Timestamp: "1.0"},
		{BotID: "B1", Text: "30 days", Timestamp: "2.0", ThreadTs: "1.0"},
	}}, vecEmbedder{}, verified)

	h := New(services.NewDedupGuard(1000, time.Hour), orch, feedback, messenger, general, testSigningSecret, 5*time.Minute)
	h.EventTimeout = 5 * time.Second
	h.BotUser = "UBOT"

	r := gin.New()
	r.POST("/slack/events", h.SlackEvents)
	r.GET("/api/v1/questions", h.ListQuestions)
	r.POST("/api/v1/questions/:id/answer", h.SubmitAnswer)
	r.POST("/api/v1/questions/:id/dislike", h.Dislike)
	r.POST("/api/v1/knowledge/import", h.ImportKnowledge)

	return &testEnv{router: r, messenger: messenger, db: db, verified: verified, general: general}
}

// signBody produces the Slack signature headers for body.
func signBody(req *http.Request, body []byte) {
	ts := time.Now().Unix()
	base := fmt.Sprintf("v0:%d:%s", ts, body)
	mac := hmac.New(sha256.New, []byte(testSigningSecret))
	mac.Write([]byte(base))
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
}

// waitSends blocks until the messenger delivered n sends or the deadline hits.
func (e *testEnv) waitSends(t *testing.T, n int) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-e.messenger.ch:
		case <-deadline:
			t.Fatalf("timed out waiting for send %d/%d", i+1, n)
		}
	}
}
