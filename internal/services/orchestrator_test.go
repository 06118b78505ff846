package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/answerbase/go-knowledge-bot/internal/cache"
	"github.com/answerbase/go-knowledge-bot/internal/domain"
	"github.com/answerbase/go-knowledge-bot/internal/index"
	"github.com/answerbase/go-knowledge-bot/internal/observability"
)

// fakeClassifier returns a fixed verdict.
type fakeClassifier struct {
	flagged bool
	err     error
}

func (f *fakeClassifier) IsFlagged(context.Context, string) (bool, error) {
	return f.flagged, f.err
}

// fakeMatcher returns fixed matches.
type fakeMatcher struct {
	matches []Match
	err     error
}

func (f *fakeMatcher) FindSimilar(context.Context, string) ([]Match, error) {
	return f.matches, f.err
}

// fakeHistorian serves canned history and records appends.
type fakeHistorian struct {
	history   []domain.Exchange
	appends   [][2]string
	appendErr error
}

func (f *fakeHistorian) Recent(context.Context, string) ([]domain.Exchange, error) {
	return f.history, nil
}

func (f *fakeHistorian) Append(_ context.Context, _, q, a string) error {
	f.appends = append(f.appends, [2]string{q, a})
	return f.appendErr
}

func doc(id, content string, origin index.Origin) index.Result {
	return index.Result{Document: index.Document{ID: id, Content: content, Origin: origin}, Score: 0.9}
}

func newTestOrchestrator(gen *fakeGen) (*Orchestrator, *fakeHistorian) {
	h := &fakeHistorian{}
	o := NewOrchestrator(
		&fakeClassifier{},
		&fakeMatcher{},
		h,
		&fakeSearcher{results: []index.Result{doc("v1", "verified refund policy", index.OriginHumanVerified)}},
		&fakeSearcher{results: []index.Result{doc("g1", "general refund chatter", index.OriginAIGenerated)}},
		gen,
		nil,
	)
	return o, h
}

func TestAnswer_HappyPathAppendsExchange(t *testing.T) {
	gen := &fakeGen{out: "the answer"}
	o, h := newTestOrchestrator(gen)

	reply := o.Answer(context.Background(), "what is the refund window?", "thr-1")
	if reply != "the answer" {
		t.Fatalf("reply = %q", reply)
	}
	if len(h.appends) != 1 || h.appends[0][0] != "what is the refund window?" || h.appends[0][1] != "the answer" {
		t.Fatalf("exchange not appended: %+v", h.appends)
	}
}

func TestAnswer_ContextPlacesVerifiedBeforeGeneral(t *testing.T) {
	gen := &fakeGen{out: "ok"}
	o, _ := newTestOrchestrator(gen)
	o.History.(*fakeHistorian).history = []domain.Exchange{{Question: "earlier q", Answer: "earlier a"}}

	o.Answer(context.Background(), "q", "thr")

	if len(gen.prompts) != 1 {
		t.Fatalf("generation calls = %d, want 1", len(gen.prompts))
	}
	prompt := gen.prompts[0]

	hist := strings.Index(prompt, "earlier q")
	verified := strings.Index(prompt, "verified refund policy")
	general := strings.Index(prompt, "general refund chatter")
	if hist < 0 || verified < 0 || general < 0 {
		t.Fatalf("context section missing:\n%s", prompt)
	}
	if !(hist < verified && verified < general) {
		t.Fatalf("section order wrong: history=%d verified=%d general=%d", hist, verified, general)
	}
	if !strings.Contains(prompt, "precedence") {
		t.Fatal("prompt lacks the verified-precedence instruction")
	}
}

func TestAnswer_FlaggedRefusal(t *testing.T) {
	gen := &fakeGen{out: "should not run"}
	o, h := newTestOrchestrator(gen)
	o.Classifier = &fakeClassifier{flagged: true}

	reply := o.Answer(context.Background(), "q", "thr")
	if reply != RefusalFlagged {
		t.Fatalf("reply = %q, want flagged refusal", reply)
	}
	if len(h.appends) != 0 {
		t.Fatal("refusal must not be appended to history")
	}
}

func TestAnswer_SimilarRefusal(t *testing.T) {
	gen := &fakeGen{out: "should not run"}
	o, _ := newTestOrchestrator(gen)
	o.Matcher = &fakeMatcher{matches: []Match{{Score: 0.95}}}

	if reply := o.Answer(context.Background(), "q", "thr"); reply != RefusalSimilar {
		t.Fatalf("reply = %q, want similar refusal", reply)
	}
	// Retrieval and generation must not have run.
	if len(gen.prompts) != 0 {
		t.Fatal("generation ran despite refusal")
	}
}

func TestAnswer_ClassifierFailureDegradesToAnswering(t *testing.T) {
	gen := &fakeGen{out: "answered anyway"}
	o, _ := newTestOrchestrator(gen)
	o.Classifier = &fakeClassifier{err: errors.New("classifier down")}

	if reply := o.Answer(context.Background(), "q", "thr"); reply != "answered anyway" {
		t.Fatalf("reply = %q; classifier outage must fail open", reply)
	}
}

func TestAnswer_GenerationFailureBecomesApology(t *testing.T) {
	gen := &fakeGen{err: errors.New("model exploded")}
	o, h := newTestOrchestrator(gen)

	reply := o.Answer(context.Background(), "q", "thr")
	if !strings.Contains(reply, "Sorry") || !strings.Contains(reply, "generation failure") {
		t.Fatalf("apology missing error description: %q", reply)
	}
	if len(h.appends) != 0 {
		t.Fatal("failed exchange must not be appended")
	}
}

func TestAnswer_RetrievalFailureBecomesApology(t *testing.T) {
	gen := &fakeGen{out: "never"}
	o, _ := newTestOrchestrator(gen)
	o.Verified = &fakeSearcher{err: errors.New("index corrupt")}

	reply := o.Answer(context.Background(), "q", "thr")
	if !strings.Contains(reply, "Sorry") || !strings.Contains(reply, "retrieval failure") {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestAnswer_StripsThinkTags(t *testing.T) {
	gen := &fakeGen{out: "<think>private reasoning\nmore</think>  visible answer"}
	o, _ := newTestOrchestrator(gen)

	reply := o.Answer(context.Background(), "q", "thr")
	if reply != "visible answer" {
		t.Fatalf("reply = %q", reply)
	}
}

func TestAnswer_ResponseCacheHitSkipsPipeline(t *testing.T) {
	gen := &fakeGen{out: "fresh"}
	o, h := newTestOrchestrator(gen)
	o.Responses = cache.NewTTL[string](10, time.Hour)

	first := o.Answer(context.Background(), "cached q", "thr")
	second := o.Answer(context.Background(), "cached q", "thr")

	if first != "fresh" || second != "fresh" {
		t.Fatalf("replies: %q, %q", first, second)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("generation calls = %d, want 1 (second served from cache)", len(gen.prompts))
	}
	if len(h.appends) != 1 {
		t.Fatalf("appends = %d, want 1", len(h.appends))
	}
}

func TestAnswer_ResponseCacheCountersTrackHitsAndMisses(t *testing.T) {
	gen := &fakeGen{out: "fresh"}
	o, _ := newTestOrchestrator(gen)
	o.Responses = cache.NewTTL[string](10, time.Hour)

	hits := observability.CacheHits.WithLabelValues("response")
	misses := observability.CacheMisses.WithLabelValues("response")
	hitsBefore := testutil.ToFloat64(hits)
	missesBefore := testutil.ToFloat64(misses)

	o.Answer(context.Background(), "counted q", "thr")
	o.Answer(context.Background(), "counted q", "thr")

	if got := testutil.ToFloat64(misses) - missesBefore; got != 1 {
		t.Fatalf("cache_misses_total{cache=response} advanced by %v, want 1", got)
	}
	if got := testutil.ToFloat64(hits) - hitsBefore; got != 1 {
		t.Fatalf("cache_hits_total{cache=response} advanced by %v, want 1", got)
	}
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	gen := &fakeGen{out: "never"}
	o, _ := newTestOrchestrator(gen)

	reply := o.Answer(context.Background(), "   ", "thr")
	if len(gen.prompts) != 0 {
		t.Fatal("empty question must not reach generation")
	}
	if reply == "" {
		t.Fatal("empty question still needs a reply")
	}
}
