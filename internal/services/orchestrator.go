// Package services – RetrievalOrchestrator
//
// This file implements the answer pipeline: refusal checks, history window,
// dual-index retrieval, context assembly with verified-over-general priority,
// a single generation call, and the post-processing of the model output.
//
// The orchestrator never propagates retrieval or generation failures to its
// caller. Every failure is converted into a user-visible apology so the
// messaging transport always has something acknowledgeable to send. Failures
// are still logged with their kind via the context logger.
package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/answerbase/go-knowledge-bot/internal/cache"
	"github.com/answerbase/go-knowledge-bot/internal/domain"
	"github.com/answerbase/go-knowledge-bot/internal/index"
	"github.com/answerbase/go-knowledge-bot/internal/observability"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Fixed user-facing strings. The dashboard relies on the refusal texts being
// stable, so treat them as part of the interface.
const (
	// RefusalFlagged is returned when the classifier marks the question as
	// concerning previously flagged content.
	RefusalFlagged = "This question relates to content that was flagged as incorrect. A reviewed answer is pending; please check back once it has been corrected."

	// RefusalSimilar is returned when the question is semantically close to a
	// pending flagged question.
	RefusalSimilar = "A very similar question was recently flagged for review. I'd rather not repeat an answer that may be wrong; please check back once it has been corrected."
)

// thinkTags matches internal reasoning delimiters some models emit.
var thinkTags = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Searcher is the retrieval capability of a knowledge index.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]index.Result, error)
}

// Classifier is the flagged-content check used before retrieval.
type Classifier interface {
	IsFlagged(ctx context.Context, text string) (bool, error)
}

// Matcher finds pending flagged questions semantically close to a query.
type Matcher interface {
	FindSimilar(ctx context.Context, text string) ([]Match, error)
}

// Historian supplies the recent-exchange window and records completed
// exchanges.
type Historian interface {
	Recent(ctx context.Context, threadID string) ([]domain.Exchange, error)
	Append(ctx context.Context, threadID, question, answer string) error
}

// Orchestrator answers questions using both knowledge indexes and the
// conversation history of the thread.
type Orchestrator struct {
	Classifier Classifier
	Matcher    Matcher
	History    Historian
	Verified   Searcher
	General    Searcher
	Gen        Generator

	// Responses memoizes answers by exact question text. Nil disables
	// memoization.
	Responses *cache.TTL[string]

	// K is the number of documents retrieved per index.
	K int
}

// NewOrchestrator wires the pipeline with the default two-documents-per-index
// retrieval depth.
func NewOrchestrator(cl Classifier, m Matcher, h Historian, verified, general Searcher, gen Generator, responses *cache.TTL[string]) *Orchestrator {
	return &Orchestrator{
		Classifier: cl,
		Matcher:    m,
		History:    h,
		Verified:   verified,
		General:    general,
		Gen:        gen,
		Responses:  responses,
		K:          2,
	}
}

// Answer produces the reply for text in the given thread. It never returns
// an error to the caller: refusals and apologies are replies too.
func (o *Orchestrator) Answer(ctx context.Context, text, threadID string) string {
	tr := otel.Tracer("services/Orchestrator")
	ctx, span := tr.Start(ctx, "Answer",
		trace.WithAttributes(
			attribute.String("thread.id", threadID),
		),
	)
	defer span.End()

	log := zerolog.Ctx(ctx)
	start := time.Now()

	text = strings.TrimSpace(text)
	if text == "" {
		return "I didn't catch a question there. Could you rephrase?"
	}

	if o.Responses != nil {
		if cached, ok := o.Responses.Get(text); ok {
			observability.CacheHits.WithLabelValues("response").Inc()
			log.Debug().Str("thread_id", threadID).Msg("response cache hit")
			return cached
		}
		observability.CacheMisses.WithLabelValues("response").Inc()
	}

	// Refusal gate 1: the classifier says this is about flagged content.
	// Classification failures degrade to not-flagged.
	flagged, err := o.Classifier.IsFlagged(ctx, text)
	if err != nil {
		log.Warn().Err(err).Msg("classifier failed, treating as not flagged")
	}
	if flagged {
		return RefusalFlagged
	}

	// Refusal gate 2: the question is close to a pending flagged question.
	// A matcher failure is a retrieval failure and refuses nothing.
	matches, err := o.Matcher.FindSimilar(ctx, text)
	if err != nil {
		log.Warn().Err(err).Msg("similarity scan failed, skipping flagged-content gate")
	} else if len(matches) > 0 {
		log.Info().
			Str("thread_id", threadID).
			Int("matches", len(matches)).
			Float64("top_score", matches[0].Score).
			Msg("question matches pending flagged content")
		return RefusalSimilar
	}

	history, err := o.History.Recent(ctx, threadID)
	if err != nil {
		// History is best-effort context; answer without it.
		log.Warn().Err(err).Str("thread_id", threadID).Msg("history read failed")
		history = nil
	}

	k := o.K
	if k <= 0 {
		k = 2
	}
	verified, err := o.Verified.Search(ctx, text, k)
	if err != nil {
		return o.apologize(log, threadID, fmt.Errorf("%w: verified index: %v", ErrRetrieval, err))
	}
	general, err := o.General.Search(ctx, text, k)
	if err != nil {
		return o.apologize(log, threadID, fmt.Errorf("%w: general index: %v", ErrRetrieval, err))
	}

	prompt := buildPrompt(text, history, verified, general)
	raw, err := o.Gen.Generate(ctx, prompt)
	if err != nil {
		return o.apologize(log, threadID, fmt.Errorf("%w: %v", ErrGeneration, err))
	}
	reply := strings.TrimSpace(thinkTags.ReplaceAllString(raw, ""))
	if reply == "" {
		return o.apologize(log, threadID, fmt.Errorf("%w: model returned only internal reasoning", ErrGeneration))
	}

	if err := o.History.Append(ctx, threadID, text, reply); err != nil {
		// The reply is already produced; losing one log entry is preferable
		// to failing the exchange.
		log.Error().Err(err).Str("thread_id", threadID).Msg("exchange append failed")
	}
	if o.Responses != nil {
		o.Responses.Set(text, reply)
	}

	log.Info().
		Str("thread_id", threadID).
		Int("verified_docs", len(verified)).
		Int("general_docs", len(general)).
		Dur("elapsed", time.Since(start)).
		Msg("answer produced")
	return reply
}

// apologize logs the swallowed failure and returns the user-visible apology
// carrying its description.
func (o *Orchestrator) apologize(log *zerolog.Logger, threadID string, err error) string {
	log.Error().Err(err).Str("thread_id", threadID).Msg("answer pipeline failed")
	return fmt.Sprintf("Sorry, I couldn't answer that right now (%v). Please try again in a moment.", err)
}

// buildPrompt assembles the generation context. The three labeled sections
// appear in fixed order: conversation history, verified knowledge, general
// knowledge. The instructions give verified content precedence whenever both
// knowledge sections are relevant.
func buildPrompt(question string, history []domain.Exchange, verified, general []index.Result) string {
	var b strings.Builder
	b.WriteString("You are a helpful knowledge assistant for this workspace.\n")
	b.WriteString("Use the context sections below to answer the question.\n")
	b.WriteString("VERIFIED KNOWLEDGE is human-reviewed and always takes precedence over GENERAL KNOWLEDGE when both cover the same point.\n")
	b.WriteString("If verified knowledge is absent, fall back to general knowledge. If neither is relevant, say so and answer from your own knowledge.\n")

	b.WriteString("\n## CONVERSATION HISTORY\n")
	if len(history) == 0 {
		b.WriteString("(none)\n")
	}
	for _, e := range history {
		b.WriteString("User: ")
		b.WriteString(e.Question)
		b.WriteString("\nAssistant: ")
		b.WriteString(e.Answer)
		b.WriteString("\n")
	}

	writeDocs := func(title string, docs []index.Result) {
		b.WriteString("\n## ")
		b.WriteString(title)
		b.WriteString("\n")
		if len(docs) == 0 {
			b.WriteString("(none)\n")
			return
		}
		for i, d := range docs {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, d.Document.Content)
		}
	}
	writeDocs("VERIFIED KNOWLEDGE", verified)
	writeDocs("GENERAL KNOWLEDGE", general)

	b.WriteString("\n## QUESTION\n")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
