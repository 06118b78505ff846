// Package services – FeedbackLoop
//
// This file implements the dislike→flag and correction→promote lifecycle.
// A dislike reaction quarantines the question/answer pair as a
// FlaggedQuestion; a human correction converts it into a verified knowledge
// document and removes it from the pending set.
//
// Repeated dislikes of the same question fold into one record by
// incrementing its counter instead of inserting duplicates. The original
// behavior created a new record per reaction event; a counter per question is
// what the reviewer dashboard actually needs.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/answerbase/go-knowledge-bot/internal/domain"
	"github.com/answerbase/go-knowledge-bot/internal/index"
	"github.com/answerbase/go-knowledge-bot/internal/observability"
	"github.com/answerbase/go-knowledge-bot/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ThreadMessage is the slice of a transport message the feedback loop needs.
type ThreadMessage struct {
	User      string
	BotID     string
	Text      string
	Timestamp string
	// ThreadTs is the root timestamp of the thread the message belongs to.
	// Empty for unthreaded messages and thread roots.
	ThreadTs string
}

// Messaging is the transport capability the feedback loop depends on.
type Messaging interface {
	// FetchMessage returns the single message at ts.
	FetchMessage(ctx context.Context, channel, ts string) (ThreadMessage, error)

	// FetchThread returns up to limit messages of a thread in posting order.
	// ts must be the thread root timestamp; a child timestamp yields only
	// that child.
	FetchThread(ctx context.Context, channel, ts string, limit int) ([]ThreadMessage, error)
}

// KnowledgeWriter is the mutation capability of the verified index.
type KnowledgeWriter interface {
	Add(ctx context.Context, doc index.Document) error
	Persist() error
}

// FlaggedRepo defines the repository contract required by FeedbackService.
type FlaggedRepo interface {
	CreateFlaggedQuestion(ctx context.Context, db *gorm.DB, question, botResponse string, embedding *string) (*domain.FlaggedQuestion, error)
	GetFlaggedQuestion(ctx context.Context, db *gorm.DB, id uint) (*domain.FlaggedQuestion, error)
	GetPendingByQuestion(ctx context.Context, db *gorm.DB, question string) (*domain.FlaggedQuestion, error)
	ListPending(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.FlaggedQuestion, error)
	CountPending(ctx context.Context, db *gorm.DB) (int64, error)
	IncrementDislike(ctx context.Context, db *gorm.DB, id uint) error
	ReserveDocumentID(ctx context.Context, db *gorm.DB, id uint, docID string) (string, error)
	ResolveFlaggedQuestion(ctx context.Context, db *gorm.DB, id uint) error
}

type gormFlaggedRepo struct{}

func (gormFlaggedRepo) CreateFlaggedQuestion(ctx context.Context, db *gorm.DB, question, botResponse string, embedding *string) (*domain.FlaggedQuestion, error) {
	return repo.CreateFlaggedQuestion(ctx, db, question, botResponse, embedding)
}

func (gormFlaggedRepo) GetFlaggedQuestion(ctx context.Context, db *gorm.DB, id uint) (*domain.FlaggedQuestion, error) {
	return repo.GetFlaggedQuestion(ctx, db, id)
}

func (gormFlaggedRepo) GetPendingByQuestion(ctx context.Context, db *gorm.DB, question string) (*domain.FlaggedQuestion, error) {
	return repo.GetPendingByQuestion(ctx, db, question)
}

func (gormFlaggedRepo) ListPending(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.FlaggedQuestion, error) {
	return repo.ListPending(ctx, db, offset, limit)
}

func (gormFlaggedRepo) CountPending(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountPending(ctx, db)
}

func (gormFlaggedRepo) IncrementDislike(ctx context.Context, db *gorm.DB, id uint) error {
	return repo.IncrementDislike(ctx, db, id)
}

func (gormFlaggedRepo) ReserveDocumentID(ctx context.Context, db *gorm.DB, id uint, docID string) (string, error) {
	return repo.ReserveDocumentID(ctx, db, id, docID)
}

func (gormFlaggedRepo) ResolveFlaggedQuestion(ctx context.Context, db *gorm.DB, id uint) error {
	return repo.ResolveFlaggedQuestion(ctx, db, id)
}

// FeedbackService owns the FlaggedQuestion lifecycle.
type FeedbackService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the flagged-question repository used by this service.
	Repo FlaggedRepo
	// Messaging resolves reacted-to messages to their thread.
	Messaging Messaging
	// Embedder computes the flagged question's embedding (best-effort).
	Embedder index.Embedder
	// Verified receives promoted corrections.
	Verified KnowledgeWriter

	// Invalidate, when set, is called with the corrected question text after
	// a successful promotion so stale memoized replies are dropped.
	Invalidate func(question string)
}

// NewFeedbackService wires the feedback lifecycle over the given
// collaborators.
func NewFeedbackService(db *gorm.DB, msg Messaging, emb index.Embedder, verified KnowledgeWriter) *FeedbackService {
	return &FeedbackService{
		DB:        db,
		Repo:      gormFlaggedRepo{},
		Messaging: msg,
		Embedder:  emb,
		Verified:  verified,
	}
}

// RegisterDislike handles a dislike reaction on a bot reply. It resolves the
// thread behind the reacted-to message, takes its first two messages as the
// (question, answer) pair, and flags that pair. A repeat dislike of a
// question that is already pending increments its counter instead of
// creating a duplicate record.
//
// The reacted-to message is usually the bot's threaded reply, not the thread
// root, so its own timestamp cannot be used to fetch the thread directly.
// The message is looked up first and the thread is read at its root.
//
// The question embedding is best-effort: an embedding failure stores a null
// embedding rather than aborting, so the record still reaches the reviewer
// dashboard (it just cannot participate in similarity matching).
func (s *FeedbackService) RegisterDislike(ctx context.Context, channel, ts string) (*domain.FlaggedQuestion, error) {
	tr := otel.Tracer("services/FeedbackService")
	ctx, span := tr.Start(ctx, "RegisterDislike",
		trace.WithAttributes(
			attribute.String("slack.channel", channel),
			attribute.String("slack.ts", ts),
		),
	)
	defer span.End()

	log := zerolog.Ctx(ctx)

	reacted, err := s.Messaging.FetchMessage(ctx, channel, ts)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch reacted message: %v", ErrRetrieval, err)
	}
	root := reacted.ThreadTs
	if root == "" {
		root = ts
	}

	msgs, err := s.Messaging.FetchThread(ctx, channel, root, 2)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch thread: %v", ErrRetrieval, err)
	}
	if len(msgs) < 2 {
		return nil, ErrThreadTooShort
	}
	question := strings.TrimSpace(msgs[0].Text)
	answer := strings.TrimSpace(msgs[1].Text)
	if question == "" {
		return nil, ErrThreadTooShort
	}

	// Fold into an existing pending record when the same question was
	// already disliked.
	existing, err := s.Repo.GetPendingByQuestion(ctx, s.DB, question)
	switch {
	case err == nil:
		if err := s.Repo.IncrementDislike(ctx, s.DB, existing.ID); err != nil {
			return nil, err
		}
		existing.DislikeCount++
		log.Info().Uint("question_id", existing.ID).Int("dislikes", existing.DislikeCount).Msg("dislike folded into pending record")
		return existing, nil
	case errors.Is(err, repo.ErrNotFound):
		// First dislike for this question, fall through to create.
	default:
		return nil, err
	}

	var embedding *string
	if vec, err := s.Embedder.Embed(ctx, question); err != nil {
		log.Warn().Err(err).Msg("embedding failed, flagging without vector")
	} else if embedding, err = EncodeEmbedding(vec); err != nil {
		log.Warn().Err(err).Msg("embedding encode failed, flagging without vector")
		embedding = nil
	}

	q, err := s.Repo.CreateFlaggedQuestion(ctx, s.DB, question, answer, embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: create flagged question: %v", ErrPersistence, err)
	}
	observability.FlaggedCreated.Inc()
	log.Info().Uint("question_id", q.ID).Bool("embedded", embedding != nil).Msg("question flagged")
	return q, nil
}

// RecordDislike increments the counter of an existing flagged question.
func (s *FeedbackService) RecordDislike(ctx context.Context, id uint) error {
	err := s.Repo.IncrementDislike(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrQuestionNotFound
	}
	return err
}

// Pending returns a page of unresolved flagged questions plus the total
// count, oldest first.
func (s *FeedbackService) Pending(ctx context.Context, offset, limit int) ([]domain.FlaggedQuestion, int64, error) {
	total, err := s.Repo.CountPending(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.FlaggedQuestion{}, 0, nil
	}
	items, err := s.Repo.ListPending(ctx, s.DB, offset, limit)
	return items, total, err
}

// SubmitCorrection promotes a human-corrected answer into the verified index
// and resolves the flagged question. The order of operations is load-bearing:
//
//  1. Reserve a document id on the record (conditional update, so a retry or
//     a concurrent attempt reuses the same id).
//  2. Add the document to the in-memory verified index. Adding an existing
//     id is a no-op, which together with (1) makes retries idempotent.
//  3. Persist the index snapshot. On failure the flagged record stays
//     Pending and the error is surfaced; the caller can retry the whole
//     operation safely.
//  4. Only after a durable snapshot, resolve (remove) the flagged record.
func (s *FeedbackService) SubmitCorrection(ctx context.Context, id uint, correctedText string) error {
	tr := otel.Tracer("services/FeedbackService")
	ctx, span := tr.Start(ctx, "SubmitCorrection",
		trace.WithAttributes(
			attribute.Int("question.id", int(id)),
		),
	)
	defer span.End()

	correctedText = strings.TrimSpace(correctedText)
	if correctedText == "" {
		return ErrEmptyCorrection
	}

	q, err := s.Repo.GetFlaggedQuestion(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrQuestionNotFound
	}
	if err != nil {
		return err
	}

	docID, err := s.Repo.ReserveDocumentID(ctx, s.DB, id, uuid.NewString())
	if err != nil {
		return fmt.Errorf("%w: reserve document id: %v", ErrPersistence, err)
	}

	doc := index.Document{
		ID:        docID,
		Content:   fmt.Sprintf("Q: %s\nA: %s", q.Question, correctedText),
		Origin:    index.OriginHumanVerified,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Verified.Add(ctx, doc); err != nil {
		return fmt.Errorf("%w: add to verified index: %v", ErrPersistence, err)
	}
	if err := s.Verified.Persist(); err != nil {
		// The document is in memory under its reserved id; the record stays
		// Pending so the operation can be retried without duplicating it.
		return fmt.Errorf("%w: persist verified index: %v", ErrPersistence, err)
	}

	if err := s.Repo.ResolveFlaggedQuestion(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// A concurrent attempt resolved it first; the correction is
			// already durable.
			return nil
		}
		return fmt.Errorf("%w: resolve flagged question: %v", ErrPersistence, err)
	}

	if s.Invalidate != nil {
		s.Invalidate(q.Question)
	}
	zerolog.Ctx(ctx).Info().
		Uint("question_id", id).
		Str("document_id", docID).
		Msg("correction promoted to verified index")
	return nil
}
