// Package services – ConversationStore
//
// This file implements the per-thread exchange log used for context assembly.
// The log is append-only and grows unbounded; readers consume a bounded
// window of the most recent exchanges.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/answerbase/go-knowledge-bot/internal/domain"
	"github.com/answerbase/go-knowledge-bot/internal/repo"
)

// ConversationRepo defines the repository contract required by
// ConversationStore.
type ConversationRepo interface {
	// AppendExchange inserts a question/answer pair for a thread.
	AppendExchange(ctx context.Context, db *gorm.DB, threadID, question, answer string) (*domain.Exchange, error)

	// ListExchanges returns the full exchange log for a thread in
	// chronological order.
	ListExchanges(ctx context.Context, db *gorm.DB, threadID string) ([]domain.Exchange, error)

	// LastExchanges returns up to limit most recent exchanges in
	// chronological order.
	LastExchanges(ctx context.Context, db *gorm.DB, threadID string, limit int) ([]domain.Exchange, error)
}

// gormConversationRepo adapts the free functions in repo to ConversationRepo.
type gormConversationRepo struct{}

func (gormConversationRepo) AppendExchange(ctx context.Context, db *gorm.DB, threadID, question, answer string) (*domain.Exchange, error) {
	return repo.AppendExchange(ctx, db, threadID, question, answer)
}

func (gormConversationRepo) ListExchanges(ctx context.Context, db *gorm.DB, threadID string) ([]domain.Exchange, error) {
	return repo.ListExchanges(ctx, db, threadID)
}

func (gormConversationRepo) LastExchanges(ctx context.Context, db *gorm.DB, threadID string, limit int) ([]domain.Exchange, error) {
	return repo.LastExchanges(ctx, db, threadID, limit)
}

// ConversationStore provides read and append access to per-thread history.
type ConversationStore struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the conversation repository used by this store.
	Repo ConversationRepo
	// Window is the number of most recent exchanges served to the
	// orchestrator for context assembly.
	Window int
}

// NewConversationStore constructs a ConversationStore with the default
// five-exchange context window.
func NewConversationStore(db *gorm.DB) *ConversationStore {
	return &ConversationStore{DB: db, Repo: gormConversationRepo{}, Window: 5}
}

// History returns the full exchange log for a thread. Unknown threads yield
// an empty slice.
func (s *ConversationStore) History(ctx context.Context, threadID string) ([]domain.Exchange, error) {
	return s.Repo.ListExchanges(ctx, s.DB, threadID)
}

// Recent returns the context window for a thread: the last Window exchanges
// in chronological order. This is the only history read the orchestrator
// performs; the log itself is never truncated.
func (s *ConversationStore) Recent(ctx context.Context, threadID string) ([]domain.Exchange, error) {
	w := s.Window
	if w <= 0 {
		w = 5
	}
	return s.Repo.LastExchanges(ctx, s.DB, threadID, w)
}

// Append records a completed question/answer pair. Appends are not
// idempotent: retrying a completed append duplicates the entry. Concurrent
// messages in the same thread are appended in completion order, not arrival
// order.
func (s *ConversationStore) Append(ctx context.Context, threadID, question, answer string) error {
	_, err := s.Repo.AppendExchange(ctx, s.DB, threadID, question, answer)
	return err
}

// WindowOf is a pure read-side transform returning the last k entries of
// history in order. It never mutates storage.
func WindowOf(history []domain.Exchange, k int) []domain.Exchange {
	if k <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) <= k {
		return history
	}
	return history[len(history)-k:]
}
