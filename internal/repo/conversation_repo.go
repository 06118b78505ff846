// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Exchange
// model (per-thread conversation log).
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/answerbase/go-knowledge-bot/internal/domain"
)

// AppendExchange inserts a question/answer pair for a thread. Appends are not
// idempotent: repeated calls with identical content create duplicate rows.
func AppendExchange(ctx context.Context, db *gorm.DB, threadID, question, answer string) (*domain.Exchange, error) {
	e := &domain.Exchange{
		ThreadID:  threadID,
		Question:  question,
		Answer:    answer,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// ListExchanges returns the full exchange log for a thread ordered
// deterministically (CreatedAt ASC, ID ASC). Unknown threads yield an empty
// slice, not an error.
func ListExchanges(ctx context.Context, db *gorm.DB, threadID string) ([]domain.Exchange, error) {
	var out []domain.Exchange
	err := db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// LastExchanges returns up to limit most recent exchanges for a thread in
// chronological order. This is the read window used for context assembly;
// the log itself grows unbounded.
func LastExchanges(ctx context.Context, db *gorm.DB, threadID string, limit int) ([]domain.Exchange, error) {
	if limit <= 0 {
		return []domain.Exchange{}, nil
	}
	var out []domain.Exchange
	err := db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountExchanges uses a raw COUNT so a missing table surfaces as an error.
func CountExchanges(ctx context.Context, db *gorm.DB, threadID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM exchanges WHERE thread_id = ?", threadID).
		Scan(&total).Error
	return total, err
}
