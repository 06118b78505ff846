// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// FlaggedQuestion model.
//
// The repository follows a "thin" approach: it performs persistence and simple
// query composition, leaving the feedback lifecycle rules to the services
// package.
//
// Error semantics:
//   - When a flagged question is missing, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - On other DB errors (connectivity, constraints, etc.), the raw gorm
//     error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/answerbase/go-knowledge-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateFlaggedQuestion inserts a new pending flagged question. The embedding
// may be nil when the embedding call failed at flag time.
func CreateFlaggedQuestion(ctx context.Context, db *gorm.DB, question, botResponse string, embedding *string) (*domain.FlaggedQuestion, error) {
	q := &domain.FlaggedQuestion{
		Question:     question,
		BotResponse:  botResponse,
		Embedding:    embedding,
		DislikeCount: 1,
		IsAnswered:   false,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(q).Error; err != nil {
		return nil, err
	}
	return q, nil
}

// GetFlaggedQuestion fetches a flagged question by ID, or ErrNotFound.
func GetFlaggedQuestion(ctx context.Context, db *gorm.DB, id uint) (*domain.FlaggedQuestion, error) {
	var q domain.FlaggedQuestion
	if err := db.WithContext(ctx).Where("id = ?", id).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// GetPendingByQuestion returns the pending flagged record matching the exact
// question text, or ErrNotFound. Used to fold repeated dislikes of the same
// message into one record instead of inserting duplicates.
func GetPendingByQuestion(ctx context.Context, db *gorm.DB, question string) (*domain.FlaggedQuestion, error) {
	var q domain.FlaggedQuestion
	err := db.WithContext(ctx).
		Where("question = ? AND is_answered = ?", question, false).
		Order("created_at ASC").
		First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListPending returns pending flagged questions ordered oldest-first.
func ListPending(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.FlaggedQuestion, error) {
	var out []domain.FlaggedQuestion
	q := db.WithContext(ctx).
		Where("is_answered = ?", false).
		Order("created_at ASC, id ASC")
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountPending returns the total number of pending flagged questions.
func CountPending(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.FlaggedQuestion{}).
		Where("is_answered = ?", false).
		Count(&total).Error
	return total, err
}

// ListEmbedded returns all pending flagged questions that carry an embedding.
// The similarity matcher scans this set linearly; acceptable at low-thousands
// scale (documented scalability boundary).
func ListEmbedded(ctx context.Context, db *gorm.DB) ([]domain.FlaggedQuestion, error) {
	var out []domain.FlaggedQuestion
	err := db.WithContext(ctx).
		Where("embedding IS NOT NULL AND is_answered = ?", false).
		Find(&out).Error
	return out, err
}

// IncrementDislike bumps the dislike counter of an existing record.
// Returns ErrNotFound if no row was updated.
func IncrementDislike(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).
		Model(&domain.FlaggedQuestion{}).
		Where("id = ?", id).
		UpdateColumn("dislike_count", gorm.Expr("dislike_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReserveDocumentID stores the pre-generated knowledge document UUID on the
// record if none is reserved yet, and returns the id in effect. Running the
// reservation as a conditional update keeps concurrent correction attempts
// from minting two identifiers for the same question.
func ReserveDocumentID(ctx context.Context, db *gorm.DB, id uint, docID string) (string, error) {
	res := db.WithContext(ctx).
		Model(&domain.FlaggedQuestion{}).
		Where("id = ? AND (document_id = '' OR document_id IS NULL)", id).
		Update("document_id", docID)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 1 {
		return docID, nil
	}
	// Someone reserved before us (or a prior attempt did); read it back.
	q, err := GetFlaggedQuestion(ctx, db, id)
	if err != nil {
		return "", err
	}
	if q.DocumentID == "" {
		return "", errors.New("document id reservation raced and left no id")
	}
	return q.DocumentID, nil
}

// ResolveFlaggedQuestion marks the record answered and soft-deletes it,
// removing it from the pending set. The false→true transition happens at most
// once; callers invoke this only after the correction has been durably stored.
func ResolveFlaggedQuestion(ctx context.Context, db *gorm.DB, id uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.FlaggedQuestion{}).
			Where("id = ? AND is_answered = ?", id, false).
			Update("is_answered", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Delete(&domain.FlaggedQuestion{}, id).Error
	})
}
