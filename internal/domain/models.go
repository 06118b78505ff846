// Package domain defines the persistence models for the feedback subsystem:
// flagged questions awaiting human correction and the per-thread exchange log.
// These types are mapped with GORM and shared across the repository and
// service layers.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// FlaggedQuestion is a question quarantined after negative feedback, pending
// a human-supplied correction. While pending it blocks semantically similar
// questions from being answered; on correction it is converted into a
// verified knowledge document and removed.
//
// Fields:
//   - ID: auto-increment primary key, referenced by the correction API.
//   - Question: the disliked user question, verbatim.
//   - BotResponse: the reply that drew the dislike (optional).
//   - Embedding: JSON-encoded float vector of the question; null when the
//     embedding call failed at flag time (best-effort).
//   - DocumentID: UUID reserved for the knowledge document a correction will
//     produce. Written before any index mutation so a failed persist can be
//     retried without minting a second identifier.
//   - DislikeCount: number of dislikes recorded against this question (>= 1).
//   - IsAnswered: false while pending; flips to true exactly once.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type FlaggedQuestion struct {
	ID           uint           `json:"id"            gorm:"primaryKey;autoIncrement"`
	Question     string         `json:"question"      gorm:"type:text;not null"`
	BotResponse  string         `json:"bot_response"  gorm:"type:text"`
	Embedding    *string        `json:"-"             gorm:"type:text"`
	DocumentID   string         `json:"-"             gorm:"type:char(36);default:''"`
	DislikeCount int            `json:"dislike_count" gorm:"not null;default:1"`
	IsAnswered   bool           `json:"is_answered"   gorm:"not null;default:false;index"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"             gorm:"index"`
}

// TableName returns the database table name for FlaggedQuestion.
func (FlaggedQuestion) TableName() string { return "flagged_questions" }

// Exchange is one human/assistant message pair within a conversation thread.
// Rows are append-only and immutable once written; the thread key is the
// Slack thread timestamp (or the message timestamp for unthreaded messages).
//
// Fields:
//   - ID: auto-increment primary key. Monotonic per insert, so it doubles as
//     the tiebreaker when two appends land on the same timestamp.
//   - ThreadID: conversation key; indexed so the read window (last N
//     exchanges) is a single index scan.
//   - Question / Answer: the pair, verbatim.
//   - CreatedAt: completion time of the generating request. Appends within a
//     thread are ordered by this value, not by arrival time.
type Exchange struct {
	ID        uint64    `json:"id"        gorm:"primaryKey;autoIncrement"`
	ThreadID  string    `json:"thread_id" gorm:"type:varchar(64);not null;index:idx_thread_exchanges,priority:1"`
	Question  string    `json:"question"  gorm:"type:text;not null"`
	Answer    string    `json:"answer"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_thread_exchanges,priority:2"`
}

// TableName returns the database table name for Exchange.
func (Exchange) TableName() string { return "exchanges" }
