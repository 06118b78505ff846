// Package services defines the business logic of the knowledge bot: message
// deduplication, conversation history, flagged-content matching, retrieval
// orchestration, and the dislike/correction feedback lifecycle.
//
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers. Translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import "errors"

// Feedback-related errors.
var (
	// ErrQuestionNotFound indicates that the addressed flagged question does
	// not exist or has already been resolved.
	ErrQuestionNotFound = errors.New("flagged question not found")

	// ErrEmptyCorrection is returned when a correction submission contains a
	// blank corrected answer.
	ErrEmptyCorrection = errors.New("corrected answer is empty")

	// ErrThreadTooShort is returned when a disliked thread does not contain a
	// question/answer pair to flag.
	ErrThreadTooShort = errors.New("thread has no question/answer pair")
)

// Failure kinds. Services wrap provider and storage errors with one of these
// so callers can branch on the kind of failure instead of its text.
var (
	// ErrClassification marks a flag-classifier capability failure.
	ErrClassification = errors.New("classification failure")

	// ErrRetrieval marks a failure while embedding a query or searching the
	// knowledge indexes.
	ErrRetrieval = errors.New("retrieval failure")

	// ErrGeneration marks a failure of the generative model call.
	ErrGeneration = errors.New("generation failure")

	// ErrPersistence marks a failure to durably store state (relational or
	// index snapshot).
	ErrPersistence = errors.New("persistence failure")
)
