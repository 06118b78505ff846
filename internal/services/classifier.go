// Package services – FlagClassifier
//
// This file implements the semantic "is this about previously flagged
// content?" check that runs before retrieval. The classifier fails open: any
// capability error or malformed model output is treated as not-flagged, so a
// classifier outage degrades to normal answering instead of blocking all
// traffic. Availability over caution, chosen deliberately.
package services

import (
	"context"
	"fmt"
	"strings"
)

// Generator produces text from a prompt. Implementations must be safe for
// concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const classifierPrompt = `You are a strict binary classifier. Decide whether the user question below concerns content that was previously flagged as incorrect or disliked.
Answer with exactly one character: 1 if it does, 0 if it does not. No explanation.

Question: %s`

// FlagClassifier asks the generation capability to label a question as
// flagged-related or not.
type FlagClassifier struct {
	Gen Generator
}

// NewFlagClassifier constructs a classifier over the given generator.
func NewFlagClassifier(gen Generator) *FlagClassifier {
	return &FlagClassifier{Gen: gen}
}

// IsFlagged reports whether text concerns previously flagged content. The
// second return carries the underlying capability error when the result was
// forced to false by a failure; callers may log it but must not let it block
// answering.
func (c *FlagClassifier) IsFlagged(ctx context.Context, text string) (bool, error) {
	out, err := c.Gen.Generate(ctx, fmt.Sprintf(classifierPrompt, text))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrClassification, err)
	}
	switch strings.TrimSpace(out) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: malformed verdict %q", ErrClassification, truncate(out, 32))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
