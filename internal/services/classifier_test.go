package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestIsFlagged_Verdicts(t *testing.T) {
	cases := []struct {
		out  string
		want bool
	}{
		{"1", true},
		{"0", false},
		{" 1\n", true},
		{" 0 ", false},
	}
	for _, tc := range cases {
		c := NewFlagClassifier(&fakeGen{out: tc.out})
		got, err := c.IsFlagged(context.Background(), "q")
		if err != nil {
			t.Fatalf("IsFlagged(%q): %v", tc.out, err)
		}
		if got != tc.want {
			t.Fatalf("IsFlagged(%q) = %v, want %v", tc.out, got, tc.want)
		}
	}
}

func TestIsFlagged_FailsOpenOnError(t *testing.T) {
	c := NewFlagClassifier(&fakeGen{err: errors.New("provider down")})

	got, err := c.IsFlagged(context.Background(), "q")
	if got {
		t.Fatal("capability failure must degrade to not-flagged")
	}
	if !errors.Is(err, ErrClassification) {
		t.Fatalf("expected ErrClassification, got %v", err)
	}
}

func TestIsFlagged_FailsOpenOnMalformedOutput(t *testing.T) {
	c := NewFlagClassifier(&fakeGen{out: "Yes, definitely flagged."})

	got, err := c.IsFlagged(context.Background(), "q")
	if got {
		t.Fatal("malformed verdict must degrade to not-flagged")
	}
	if !errors.Is(err, ErrClassification) {
		t.Fatalf("expected ErrClassification, got %v", err)
	}
}

func TestIsFlagged_PromptContainsQuestion(t *testing.T) {
	gen := &fakeGen{out: "0"}
	c := NewFlagClassifier(gen)

	c.IsFlagged(context.Background(), "what about refunds?")
	if len(gen.prompts) != 1 || !strings.Contains(gen.prompts[0], "what about refunds?") {
		t.Fatalf("question missing from prompt: %q", gen.prompts)
	}
}
