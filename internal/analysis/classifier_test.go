package analysis

import (
	"math"
	"testing"
)

func TestLexiconClassifierLabels(t *testing.T) {
	c := NewLexiconClassifier()
	cases := []struct {
		text  string
		label string
	}{
		{"I love this feature", LabelPositive},
		{"this is terrible and I hate it", LabelNegative},
		{"the sky is blue", LabelNeutral},
		{"", LabelNeutral},
		{"good but bad", LabelNeutral},
	}
	for _, tc := range cases {
		got := c.Classify(tc.text)
		if got.Label != tc.label {
			t.Errorf("Classify(%q).Label = %s, want %s", tc.text, got.Label, tc.label)
		}
	}
}

func TestLexiconClassifierScore(t *testing.T) {
	c := NewLexiconClassifier()

	got := c.Classify("I love this feature")
	// 1 positive hit over 4 tokens.
	if math.Abs(got.Score-0.25) > 1e-9 {
		t.Fatalf("score = %v, want 0.25", got.Score)
	}
	if got.PositiveMatches != 1 || got.NegativeMatches != 0 {
		t.Fatalf("matches = (%d, %d), want (1, 0)", got.PositiveMatches, got.NegativeMatches)
	}

	empty := c.Classify("")
	if empty.Score != 0 {
		t.Fatalf("empty text score = %v, want 0", empty.Score)
	}
}

func TestTokenizeKeepsApostrophes(t *testing.T) {
	tokens := Tokenize("I'm HAPPY, really!")
	want := []string{"i'm", "happy", "really"}
	if len(tokens) != len(want) {
		t.Fatalf("tokens = %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("tokens[%d] = %q, want %q", i, tokens[i], want[i])
		}
	}
}
