package analysis

import (
	"regexp"
	"strings"
)

// Sentiment labels produced by classifiers.
const (
	LabelPositive = "POSITIVE"
	LabelNegative = "NEGATIVE"
	LabelNeutral  = "NEUTRAL"
)

// Classification is one classifier verdict for a piece of text.
type Classification struct {
	Label           string
	Score           float64
	PositiveMatches int
	NegativeMatches int
	TokenCount      int
}

// Classifier labels a piece of conversational text. Implementations must be
// safe for concurrent use.
type Classifier interface {
	Classify(text string) Classification
}

var tokenPattern = regexp.MustCompile(`[\w']+`)

// Tokenize lower-cases and splits text into word tokens. Shared with the
// search ranker so both sides agree on what a token is.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

var positiveWords = map[string]bool{
	"good": true, "great": true, "excellent": true, "amazing": true,
	"awesome": true, "love": true, "like": true, "happy": true,
}

var negativeWords = map[string]bool{
	"bad": true, "terrible": true, "awful": true, "hate": true,
	"dislike": true, "sad": true, "angry": true, "upset": true,
}

// LexiconClassifier is the heuristic sentiment model: count lexicon hits
// and score by their normalised difference.
type LexiconClassifier struct{}

func NewLexiconClassifier() *LexiconClassifier { return &LexiconClassifier{} }

func (c *LexiconClassifier) Classify(text string) Classification {
	tokens := Tokenize(text)
	var pos, neg int
	for _, token := range tokens {
		if positiveWords[token] {
			pos++
		}
		if negativeWords[token] {
			neg++
		}
	}
	label := LabelNeutral
	switch {
	case pos > neg:
		label = LabelPositive
	case neg > pos:
		label = LabelNegative
	}
	denom := len(tokens)
	if denom < 1 {
		denom = 1
	}
	return Classification{
		Label:           label,
		Score:           float64(pos-neg) / float64(denom),
		PositiveMatches: pos,
		NegativeMatches: neg,
		TokenCount:      len(tokens),
	}
}
