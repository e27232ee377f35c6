package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/matcher/tokenizer"
)

// Score measures how well a covers b. Every token of a, repeats included,
// that appears anywhere in b counts once; the count is normalised by
// sqrt(len(a) * len(b)). Score is not symmetric and may exceed 1 when a
// repeats tokens.
func Score(a, b string) float64 {
	tokensA := tokenizer.Tokenize(a)
	if len(tokensA) == 0 {
		return 0
	}
	tokensB := tokenizer.Tokenize(b)
	if len(tokensB) == 0 {
		return 0
	}
	return scoreTokens(tokensA, tokensB, setOf(tokensB))
}

func scoreTokens(tokensA, tokensB []string, setB map[string]struct{}) float64 {
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}
	matches := 0
	for _, tok := range tokensA {
		if _, ok := setB[tok]; ok {
			matches++
		}
	}
	return float64(matches) / math.Sqrt(float64(len(tokensA))*float64(len(tokensB)))
}

func setOf(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}
