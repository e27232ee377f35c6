// Package answers turns a matched record's answer text into answer tokens and
// decides which answer choices on a quiz page correspond to them. The page
// itself is reached through the Page interface so the decision logic stays
// independent of any particular DOM representation.
package answers

import (
	"strings"
	"unicode/utf8"
)

// DefaultPrefixRunes is how much of a question's text is used to find its
// block on the page.
const DefaultPrefixRunes = 50

// ParseTokens splits answer text into its independently correct options,
// one per non-blank line, trimmed and in order.
func ParseTokens(answer string) []string {
	lines := strings.Split(answer, "\n")
	tokens := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	return tokens
}

// MatchChoice reports the first token that the choice text contains or that
// contains the choice text. An empty choice never matches.
func MatchChoice(choiceText string, tokens []string) (string, bool) {
	choiceText = strings.TrimSpace(choiceText)
	if choiceText == "" {
		return "", false
	}
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if strings.Contains(choiceText, tok) || strings.Contains(tok, choiceText) {
			return tok, true
		}
	}
	return "", false
}

// Prefix returns the first n runes of s.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
