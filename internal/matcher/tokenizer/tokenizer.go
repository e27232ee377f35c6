// Package tokenizer splits text into the lower-cased word tokens used by the
// similarity ranker. Tokens shorter than three runes are discarded, which
// drops most stop-words ("a", "is", "to") without a word list.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinTokenRunes is the shortest token that survives filtering.
const MinTokenRunes = 3

// Tokenize lower-cases text, splits it on runs of non-word runes and keeps
// tokens of at least MinTokenRunes runes. Order and duplicates are preserved.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
	tokens := words[:0]
	for _, word := range words {
		if utf8.RuneCountInString(word) < MinTokenRunes {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// Set returns the distinct tokens of text for membership tests.
func Set(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
